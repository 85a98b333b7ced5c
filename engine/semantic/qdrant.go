package semantic

import (
	"context"
	"fmt"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// QdrantStore keeps chunks as points in one Qdrant collection.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dim         int
}

// NewQdrant connects to Qdrant's gRPC API at addr.
func NewQdrant(addr, collection string, dim int) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dim:         dim,
	}, nil
}

// NewWithClients builds a QdrantStore over existing clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string, dim int) *QdrantStore {
	return &QdrantStore{points: points, collections: collections, collection: collection, dim: dim}
}

// Close closes the gRPC connection, if the store owns one.
func (q *QdrantStore) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// CreateSchema creates the collection with cosine distance if it is missing.
func (q *QdrantStore) CreateSchema(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}
	return nil
}


// PointID derives a stable point ID for a chunk so re-ingesting a file
// overwrites rather than duplicates.
func PointID(c domain.Chunk) string {
	key := fmt.Sprintf("%s-%d-%d-%d", c.Document, c.PolicyID, c.VehicleID, c.Index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// BatchInsert upserts every chunk in one waited request.
func (q *QdrantStore) BatchInsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkDims(chunks, q.dim); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c.Chunk)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: c.Embedding},
				},
			},
			Payload: payload(c.Chunk),
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(chunks), err)
	}
	return nil
}

// QueryTopK searches the collection. Qdrant reports cosine similarity, so
// distance is 1 - score.
func (q *QdrantStore) QueryTopK(ctx context.Context, embedding []float32, k int) ([]domain.SimilarityResult, error) {
	if k <= 0 {
		return []domain.SimilarityResult{}, nil
	}
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]domain.SimilarityResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		p := r.GetPayload()
		results = append(results, domain.SimilarityResult{
			Content:              p[domain.ColContent].GetStringValue(),
			Document:             p[domain.ColDocument].GetStringValue(),
			PolicyID:             p[domain.ColPolicyID].GetIntegerValue(),
			UnderwritingDecision: p[domain.ColUnderwritingDecision].GetStringValue(),
			RiskClass:            p[domain.ColRiskClass].GetStringValue(),
			ReasonForDecline:     p[domain.ColReasonForDecline].GetStringValue(),
			Distance:             1 - float64(r.GetScore()),
		})
	}
	return results, nil
}

func payload(c domain.Chunk) map[string]*pb.Value {
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	num := func(n int64) *pb.Value { return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}} }
	return map[string]*pb.Value{
		domain.ColDocument:             str(c.Document),
		domain.ColDriverID:             num(c.DriverID),
		domain.ColVehicleID:            num(c.VehicleID),
		domain.ColPolicyID:             num(c.PolicyID),
		domain.ColUnderwritingDecision: str(c.UnderwritingDecision),
		domain.ColRiskClass:            str(c.RiskClass),
		domain.ColReasonForDecline:     str(c.ReasonForDecline),
		domain.ColContent:              str(c.Content),
		domain.ColTokens:               num(int64(c.Tokens)),
		"chunk_index":                  num(int64(c.Index)),
	}
}
