package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createReq  *pb.CreateCollection
	createResp *pb.CollectionOperationResponse
	createErr  error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createReq = in
	return m.createResp, m.createErr
}

func embedded(policy int64, index int, vec ...float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			CaseRecord: domain.CaseRecord{
				Document:             "doc",
				DriverID:             1,
				VehicleID:            2,
				PolicyID:             policy,
				UnderwritingDecision: "Approved",
				RiskClass:            "Low",
				ReasonForDecline:     "N/A",
				Content:              "clean record",
			},
			Index:  index,
			Tokens: 2,
		},
		Embedding: vec,
	}
}

// --- Tests ---

func TestNewWithClients(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "test", 4)
	if vs == nil {
		t.Fatal("expected non-nil")
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCreateSchema_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "test"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test", 4)
	if err := vs.CreateSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createReq != nil {
		t.Fatal("existing collection must not be recreated")
	}
}

func TestCreateSchema_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{{Name: "other"}}},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test", 1536)
	if err := vs.CreateSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := cols.createReq.GetVectorsConfig().GetParams()
	if params.GetSize() != 1536 || params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("unexpected vector params: %+v", params)
	}
}

func TestCreateSchema_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols, "test", 4)
	if err := vs.CreateSchema(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateSchema_CreateError(t *testing.T) {
	cols := &mockCollections{
		listResp:  &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{}},
		createErr: errors.New("create fail"),
	}
	vs := NewWithClients(&mockPoints{}, cols, "test", 4)
	if err := vs.CreateSchema(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}


func TestQdrantBatchInsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test", 2)
	if err := vs.BatchInsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("empty batch must not call upsert")
	}
}

func TestQdrantBatchInsert_SingleWaitedRequest(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test", 2)

	chunks := []domain.EmbeddedChunk{embedded(7, 0, 1, 0), embedded(7, 1, 0, 1)}
	if err := vs.BatchInsert(context.Background(), chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := pts.upsertReq
	if !req.GetWait() || len(req.GetPoints()) != 2 {
		t.Fatalf("unexpected upsert: wait=%v points=%d", req.GetWait(), len(req.GetPoints()))
	}
	p := req.GetPoints()[0]
	if p.GetPayload()[domain.ColPolicyID].GetIntegerValue() != 7 {
		t.Error("policy_id payload missing")
	}
	if p.GetPayload()[domain.ColContent].GetStringValue() != "clean record" {
		t.Error("content payload missing")
	}
	if p.GetId().GetUuid() == req.GetPoints()[1].GetId().GetUuid() {
		t.Error("chunks of one record need distinct point ids")
	}
}

func TestQdrantBatchInsert_DimensionMismatch(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test", 2)
	err := vs.BatchInsert(context.Background(), []domain.EmbeddedChunk{embedded(1, 0, 1, 0), embedded(2, 0, 1)})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("nothing should be sent when a chunk is invalid")
	}
}

func TestQdrantBatchInsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "test", 2)
	if err := vs.BatchInsert(context.Background(), []domain.EmbeddedChunk{embedded(1, 0, 1, 0)}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPointID_Deterministic(t *testing.T) {
	c := embedded(9, 3, 1).Chunk
	if PointID(c) != PointID(c) {
		t.Fatal("point id must be stable")
	}
}

func TestQdrantQueryTopK(t *testing.T) {
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Score: 0.75,
					Payload: map[string]*pb.Value{
						domain.ColContent:              str("two claims in 2021"),
						domain.ColDocument:             str("doc-1"),
						domain.ColPolicyID:             {Kind: &pb.Value_IntegerValue{IntegerValue: 42}},
						domain.ColUnderwritingDecision: str("Declined"),
						domain.ColRiskClass:            str("High"),
						domain.ColReasonForDecline:     str("Claims history"),
					},
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "test", 2)
	results, err := vs.QueryTopK(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.searchReq.GetLimit() != 3 {
		t.Errorf("limit = %d", pts.searchReq.GetLimit())
	}
	if len(results) != 1 {
		t.Fatalf("expected 1, got %d", len(results))
	}
	r := results[0]
	if r.Content != "two claims in 2021" || r.PolicyID != 42 || r.RiskClass != "High" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Distance != 0.25 {
		t.Errorf("distance = %v, want 0.25", r.Distance)
	}
}

func TestQdrantQueryTopK_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "test", 1)
	if _, err := vs.QueryTopK(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestQdrantQueryTopK_Empty(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test", 1)
	results, err := vs.QueryTopK(context.Background(), []float32{1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", results)
	}
}

func TestNewOpener(t *testing.T) {
	if _, err := NewOpener(config.Store{Driver: "mongo"}, 4); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	for _, d := range []string{config.DriverPostgres, config.DriverQdrant, config.DriverSQLite} {
		if _, err := NewOpener(config.Store{Driver: d}, 4); err != nil {
			t.Errorf("driver %s: %v", d, err)
		}
	}
}
