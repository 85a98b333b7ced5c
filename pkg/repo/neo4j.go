package repo

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the subset of a neo4j result the repository reads.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// Runner is the subset of a neo4j session the repository uses.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// Neo4jRepo is a generic Neo4j-backed repository keyed on one node property.
type Neo4jRepo[T any, ID comparable] struct {
	driver     neo4j.DriverWithContext
	label      string
	idKey      string
	toMap      func(T) map[string]any
	newSession func(ctx context.Context) Runner
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// WithSession overrides how sessions are opened.
func WithSession[T any, ID comparable](f func(ctx context.Context) Runner) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.newSession = f }
}

// NewNeo4jRepo creates a new Neo4j-backed repository.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		driver: driver,
		label:  label,
		idKey:  "id",
		toMap:  toMap,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ Upserter[any] = (*Neo4jRepo[any, string])(nil)

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// Session opens a session on the repository's driver.
func (r *Neo4jRepo[T, ID]) Session(ctx context.Context) Runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &sessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{})}
}





// Merge creates the node if no node has its ID, then sets all properties.
func (r *Neo4jRepo[T, ID]) Merge(ctx context.Context, entity T) error {
	sess := r.Session(ctx)
	defer sess.Close(ctx)

	props := r.toMap(entity)
	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props", r.label, r.idKey)
	_, err := sess.Run(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props})
	return err
}


// Exec runs a write statement that returns nothing of interest, such as a
// relationship MERGE.
func (r *Neo4jRepo[T, ID]) Exec(ctx context.Context, cypher string, params map[string]any) error {
	sess := r.Session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, cypher, params)
	return err
}
