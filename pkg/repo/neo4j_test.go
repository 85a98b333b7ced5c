package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// --- Mock infrastructure ---

type mockResult struct{}

func (m *mockResult) Next(ctx context.Context) bool { return false }
func (m *mockResult) Record() *neo4j.Record       { return nil }

type mockRunner struct {
	result  *mockResult
	err     error
	cyphers []string
	params  []map[string]any
	closed  int
}

func (m *mockRunner) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	m.cyphers = append(m.cyphers, cypher)
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockRunner) Close(ctx context.Context) error {
	m.closed++
	return nil
}

type policy struct {
	ID       int64
	Decision string
}


func newTestRepo(r *mockRunner) *Neo4jRepo[policy, int64] {
	return NewNeo4jRepo[policy, int64](
		nil, "Policy",
		func(p policy) map[string]any { return map[string]any{"policy_id": p.ID, "decision": p.Decision} },
		WithIDKey[policy, int64]("policy_id"),
		WithSession[policy, int64](func(ctx context.Context) Runner { return r }),
	)
}

// --- Tests ---

func TestNewNeo4jRepoDefaults(t *testing.T) {
	r := NewNeo4jRepo[map[string]any, string](nil, "Node", nil)
	if r.idKey != "id" || r.label != "Node" {
		t.Fatalf("unexpected defaults: idKey=%s label=%s", r.idKey, r.label)
	}
	if r.newSession != nil {
		t.Fatal("newSession should be nil by default")
	}
}







func TestMerge(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	if err := newTestRepo(r).Merge(context.Background(), policy{ID: 5, Decision: "Declined"}); err != nil {
		t.Fatal(err)
	}
	if r.params[0]["id"] != int64(5) {
		t.Fatalf("merge id = %v", r.params[0]["id"])
	}
	props := r.params[0]["props"].(map[string]any)
	if props["decision"] != "Declined" {
		t.Fatalf("props = %v", props)
	}
}

func TestMerge_RunError(t *testing.T) {
	r := &mockRunner{err: errors.New("fail")}
	if err := newTestRepo(r).Merge(context.Background(), policy{ID: 1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMerge_CypherUsesLabelAndIDKey(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	newTestRepo(r).Merge(context.Background(), policy{ID: 7, Decision: "A"})
	if want := "MERGE (n:Policy {policy_id: $id}) SET n += $props"; r.cyphers[0] != want {
		t.Fatalf("cypher = %q, want %q", r.cyphers[0], want)
	}
	if r.closed != 1 {
		t.Fatal("session not closed")
	}
}

func TestExec(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	if err := newTestRepo(r).Exec(context.Background(), "MERGE (d:Driver {driver_id: $d})", map[string]any{"d": 1}); err != nil {
		t.Fatal(err)
	}
	if r.cyphers[0] != "MERGE (d:Driver {driver_id: $d})" || r.closed != 1 {
		t.Fatalf("unexpected run: %v closed=%d", r.cyphers, r.closed)
	}
}


type fakeDriver struct {
	neo4j.DriverWithContext
	sessionCreated bool
}

type fakeSession struct {
	neo4j.SessionWithContext
}

func (d *fakeDriver) NewSession(_ context.Context, _ neo4j.SessionConfig) neo4j.SessionWithContext {
	d.sessionCreated = true
	return &fakeSession{}
}

func TestSession_UsesDriver(t *testing.T) {
	fd := &fakeDriver{}
	r := NewNeo4jRepo[policy, int64](fd, "Policy", nil)
	if _, ok := r.Session(context.Background()).(*sessionAdapter); !ok {
		t.Fatal("expected sessionAdapter")
	}
	if !fd.sessionCreated {
		t.Fatal("expected driver.NewSession to be called")
	}
}
