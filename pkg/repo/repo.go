// Package repo holds the Neo4j-backed upsert repository used for
// graph-shaped side stores.
package repo

import "context"

// Upserter is implemented by repositories that can create-or-update by ID.
type Upserter[T any] interface {
	Merge(ctx context.Context, entity T) error
}
