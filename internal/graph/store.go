// Package graph builds the trial knowledge graph from the normalized tables.
// All writes go through the Store boundary: merge-by-key for nodes and
// merge-by-endpoint-pair for relationships, so applying the same table twice
// never duplicates anything.
package graph

import "context"

// RelSpec identifies one relationship type and the node labels and key
// properties at its endpoints.
type RelSpec struct {
	Label    string
	SrcLabel string
	SrcKey   string
	DstLabel string
	DstKey   string
}

// RelRow is one relationship upsert: endpoint key values plus edge
// attributes.
type RelRow struct {
	Src   string
	Dst   string
	Props map[string]any
}

// Store is the transactional graph sink. Implementations must make
// UpsertNodes and UpsertRelationships atomic per call: the whole batch
// commits or none of it does.
type Store interface {
	// DeclareUnique declares a uniqueness constraint; declaring an existing
	// one is a no-op.
	DeclareUnique(ctx context.Context, label, key string) error
	// HasUnique reports whether the constraint is present.
	HasUnique(ctx context.Context, label, key string) (bool, error)
	// UpsertNodes merges each row by its key property and overwrites the
	// remaining properties.
	UpsertNodes(ctx context.Context, label, key string, rows []map[string]any) error
	// UpsertRelationships merges each edge by (source, target, label) and
	// overwrites edge attributes.
	UpsertRelationships(ctx context.Context, spec RelSpec, rows []RelRow) error
	Close(ctx context.Context) error
}
