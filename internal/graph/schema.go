package graph

import (
	"context"
	"fmt"

	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// EnsureConstraints declares the uniqueness constraint for every node label.
// Safe to call repeatedly.
func EnsureConstraints(ctx context.Context, store Store, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "SchemaInit")
	for _, m := range NodeMappings() {
		if err := store.DeclareUnique(ctx, m.Label, m.Key); err != nil {
			return fmt.Errorf("schema init: %w", err)
		}
		log.Debug("constraint ensured", "label", m.Label, "key", m.Key)
	}
	log.Info("schema constraints ensured", "labels", len(NodeMappings()))
	return nil
}

// VerifyConstraints gates the loader: every node label must already carry
// its uniqueness constraint, otherwise merges could race into duplicates.
func VerifyConstraints(ctx context.Context, store Store) error {
	for _, m := range NodeMappings() {
		ok, err := store.HasUnique(ctx, m.Label, m.Key)
		if err != nil {
			return fmt.Errorf("verify constraints: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s.%s", etlerr.ErrConstraintMissing, m.Label, m.Key)
		}
	}
	return nil
}
