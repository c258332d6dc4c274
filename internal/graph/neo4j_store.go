package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/trialgraph/internal/platform/logger"
	"github.com/yungbote/trialgraph/internal/platform/neo4jdb"
)

// Neo4jStore implements Store over a bolt driver. Upserts are UNWIND+MERGE
// batches inside managed write transactions; the declared uniqueness
// constraints make concurrent merges of the same key safe.
type Neo4jStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewNeo4jStore(client *neo4jdb.Client, log *logger.Logger) *Neo4jStore {
	if log == nil {
		log = logger.Nop()
	}
	return &Neo4jStore{client: client, log: log.With("component", "Neo4jStore")}
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

func (s *Neo4jStore) DeclareUnique(ctx context.Context, label, key string) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	name := constraintName(label, key)
	query := fmt.Sprintf(
		"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		name, label, key,
	)
	res, err := session.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("declare unique %s.%s: %w", label, key, err)
	}
	_, err = res.Consume(ctx)
	return err
}

func (s *Neo4jStore) HasUnique(ctx context.Context, label, key string) (bool, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	res, err := session.Run(ctx,
		"SHOW CONSTRAINTS YIELD type, labelsOrTypes, properties WHERE type = 'UNIQUENESS' RETURN labelsOrTypes, properties", nil)
	if err != nil {
		return false, fmt.Errorf("show constraints: %w", err)
	}
	for res.Next(ctx) {
		rec := res.Record()
		labels, _ := rec.Get("labelsOrTypes")
		props, _ := rec.Get("properties")
		if containsString(labels, label) && containsString(props, key) {
			return true, nil
		}
	}
	return false, res.Err()
}

func (s *Neo4jStore) UpsertNodes(ctx context.Context, label, key string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {%s: row.%s})
SET n += row
`, label, key, key)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("upsert %s nodes: %w", label, err)
	}
	return nil
}

func (s *Neo4jStore) UpsertRelationships(ctx context.Context, spec RelSpec, rows []RelRow) error {
	if len(rows) == 0 {
		return nil
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	params := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		props := r.Props
		if props == nil {
			props = map[string]any{}
		}
		params = append(params, map[string]any{"src": r.Src, "dst": r.Dst, "props": props})
	}

	query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a:%s {%s: row.src})
MATCH (b:%s {%s: row.dst})
MERGE (a)-[r:%s]->(b)
SET r += row.props
`, spec.SrcLabel, spec.SrcKey, spec.DstLabel, spec.DstKey, spec.Label)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"rows": params})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("upsert %s relationships: %w", spec.Label, err)
	}
	return nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func constraintName(label, key string) string {
	return strings.ToLower(label) + "_" + strings.ToLower(key) + "_unique"
}

func containsString(v any, want string) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if s, ok := item.(string); ok && s == want {
			return true
		}
	}
	return false
}
