package ontology

import (
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

func chainResolver() *Resolver {
	return NewResolver([]Term{
		{ID: "A", Name: "Leaf Term", TreeNumber: "C01.1.1", Ancestors: []string{"B", "C"}},
		{ID: "B", Name: "Mid Term", TreeNumber: "C01.1"},
		{ID: "C", Name: "Root Term", TreeNumber: "C01"},
	}, logger.Nop())
}

func TestResolveEmitsAdjacentEdgesOnly(t *testing.T) {
	r := chainResolver()
	rows, err := r.Resolve("leaf term", "Leaf Term", "A")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(rows.IsA) != 2 {
		t.Fatalf("expected 2 is_a edges, got %d: %v", len(rows.IsA), rows.IsA)
	}
	if rows.IsA[0]["child_id"] != "A" || rows.IsA[0]["parent_id"] != "B" {
		t.Fatalf("unexpected first edge: %v", rows.IsA[0])
	}
	if rows.IsA[1]["child_id"] != "B" || rows.IsA[1]["parent_id"] != "C" {
		t.Fatalf("unexpected second edge: %v", rows.IsA[1])
	}
	for _, e := range rows.IsA {
		if e["child_id"] == "A" && e["parent_id"] == "C" {
			t.Fatalf("transitive edge emitted: %v", e)
		}
	}

	if len(rows.Mesh) != 3 {
		t.Fatalf("expected 3 mesh node rows, got %d", len(rows.Mesh))
	}
	if len(rows.ConditionMesh) != 1 || rows.ConditionMesh[0]["mesh_id"] != "A" {
		t.Fatalf("unexpected condition_mesh rows: %v", rows.ConditionMesh)
	}
}

func TestResolveByName(t *testing.T) {
	r := chainResolver()
	rows, err := r.Resolve("k", "  LEAF   term ", "")
	if err != nil {
		t.Fatalf("resolve by name: %v", err)
	}
	if rows.Mesh[0]["mesh_id"] != "A" {
		t.Fatalf("unexpected term: %v", rows.Mesh[0])
	}
}

func TestResolveUnknownIsSoftSkip(t *testing.T) {
	r := chainResolver()
	rows, err := r.Resolve("k", "Nonexistent", "ZZZ")
	if !errors.Is(err, etlerr.ErrUnknownOntologyRef) {
		t.Fatalf("expected unknown ontology ref error, got %v", err)
	}
	if rows != nil {
		t.Fatalf("expected zero rows, got %v", rows)
	}
	if _, err := r.Resolve("k2", "Also Missing", ""); !errors.Is(err, etlerr.ErrUnknownOntologyRef) {
		t.Fatalf("expected unknown ontology ref error for name lookup, got %v", err)
	}
	if r.Unknown() != 2 {
		t.Fatalf("expected 2 unknown refs, got %d", r.Unknown())
	}
}

func TestLoadAncestorTable(t *testing.T) {
	src := "mesh_id,term,tree_number,ancestors\n" +
		"A,Leaf Term,C01.1.1,B|C\n" +
		"B,Mid Term,C01.1,C\n" +
		"C,Root Term,C01,\n"
	r, err := LoadAncestorTable(strings.NewReader(src), logger.Nop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rows, err := r.Resolve("k", "", "A")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(rows.IsA) != 2 {
		t.Fatalf("expected 2 edges, got %v", rows.IsA)
	}
	if rows.Mesh[1]["term"] != "Mid Term" {
		t.Fatalf("ancestor metadata not joined: %v", rows.Mesh[1])
	}
}

func TestLoadAncestorTableRejectsBadHeader(t *testing.T) {
	if _, err := LoadAncestorTable(strings.NewReader("id,name\nA,B\n"), logger.Nop()); err == nil {
		t.Fatalf("expected header error")
	}
}
