package extract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/trialgraph/internal/domain"
	"github.com/yungbote/trialgraph/internal/ontology"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

const pipelineInput = `{"study_id":"S1","status":"COMPLETED","conditions":[{"name":"Asthma","mesh_id":"D001249"}],"arms":[{"label":"A","interventions":[{"name":"Drug: Budesonide"}]}]}
{"title":"no study id"}
{"study_id":"S2","status":"RECRUITING","conditions":["Unknown Disease"],"lead_sponsor":{"name":"Acme"}}
`

func testResolver() *ontology.Resolver {
	return ontology.NewResolver([]ontology.Term{
		{ID: "D001249", Name: "Asthma", TreeNumber: "C08.127.108", Ancestors: []string{"D012120", "D012140"}},
		{ID: "D012120", Name: "Respiration Disorders", TreeNumber: "C08.618"},
		{ID: "D012140", Name: "Respiratory Tract Diseases", TreeNumber: "C08"},
	}, logger.Nop())
}

func runPipeline(t *testing.T, dir string) *Summary {
	t.Helper()
	r, err := NewReader(strings.NewReader(pipelineInput), logger.Nop())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	w, err := NewTableWriter(dir, 1000, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	p := &Pipeline{
		Reader:     r,
		Decomposer: NewDecomposer(nil),
		Writer:     w,
		Resolver:   testResolver(),
		Log:        logger.Nop(),
	}
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return sum
}

func TestPipelineRecoversPerRecordFailures(t *testing.T) {
	dir := t.TempDir()
	sum := runPipeline(t, dir)

	if sum.RecordsProcessed != 2 {
		t.Fatalf("expected 2 processed, got %d", sum.RecordsProcessed)
	}
	if sum.DecompErrors != 1 {
		t.Fatalf("expected 1 decomposition error, got %d", sum.DecompErrors)
	}
	if sum.UnknownOntology != 1 {
		t.Fatalf("expected 1 unknown ontology ref, got %d", sum.UnknownOntology)
	}
	if sum.TableCounts[domain.TableStudies] != 2 {
		t.Fatalf("expected 2 study rows, got %d", sum.TableCounts[domain.TableStudies])
	}

	// The chain Asthma -> Respiration Disorders -> Respiratory Tract Diseases
	// yields exactly the two adjacent edges.
	isA := readCSV(t, filepath.Join(dir, domain.TableMeshIsA+".csv"))
	if len(isA) != 3 {
		t.Fatalf("expected header + 2 is_a rows, got %d", len(isA))
	}
	if isA[1][0] != "D001249" || isA[1][1] != "D012120" {
		t.Fatalf("unexpected first is_a edge: %v", isA[1])
	}
	if isA[2][0] != "D012120" || isA[2][1] != "D012140" {
		t.Fatalf("unexpected second is_a edge: %v", isA[2])
	}
}

func TestPipelineDeterministicArtifacts(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	runPipeline(t, dirA)
	runPipeline(t, dirB)

	entries, err := os.ReadDir(dirA)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no artifacts written")
	}
	for _, e := range entries {
		a, err := os.ReadFile(filepath.Join(dirA, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("artifact %s differs between runs", e.Name())
		}
	}
}

func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReader(strings.NewReader(pipelineInput), logger.Nop())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	w, err := NewTableWriter(t.TempDir(), 1000, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	p := &Pipeline{Reader: r, Decomposer: NewDecomposer(nil), Writer: w, Log: logger.Nop()}
	if _, err := p.Run(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
