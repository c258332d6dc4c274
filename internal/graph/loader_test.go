package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/trialgraph/internal/domain"
	"github.com/yungbote/trialgraph/internal/extract"
	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// memStore merges nodes by key and relationships by endpoint pair, the same
// semantics the Cypher MERGE statements have.
type memStore struct {
	mu          sync.Mutex
	constraints map[string]bool
	nodes       map[string]map[string]map[string]any // label -> key value -> props
	rels        map[string]map[string]map[string]any // rel label -> src|dst -> props
	labelOrder  []string
	failLabel   string
	failCount   int
}

func newMemStore() *memStore {
	return &memStore{
		constraints: map[string]bool{},
		nodes:       map[string]map[string]map[string]any{},
		rels:        map[string]map[string]map[string]any{},
	}
}

func (s *memStore) DeclareUnique(ctx context.Context, label, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.constraints[label+"."+key] = true
	return nil
}

func (s *memStore) HasUnique(ctx context.Context, label, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.constraints[label+"."+key], nil
}

func (s *memStore) UpsertNodes(ctx context.Context, label, key string, rows []map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLabel == label && s.failCount != 0 {
		if s.failCount > 0 {
			s.failCount--
		}
		return errors.New("injected store failure")
	}
	s.labelOrder = append(s.labelOrder, label)
	if s.nodes[label] == nil {
		s.nodes[label] = map[string]map[string]any{}
	}
	for _, row := range rows {
		kv, _ := row[key].(string)
		if kv == "" {
			return fmt.Errorf("row missing key %s", key)
		}
		merged := s.nodes[label][kv]
		if merged == nil {
			merged = map[string]any{}
		}
		for k, v := range row {
			merged[k] = v
		}
		s.nodes[label][kv] = merged
	}
	return nil
}

func (s *memStore) UpsertRelationships(ctx context.Context, spec RelSpec, rows []RelRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labelOrder = append(s.labelOrder, spec.Label)
	if s.rels[spec.Label] == nil {
		s.rels[spec.Label] = map[string]map[string]any{}
	}
	for _, r := range rows {
		s.rels[spec.Label][r.Src+"|"+r.Dst] = r.Props
	}
	return nil
}

func (s *memStore) Close(ctx context.Context) error { return nil }

func (s *memStore) nodeCount(label string) int { return len(s.nodes[label]) }
func (s *memStore) relCount(label string) int  { return len(s.rels[label]) }

// stageDir extracts a small fixed stream into a temp staging directory.
func stageDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	const input = `{"study_id":"S1","status":"COMPLETED","enrollment":120,"lead_sponsor":{"name":"Acme"},"conditions":["Asthma"],"arms":[{"label":"A","interventions":[{"name":"DrugX"}]}]}
{"study_id":"S2","status":"RECRUITING","lead_sponsor":{"name":"Acme"},"conditions":["Asthma"],"arms":[{"label":"A","interventions":[{"name":"DrugX"}]}]}
{"study_id":"S3","lead_sponsor":{"name":"Beta Labs"}}
`
	w, err := extract.NewTableWriter(dir, 1000, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	r, err := extract.NewReader(strings.NewReader(input), logger.Nop())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	p := &extract.Pipeline{Reader: r, Decomposer: extract.NewDecomposer(nil), Writer: w, Log: logger.Nop()}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("stage extraction: %v", err)
	}
	return dir
}

func quickLoader(store Store) *Loader {
	l := NewLoader(store, logger.Nop())
	l.RetryBackoff = time.Millisecond
	l.BatchTimeout = time.Second
	return l
}

func TestLoadRefusesWithoutConstraints(t *testing.T) {
	store := newMemStore()
	_, err := quickLoader(store).Load(context.Background(), t.TempDir())
	if !errors.Is(err, etlerr.ErrConstraintMissing) {
		t.Fatalf("expected constraint gate error, got %v", err)
	}
}

func TestLoadTwiceIsIdempotent(t *testing.T) {
	dir := stageDir(t)
	store := newMemStore()
	if err := EnsureConstraints(context.Background(), store, nil); err != nil {
		t.Fatalf("ensure constraints: %v", err)
	}

	l := quickLoader(store)
	for i := 0; i < 2; i++ {
		report, err := l.Load(context.Background(), dir)
		if err != nil {
			t.Fatalf("load %d: %v", i+1, err)
		}
		if report.Failed() {
			t.Fatalf("load %d reported failed batches", i+1)
		}
	}

	if got := store.nodeCount("Study"); got != 3 {
		t.Fatalf("expected 3 Study nodes after double load, got %d", got)
	}
	// Two studies share one sponsor; there are 2 distinct sponsors.
	if got := store.nodeCount("Sponsor"); got != 2 {
		t.Fatalf("expected 2 Sponsor nodes after double load, got %d", got)
	}
	if got := store.nodeCount("Condition"); got != 1 {
		t.Fatalf("expected 1 Condition node, got %d", got)
	}
	if got := store.relCount("SPONSORED_BY"); got != 3 {
		t.Fatalf("expected 3 SPONSORED_BY edges, got %d", got)
	}
	if got := store.relCount("HAS_ARM"); got != 2 {
		t.Fatalf("expected 2 HAS_ARM edges, got %d", got)
	}
}

func TestLoadCoercesColumnTypes(t *testing.T) {
	dir := stageDir(t)
	store := newMemStore()
	if err := EnsureConstraints(context.Background(), store, nil); err != nil {
		t.Fatalf("ensure constraints: %v", err)
	}
	if _, err := quickLoader(store).Load(context.Background(), dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	s1 := store.nodes["Study"]["S1"]
	if got, ok := s1["enrollment"].(int64); !ok || got != 120 {
		t.Fatalf("expected enrollment int64 120, got %T %v", s1["enrollment"], s1["enrollment"])
	}
	// S3 has no enrollment; the empty cell must be omitted, not zeroed.
	if _, present := store.nodes["Study"]["S3"]["enrollment"]; present {
		t.Fatalf("empty cell leaked into node properties")
	}
}

func TestLoadOrderRespectsDependencies(t *testing.T) {
	dir := stageDir(t)
	store := newMemStore()
	if err := EnsureConstraints(context.Background(), store, nil); err != nil {
		t.Fatalf("ensure constraints: %v", err)
	}
	if _, err := quickLoader(store).Load(context.Background(), dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	first := map[string]int{}
	for i, label := range store.labelOrder {
		if _, ok := first[label]; !ok {
			first[label] = i
		}
	}
	before := func(a, b string) {
		t.Helper()
		ia, oka := first[a]
		ib, okb := first[b]
		if !oka || !okb {
			t.Fatalf("label missing from order: %v", store.labelOrder)
		}
		if ia >= ib {
			t.Fatalf("%s loaded at %d, not before %s at %d", a, ia, b, ib)
		}
	}
	before("Sponsor", "Study")
	before("Condition", "Study")
	before("Study", "Arm")
	before("Arm", "HAS_ARM")
	before("Intervention", "USES_INTERVENTION")
	before("Study", "SPONSORED_BY")
}

func TestLoadFailedBatchIsRetriedThenReported(t *testing.T) {
	dir := stageDir(t)

	// Fails once, then succeeds on retry.
	store := newMemStore()
	if err := EnsureConstraints(context.Background(), store, nil); err != nil {
		t.Fatalf("ensure constraints: %v", err)
	}
	store.failLabel, store.failCount = "Sponsor", 1
	report, err := quickLoader(store).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.Failed() {
		t.Fatalf("retryable failure reported as failed")
	}
	if got := store.nodeCount("Sponsor"); got != 2 {
		t.Fatalf("expected retry to land 2 Sponsor nodes, got %d", got)
	}

	// Fails every attempt: the table is reported, siblings still load.
	store = newMemStore()
	if err := EnsureConstraints(context.Background(), store, nil); err != nil {
		t.Fatalf("ensure constraints: %v", err)
	}
	store.failLabel, store.failCount = "Sponsor", -1
	report, err = quickLoader(store).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !report.Failed() {
		t.Fatalf("abandoned batch not reported")
	}
	var sponsorReport *TableReport
	for i := range report.Tables {
		if report.Tables[i].Table == domain.TableSponsors {
			sponsorReport = &report.Tables[i]
		}
	}
	if sponsorReport == nil || sponsorReport.BatchesFailed != 1 {
		t.Fatalf("unexpected sponsor report: %+v", sponsorReport)
	}
	if got := store.nodeCount("Study"); got != 3 {
		t.Fatalf("sibling tables should still load, got %d Study nodes", got)
	}
}

func TestLoadBadCellRejectsRowNotRun(t *testing.T) {
	dir := t.TempDir()
	studies := "study_id,title,status,phase,study_type,start_date,completion_date,enrollment,enrollment_type\n" +
		"S1,Good Trial,COMPLETED,PHASE3,INTERVENTIONAL,,,120,ACTUAL\n" +
		"S2,Bad Trial,COMPLETED,PHASE3,INTERVENTIONAL,,,approx 100,ACTUAL\n"
	if err := os.WriteFile(filepath.Join(dir, domain.TableStudies+".csv"), []byte(studies), 0o644); err != nil {
		t.Fatalf("write studies: %v", err)
	}
	sponsors := "sponsor_key,name,class\nacme,Acme,INDUSTRY\n"
	if err := os.WriteFile(filepath.Join(dir, domain.TableSponsors+".csv"), []byte(sponsors), 0o644); err != nil {
		t.Fatalf("write sponsors: %v", err)
	}

	store := newMemStore()
	if err := EnsureConstraints(context.Background(), store, nil); err != nil {
		t.Fatalf("ensure constraints: %v", err)
	}
	report, err := quickLoader(store).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("one bad cell aborted the load: %v", err)
	}

	if got := store.nodeCount("Study"); got != 1 {
		t.Fatalf("expected the good study to load, got %d", got)
	}
	if got := store.nodeCount("Sponsor"); got != 1 {
		t.Fatalf("sibling table should still load, got %d Sponsor nodes", got)
	}
	if !report.Failed() {
		t.Fatalf("rejected row not surfaced in the report")
	}
	for _, tr := range report.Tables {
		if tr.Table == domain.TableStudies && tr.RowsRejected != 1 {
			t.Fatalf("expected 1 rejected study row, got %+v", tr)
		}
	}
}

func TestLoadMissingArtifactsAreEmptyTables(t *testing.T) {
	store := newMemStore()
	if err := EnsureConstraints(context.Background(), store, nil); err != nil {
		t.Fatalf("ensure constraints: %v", err)
	}
	report, err := quickLoader(store).Load(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("load over empty dir: %v", err)
	}
	if rows, _, failed := report.Totals(); rows != 0 || failed != 0 {
		t.Fatalf("expected zero rows and failures, got rows=%d failed=%d", rows, failed)
	}
}
