package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/trialgraph/internal/domain"
	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// TableReport is the per-table outcome of one load.
type TableReport struct {
	Table            string
	Rows             int
	RowsRejected     int
	BatchesCommitted int
	BatchesFailed    int
}

// Report aggregates a load run. A run with failed batches or rejected rows
// is best-effort partial success and must be surfaced, never swallowed.
type Report struct {
	RunID  uuid.UUID
	Tables []TableReport

	mu sync.Mutex
}

func (r *Report) record(tr TableReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tables = append(r.Tables, tr)
}

func (r *Report) sorted() {
	sort.Slice(r.Tables, func(i, j int) bool { return r.Tables[i].Table < r.Tables[j].Table })
}

func (r *Report) Failed() bool {
	for _, t := range r.Tables {
		if t.BatchesFailed > 0 || t.RowsRejected > 0 {
			return true
		}
	}
	return false
}

func (r *Report) Totals() (rows, committed, failed int) {
	for _, t := range r.Tables {
		rows += t.Rows
		committed += t.BatchesCommitted
		failed += t.BatchesFailed
	}
	return rows, committed, failed
}

// Loader applies the normalized tables to the graph store in dependency
// order: independent node tables first (in parallel), then studies, then
// children, then relationships. Writes are batched; a batch that keeps
// failing is reported and skipped while its siblings continue.
type Loader struct {
	Store Store
	Log   *logger.Logger

	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	BatchTimeout time.Duration
}

func NewLoader(store Store, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		Store:        store,
		Log:          log.With("component", "GraphLoader"),
		BatchSize:    5000,
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
		BatchTimeout: 60 * time.Second,
	}
}

// Load refuses to run unless every uniqueness constraint is present, then
// walks the tiers. Cancellation is honored between batches.
func (l *Loader) Load(ctx context.Context, dir string) (*Report, error) {
	if err := VerifyConstraints(ctx, l.Store); err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.New()}
	log := l.Log.With("run_id", report.RunID)
	log.Info("graph load starting", "dir", dir)

	for _, tier := range NodeTiers {
		g, gctx := errgroup.WithContext(ctx)
		for _, m := range tier {
			m := m
			g.Go(func() error {
				tr, err := l.loadNodeTable(gctx, dir, m)
				if err != nil {
					return err
				}
				report.record(tr)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}

	for _, m := range RelMappings {
		tr, err := l.loadRelTable(ctx, dir, m)
		if err != nil {
			return report, err
		}
		report.record(tr)
	}

	report.sorted()
	rows, committed, failed := report.Totals()
	log.Info("graph load finished",
		"rows", rows,
		"batches_committed", committed,
		"batches_failed", failed,
	)
	return report, nil
}

func (l *Loader) loadNodeTable(ctx context.Context, dir string, m NodeMapping) (TableReport, error) {
	tr := TableReport{Table: m.Table}
	src, err := openTable(dir, mustSpec(m.Table))
	if err != nil {
		return tr, err
	}
	if src == nil {
		return tr, nil
	}
	defer src.Close()

	batchNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return tr, err
		}
		batch, err := src.NextBatch(l.BatchSize)
		if err != nil {
			return tr, err
		}
		if len(batch) == 0 {
			break
		}
		batchNum++
		tr.Rows += len(batch)
		apply := func(c context.Context) error {
			return l.Store.UpsertNodes(c, m.Label, m.Key, batch)
		}
		if l.applyBatch(ctx, m.Table, batchNum, apply) {
			tr.BatchesCommitted++
		} else {
			tr.BatchesFailed++
		}
	}
	if tr.RowsRejected = src.Rejected(); tr.RowsRejected > 0 {
		l.Log.Warn("rows rejected", "table", m.Table, "rows", tr.RowsRejected)
	}
	return tr, nil
}

func (l *Loader) loadRelTable(ctx context.Context, dir string, m RelMapping) (TableReport, error) {
	tr := TableReport{Table: m.Table}
	src, err := openTable(dir, mustSpec(m.Table))
	if err != nil {
		return tr, err
	}
	if src == nil {
		return tr, nil
	}
	defer src.Close()

	batchNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return tr, err
		}
		batch, err := src.NextBatch(l.BatchSize)
		if err != nil {
			return tr, err
		}
		if len(batch) == 0 {
			break
		}
		rels := make([]RelRow, 0, len(batch))
		for _, row := range batch {
			srcKey, _ := row[m.SrcCol].(string)
			dstKey, _ := row[m.DstCol].(string)
			if srcKey == "" || dstKey == "" {
				continue
			}
			props := make(map[string]any, len(row))
			for k, v := range row {
				if k == m.SrcCol || k == m.DstCol {
					continue
				}
				props[k] = v
			}
			rels = append(rels, RelRow{Src: srcKey, Dst: dstKey, Props: props})
		}
		if len(rels) == 0 {
			continue
		}
		batchNum++
		tr.Rows += len(rels)
		apply := func(c context.Context) error {
			return l.Store.UpsertRelationships(c, m.Spec, rels)
		}
		if l.applyBatch(ctx, m.Table, batchNum, apply) {
			tr.BatchesCommitted++
		} else {
			tr.BatchesFailed++
		}
	}
	if tr.RowsRejected = src.Rejected(); tr.RowsRejected > 0 {
		l.Log.Warn("rows rejected", "table", m.Table, "rows", tr.RowsRejected)
	}
	return tr, nil
}

// applyBatch runs one batch with a time budget, retrying with backoff.
// Returns false once retries are exhausted; the caller keeps going.
func (l *Loader) applyBatch(ctx context.Context, table string, batchNum int, apply func(context.Context) error) bool {
	var lastErr error
	for attempt := 1; attempt <= l.MaxRetries; attempt++ {
		bctx, cancel := context.WithTimeout(ctx, l.BatchTimeout)
		lastErr = apply(bctx)
		cancel()
		if lastErr == nil {
			return true
		}
		if ctx.Err() != nil {
			break
		}
		l.Log.Warn("batch failed, retrying",
			"table", table,
			"batch", batchNum,
			"attempt", attempt,
			"error", lastErr,
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(l.RetryBackoff * time.Duration(attempt)):
		}
	}
	err := &etlerr.BatchError{Table: table, Batch: batchNum, Err: lastErr}
	l.Log.Error("batch abandoned", "table", table, "batch", batchNum, "error", err)
	return false
}

func mustSpec(name string) domain.TableSpec {
	spec, ok := domain.TableByName(name)
	if !ok {
		panic("graph: no table spec for " + name)
	}
	return spec
}
