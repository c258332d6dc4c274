package extract

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/trialgraph/internal/domain"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

const flushRetries = 2

// TableWriter buffers rows per table and appends them to one CSV artifact
// per table once a buffer reaches the flush threshold. Memory stays bounded
// by threshold x table count regardless of input size. Rows keep arrival
// order within a table.
type TableWriter struct {
	dir       string
	threshold int
	log       *logger.Logger

	bufs    map[string][]domain.Row
	started map[string]bool
	counts  map[string]int64
}

func NewTableWriter(dir string, threshold int, log *logger.Logger) (*TableWriter, error) {
	if threshold <= 0 {
		threshold = 1000
	}
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("table writer: mkdir %s: %w", dir, err)
	}
	return &TableWriter{
		dir:       dir,
		threshold: threshold,
		log:       log.With("component", "TableWriter"),
		bufs:      make(map[string][]domain.Row),
		started:   make(map[string]bool),
		counts:    make(map[string]int64),
	}, nil
}

// Append buffers one row. The table must be one of the declared specs.
func (w *TableWriter) Append(table string, row domain.Row) error {
	spec, ok := domain.TableByName(table)
	if !ok {
		return fmt.Errorf("table writer: unknown table %q", table)
	}
	w.bufs[table] = append(w.bufs[table], row)
	w.counts[table]++
	if len(w.bufs[table]) >= w.threshold {
		return w.flush(spec)
	}
	return nil
}

// AppendAll writes a full record decomposition. Tables are visited in spec
// order so flush timing is deterministic.
func (w *TableWriter) AppendAll(rr *RecordRows) error {
	for _, spec := range domain.Tables {
		for _, row := range rr.Tables[spec.Name] {
			if err := w.Append(spec.Name, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes every buffer. The writer is unusable afterwards.
func (w *TableWriter) Close() error {
	var firstErr error
	for _, spec := range domain.Tables {
		if len(w.bufs[spec.Name]) == 0 {
			continue
		}
		if err := w.flush(spec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Counts reports rows appended per table.
func (w *TableWriter) Counts() map[string]int64 {
	out := make(map[string]int64, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

func (w *TableWriter) flush(spec domain.TableSpec) error {
	rows := w.bufs[spec.Name]
	if len(rows) == 0 {
		return nil
	}
	var err error
	for attempt := 0; attempt <= flushRetries; attempt++ {
		if err = w.writeRows(spec, rows); err == nil {
			w.bufs[spec.Name] = w.bufs[spec.Name][:0]
			return nil
		}
		w.log.Warn("flush failed", "table", spec.Name, "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("table writer: flush %s: %w", spec.Name, err)
}

func (w *TableWriter) writeRows(spec domain.TableSpec, rows []domain.Row) error {
	path := filepath.Join(w.dir, spec.Name+".csv")
	writeHeader := !w.started[spec.Name]
	if writeHeader {
		if _, err := os.Stat(path); err == nil {
			// Artifact already exists from a previous run; keep appending.
			writeHeader = false
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		header := make([]string, len(spec.Columns))
		for i, c := range spec.Columns {
			header[i] = c.Name
		}
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	record := make([]string, len(spec.Columns))
	for _, row := range rows {
		for i, c := range spec.Columns {
			record[i] = row[c.Name]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	w.started[spec.Name] = true
	return f.Sync()
}

// DeadLetter collects skipped and rejected records as JSONL for later
// inspection.
type DeadLetter struct {
	f *os.File
}

func NewDeadLetter(dir string) (*DeadLetter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "dead_letter.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DeadLetter{f: f}, nil
}

func (d *DeadLetter) Write(index int, reason, excerpt string) {
	if d == nil || d.f == nil {
		return
	}
	if len(excerpt) > 400 {
		excerpt = excerpt[:400]
	}
	entry, err := json.Marshal(map[string]any{
		"index":   index,
		"reason":  reason,
		"excerpt": excerpt,
	})
	if err != nil {
		return
	}
	_, _ = d.f.Write(append(entry, '\n'))
}

func (d *DeadLetter) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	return d.f.Close()
}
