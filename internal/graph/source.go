package graph

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yungbote/trialgraph/internal/domain"
)

// tableSource streams one CSV artifact back as typed batches. The loader
// treats artifacts as read-only inputs.
type tableSource struct {
	spec     domain.TableSpec
	file     *os.File
	reader   *csv.Reader
	columns  []string
	done     bool
	rejected int
}

// openTable returns (nil, nil) when the artifact does not exist; an absent
// section upstream legitimately yields no table.
func openTable(dir string, spec domain.TableSpec) (*tableSource, error) {
	path := filepath.Join(dir, spec.Name+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s header: %w", spec.Name, err)
	}
	cols := make([]string, len(header))
	copy(cols, header)
	return &tableSource{spec: spec, file: f, reader: r, columns: cols}, nil
}

// NextBatch reads up to size rows; a zero-length batch means the table is
// exhausted. A row with an uncoercible cell is dropped and counted, not
// fatal; only the CSV stream itself breaking aborts the table.
func (s *tableSource) NextBatch(size int) ([]map[string]any, error) {
	if s == nil || s.done {
		return nil, nil
	}
	batch := make([]map[string]any, 0, size)
	for len(batch) < size {
		rec, err := s.reader.Read()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			return batch, fmt.Errorf("read %s: %w", s.spec.Name, err)
		}
		row := make(map[string]any, len(s.columns))
		bad := false
		for i, name := range s.columns {
			if i >= len(rec) {
				break
			}
			col, ok := s.spec.Column(name)
			if !ok {
				continue
			}
			v, err := coerce(col.Type, rec[i])
			if err != nil {
				s.rejected++
				bad = true
				break
			}
			if v != nil {
				row[name] = v
			}
		}
		if bad {
			continue
		}
		batch = append(batch, row)
	}
	return batch, nil
}

// Rejected reports how many rows were dropped for uncoercible cells.
func (s *tableSource) Rejected() int {
	if s == nil {
		return 0
	}
	return s.rejected
}

func (s *tableSource) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// coerce converts the CSV string into the scalar the graph store should
// receive. Empty values are omitted so merges never overwrite a property
// with an empty one.
func coerce(t domain.ColumnType, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	switch t {
	case domain.ColInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return i, nil
	case domain.ColFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case domain.ColBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return raw, nil
	}
}
