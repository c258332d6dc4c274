package extract

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

func drain(t *testing.T, r *Reader) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, rec)
	}
}

func TestReaderArrayMode(t *testing.T) {
	src := `[{"study_id":"S1"},{"study_id":"S2"}]`
	r, err := NewReader(strings.NewReader(src), logger.Nop())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	recs := drain(t, r)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if got := recs[1]["study_id"]; got != "S2" {
		t.Fatalf("unexpected second record: %#v", recs[1])
	}
}

func TestReaderJSONLMode(t *testing.T) {
	src := "{\"study_id\":\"S1\"}\n\n{\"study_id\":\"S2\"}\n"
	r, err := NewReader(strings.NewReader(src), logger.Nop())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	recs := drain(t, r)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}

func TestReaderRejectsGarbageStream(t *testing.T) {
	if _, err := NewReader(strings.NewReader("not json at all"), logger.Nop()); !errors.Is(err, etlerr.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestReaderRejectsEmptyStream(t *testing.T) {
	if _, err := NewReader(strings.NewReader("   "), logger.Nop()); !errors.Is(err, etlerr.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestReaderSkipsBadJSONLRecords(t *testing.T) {
	src := "{\"study_id\":\"S1\"}\n{oops}\n{\"study_id\":\"S3\"}\n"
	var skipped []int
	r, err := NewReader(strings.NewReader(src), logger.Nop(),
		WithBadRecordPolicy(SkipBadRecords),
		WithSkipHandler(func(index int, raw string, err error) { skipped = append(skipped, index) }),
	)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	recs := drain(t, r)
	if len(recs) != 2 {
		t.Fatalf("expected 2 good records, got %d", len(recs))
	}
	if r.Skipped() != 1 {
		t.Fatalf("expected 1 skipped, got %d", r.Skipped())
	}
	if len(skipped) != 1 || skipped[0] != 1 {
		t.Fatalf("unexpected skip indexes: %v", skipped)
	}
}

func TestReaderAbortPolicy(t *testing.T) {
	src := "{\"study_id\":\"S1\"}\n{oops}\n"
	r, err := NewReader(strings.NewReader(src), logger.Nop(), WithBadRecordPolicy(AbortOnBadRecord))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if _, err := r.Next(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, etlerr.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestReaderNumbersKeepSourceLiteral(t *testing.T) {
	src := `[{"study_id":"S1","enrollment":120}]`
	r, err := NewReader(strings.NewReader(src), logger.Nop())
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	recs := drain(t, r)
	if got := scalarString(recs[0]["enrollment"]); got != "120" {
		t.Fatalf("expected literal 120, got %q", got)
	}
}
