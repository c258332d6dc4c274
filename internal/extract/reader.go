package extract

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// BadRecordPolicy decides what happens when one record in the stream fails
// to decode.
type BadRecordPolicy int

const (
	// SkipBadRecords drops the record, counts it, and continues.
	SkipBadRecords BadRecordPolicy = iota
	// AbortOnBadRecord fails the whole stream.
	AbortOnBadRecord
)

const maxRecordBytes = 64 << 20

// Reader produces a lazy, forward-only sequence of decoded trial records
// from either a top-level JSON array or a JSONL stream. It never buffers
// more than one record. A Reader is not restartable; re-reading requires
// reopening the underlying stream.
type Reader struct {
	policy BadRecordPolicy
	log    *logger.Logger

	arrayMode bool
	dec       *json.Decoder
	scanner   *bufio.Scanner

	started bool
	index   int
	skipped int
	onSkip  func(index int, raw string, err error)
}

type ReaderOption func(*Reader)

func WithBadRecordPolicy(p BadRecordPolicy) ReaderOption {
	return func(r *Reader) { r.policy = p }
}

// WithSkipHandler registers a callback for skipped records, used for
// dead-letter accounting.
func WithSkipHandler(fn func(index int, raw string, err error)) ReaderOption {
	return func(r *Reader) { r.onSkip = fn }
}

// NewReader inspects the first non-space byte to choose array or JSONL mode.
func NewReader(src io.Reader, log *logger.Logger, opts ...ReaderOption) (*Reader, error) {
	if log == nil {
		log = logger.Nop()
	}
	r := &Reader{log: log.With("component", "RecordReader")}
	for _, opt := range opts {
		opt(r)
	}

	buffered := bufio.NewReaderSize(src, 1<<20)
	first, err := peekFirstByte(buffered)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty stream", etlerr.ErrMalformedInput)
		}
		return nil, err
	}

	switch first {
	case '[':
		r.arrayMode = true
		r.dec = json.NewDecoder(buffered)
		r.dec.UseNumber()
	case '{':
		sc := bufio.NewScanner(buffered)
		sc.Buffer(make([]byte, 0, 64<<10), maxRecordBytes)
		r.scanner = sc
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", etlerr.ErrMalformedInput, first)
	}
	return r, nil
}

// Open opens a path for reading, transparently unwrapping gzip. The caller
// closes the returned closer.
func Open(path string, log *logger.Logger, opts ...ReaderOption) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	var src io.Reader = f
	closer := io.Closer(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("%w: bad gzip header: %v", etlerr.ErrMalformedInput, err)
		}
		src = gz
		closer = multiCloser{gz, f}
	}
	r, err := NewReader(src, log, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return r, closer, nil
}

// Next returns the next record. io.EOF signals a clean end of stream.
func (r *Reader) Next() (map[string]any, error) {
	if r.arrayMode {
		return r.nextArray()
	}
	return r.nextLine()
}

// Skipped reports how many records were dropped under SkipBadRecords.
func (r *Reader) Skipped() int { return r.skipped }

// Index reports how many records have been consumed so far.
func (r *Reader) Index() int { return r.index }

func (r *Reader) nextArray() (map[string]any, error) {
	if !r.started {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", etlerr.ErrMalformedInput, err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return nil, fmt.Errorf("%w: expected top-level array", etlerr.ErrMalformedInput)
		}
		r.started = true
	}
	for r.dec.More() {
		var raw json.RawMessage
		if err := r.dec.Decode(&raw); err != nil {
			// Syntax errors inside the array corrupt decoder state; this is
			// a stream-level failure regardless of policy.
			return nil, fmt.Errorf("%w: element %d: %v", etlerr.ErrMalformedInput, r.index, err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			if r.policy == AbortOnBadRecord {
				return nil, fmt.Errorf("%w: element %d: %v", etlerr.ErrMalformedInput, r.index, err)
			}
			r.skip(string(raw), err)
			continue
		}
		r.index++
		return rec, nil
	}
	if _, err := r.dec.Token(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", etlerr.ErrMalformedInput, err)
	}
	return nil, io.EOF
}

func (r *Reader) nextLine() (map[string]any, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := decodeRecord(line)
		if err != nil {
			if r.policy == AbortOnBadRecord {
				return nil, fmt.Errorf("%w: line %d: %v", etlerr.ErrMalformedInput, r.index, err)
			}
			r.skip(string(line), err)
			continue
		}
		r.index++
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", etlerr.ErrMalformedInput, err)
	}
	return nil, io.EOF
}

func (r *Reader) skip(raw string, err error) {
	r.skipped++
	r.index++
	r.log.Warn("record skipped", "index", r.index-1, "error", err)
	if r.onSkip != nil {
		r.onSkip(r.index-1, raw, err)
	}
}

func decodeRecord(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func peekFirstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			if err := br.UnreadByte(); err != nil {
				return 0, err
			}
			return b, nil
		}
	}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
