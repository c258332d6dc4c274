package extract

import (
	"context"
	"errors"
	"io"

	"github.com/yungbote/trialgraph/internal/domain"
	"github.com/yungbote/trialgraph/internal/ontology"
	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// Summary is the extraction run report: never silent partial success.
type Summary struct {
	RecordsProcessed int
	RecordsSkipped   int
	DecompErrors     int
	UnknownOntology  int
	TableCounts      map[string]int64
}

// Pipeline wires reader, decomposer, ontology resolver, and table writer
// into the single-pass streaming extraction.
type Pipeline struct {
	Reader     *Reader
	Decomposer *Decomposer
	Writer     *TableWriter
	Resolver   *ontology.Resolver // optional
	DeadLetter *DeadLetter        // optional
	Log        *logger.Logger
}

// Run consumes the stream to the end and returns a summary. Per-record
// failures are recovered; only stream-level errors abort.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	log := p.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "ExtractPipeline")

	sum := &Summary{}
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec, err := p.Reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, err
		}

		index := p.Reader.Index() - 1
		rows, err := p.Decomposer.Decompose(index, rec)
		if err != nil {
			var derr *etlerr.DecompositionError
			if errors.As(err, &derr) {
				sum.DecompErrors++
				log.Warn("record excluded", "index", index, "error", err)
				p.DeadLetter.Write(index, "decomposition", derr.Field)
				continue
			}
			return sum, err
		}

		if p.Resolver != nil {
			for _, ref := range rows.ConditionRefs {
				hier, err := p.Resolver.Resolve(ref.Key, ref.Name, ref.MeshID)
				if err != nil {
					if errors.Is(err, etlerr.ErrUnknownOntologyRef) {
						sum.UnknownOntology++
						continue
					}
					return sum, err
				}
				for _, r := range hier.Mesh {
					rows.add(domain.TableMeshTerms, r)
				}
				for _, r := range hier.IsA {
					rows.add(domain.TableMeshIsA, r)
				}
				for _, r := range hier.ConditionMesh {
					rows.add(domain.TableConditionMesh, r)
				}
			}
		}

		if err := p.Writer.AppendAll(rows); err != nil {
			return sum, err
		}
		sum.RecordsProcessed++
	}

	if err := p.Writer.Close(); err != nil {
		return sum, err
	}
	sum.RecordsSkipped = p.Reader.Skipped()
	sum.TableCounts = p.Writer.Counts()

	log.Info("extraction complete",
		"records_processed", sum.RecordsProcessed,
		"records_skipped", sum.RecordsSkipped,
		"decomposition_errors", sum.DecompErrors,
		"unknown_ontology_refs", sum.UnknownOntology,
	)
	return sum, nil
}
