// Package ontology expands condition references into MeSH hierarchy rows
// using a precomputed ancestor table. It never derives the hierarchy itself
// and never dedupes across records; the graph loader's merge semantics make
// repeated edges harmless.
package ontology

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/trialgraph/internal/domain"
	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// Term is one MeSH descriptor plus its ordered ancestor chain, nearest
// parent first. The chain is a documented-acyclic input; the resolver does
// not verify acyclicity.
type Term struct {
	ID         string
	Name       string
	TreeNumber string
	Ancestors  []string
}

// Resolver maps condition names or explicit MeSH ids to hierarchy rows.
type Resolver struct {
	byID   map[string]Term
	byName map[string]string
	log    *logger.Logger

	unknown int
}

func NewResolver(terms []Term, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	r := &Resolver{
		byID:   make(map[string]Term, len(terms)),
		byName: make(map[string]string, len(terms)),
		log:    log.With("component", "OntologyResolver"),
	}
	for _, t := range terms {
		r.byID[t.ID] = t
		if t.Name != "" {
			r.byName[normTerm(t.Name)] = t.ID
		}
	}
	return r
}

// LoadAncestorTable parses the precomputed ancestor CSV with header
// mesh_id,term,tree_number,ancestors where ancestors is a pipe-separated
// chain ordered nearest parent first.
func LoadAncestorTable(src io.Reader, log *logger.Logger) (*Resolver, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = 4
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ontology: read ancestor table header: %w", err)
	}
	if len(header) != 4 || header[0] != "mesh_id" {
		return nil, fmt.Errorf("ontology: unexpected ancestor table header %v", header)
	}
	var terms []Term
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ontology: read ancestor table: %w", err)
		}
		t := Term{ID: strings.TrimSpace(rec[0]), Name: strings.TrimSpace(rec[1]), TreeNumber: strings.TrimSpace(rec[2])}
		if t.ID == "" {
			continue
		}
		for _, a := range strings.Split(rec[3], "|") {
			if a = strings.TrimSpace(a); a != "" {
				t.Ancestors = append(t.Ancestors, a)
			}
		}
		terms = append(terms, t)
	}
	return NewResolver(terms, log), nil
}

// Resolve returns the hierarchy rows for one condition: MeSH node rows for
// the term and its ancestors, one IS_A edge per adjacent (child, parent)
// pair up the chain, and a HAS_MESH edge from the condition. A condition
// naming an unknown id returns an error wrapping ErrUnknownOntologyRef,
// logged and counted; callers treat it as a soft skip.
func (r *Resolver) Resolve(conditionKey, name, meshID string) (*domain.HierarchyRows, error) {
	if meshID == "" {
		meshID = r.byName[normTerm(name)]
	}
	term, ok := r.byID[meshID]
	if meshID == "" || !ok {
		r.unknown++
		r.log.Warn("unknown ontology reference", "condition", conditionKey, "mesh_id", meshID)
		return nil, fmt.Errorf("%w: condition %s mesh_id %q", etlerr.ErrUnknownOntologyRef, conditionKey, meshID)
	}

	out := &domain.HierarchyRows{}
	out.Mesh = append(out.Mesh, domain.Row{
		"mesh_id":     term.ID,
		"term":        term.Name,
		"tree_number": term.TreeNumber,
	})
	out.ConditionMesh = append(out.ConditionMesh, domain.Row{
		"condition_key": conditionKey,
		"mesh_id":       term.ID,
	})

	child := term.ID
	for _, parent := range term.Ancestors {
		pt, ok := r.byID[parent]
		row := domain.Row{"mesh_id": parent}
		if ok {
			row["term"] = pt.Name
			row["tree_number"] = pt.TreeNumber
		}
		out.Mesh = append(out.Mesh, row)
		out.IsA = append(out.IsA, domain.Row{
			"child_id":  child,
			"parent_id": parent,
		})
		child = parent
	}
	return out, nil
}

// Unknown reports how many condition references could not be resolved.
func (r *Resolver) Unknown() int { return r.unknown }

func normTerm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
