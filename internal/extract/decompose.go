package extract

import (
	"strconv"
	"strings"

	"github.com/yungbote/trialgraph/internal/domain"
	"github.com/yungbote/trialgraph/internal/pkg/etlerr"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// ConditionRef carries a condition extracted from one record, plus the MeSH
// id the record named, when it named one. The ontology resolver expands these
// into hierarchy rows.
type ConditionRef struct {
	Key    string
	Name   string
	MeshID string
}

// RecordRows is the full decomposition of one record: rows grouped by table,
// in deterministic emit order, plus the condition refs for ontology
// expansion. Either everything in a RecordRows is written or nothing is.
type RecordRows struct {
	Tables        map[string][]domain.Row
	ConditionRefs []ConditionRef
}

func newRecordRows() *RecordRows {
	return &RecordRows{Tables: make(map[string][]domain.Row)}
}

func (rr *RecordRows) add(table string, row domain.Row) {
	rr.Tables[table] = append(rr.Tables[table], row)
}

// Decomposer walks one decoded record depth-first and synthesizes entity and
// relationship rows with deterministic composite keys.
type Decomposer struct {
	log *logger.Logger
}

func NewDecomposer(log *logger.Logger) *Decomposer {
	if log == nil {
		log = logger.Nop()
	}
	return &Decomposer{log: log.With("component", "Decomposer")}
}

// Decompose fails with a DecompositionError when the record has no study_id;
// no partial rows are produced in that case.
func (d *Decomposer) Decompose(index int, rec map[string]any) (*RecordRows, error) {
	studyID := fieldString(rec, "study_id")
	if studyID == "" {
		return nil, &etlerr.DecompositionError{RecordIndex: index, Field: "study_id"}
	}

	rr := newRecordRows()

	rr.add(domain.TableStudies, domain.Row{
		"study_id":        studyID,
		"title":           fieldString(rec, "title"),
		"status":          fieldString(rec, "status"),
		"phase":           fieldString(rec, "phase"),
		"study_type":      fieldString(rec, "study_type"),
		"start_date":      fieldString(rec, "start_date"),
		"completion_date": fieldString(rec, "completion_date"),
		"enrollment":      fieldString(rec, "enrollment"),
		"enrollment_type": fieldString(rec, "enrollment_type"),
	})

	d.sponsors(rr, studyID, rec)
	d.conditions(rr, studyID, rec)
	d.arms(rr, studyID, rec)
	d.locations(rr, studyID, rec)
	d.outcomes(rr, studyID, rec)
	d.adverseEvents(rr, studyID, rec)
	d.participantFlow(rr, studyID, rec)
	d.eligibility(rr, studyID, rec)

	return rr, nil
}

func (d *Decomposer) sponsors(rr *RecordRows, studyID string, rec map[string]any) {
	emit := func(sp map[string]any, role string) {
		name := scalarString(sp["name"])
		if name == "" {
			return
		}
		key := normKey(name)
		rr.add(domain.TableSponsors, domain.Row{
			"sponsor_key": key,
			"name":        name,
			"class":       scalarString(sp["class"]),
		})
		rr.add(domain.TableSponsoredBy, domain.Row{
			"study_id":    studyID,
			"sponsor_key": key,
			"role":        role,
		})
	}
	if lead := fieldMap(rec, "lead_sponsor"); lead != nil {
		emit(lead, "lead_sponsor")
	}
	for _, item := range fieldList(rec, "collaborators") {
		if sp, ok := item.(map[string]any); ok {
			emit(sp, "collaborator")
		}
	}
}

func (d *Decomposer) conditions(rr *RecordRows, studyID string, rec map[string]any) {
	for _, item := range fieldList(rec, "conditions") {
		var name, meshID string
		switch t := item.(type) {
		case string:
			name = strings.TrimSpace(t)
		case map[string]any:
			name = scalarString(t["name"])
			meshID = scalarString(t["mesh_id"])
		}
		if name == "" {
			continue
		}
		key := normKey(name)
		rr.add(domain.TableConditions, domain.Row{
			"condition_key": key,
			"name":          name,
		})
		rr.add(domain.TableStudiesCondition, domain.Row{
			"study_id":      studyID,
			"condition_key": key,
		})
		rr.ConditionRefs = append(rr.ConditionRefs, ConditionRef{Key: key, Name: name, MeshID: meshID})
	}
}

func (d *Decomposer) arms(rr *RecordRows, studyID string, rec map[string]any) {
	// Interventions shared between arms of the same record reuse the first
	// key seen for the normalized name, even when a later mention carries an
	// explicit id; extra mentions become relationship rows only, never
	// duplicate entity rows or edges to keys no entity row carries.
	seen := map[string]string{}

	for armOrd, item := range fieldList(rec, "arms") {
		arm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		armKey := domain.KeyJoin(studyID, strconv.Itoa(armOrd))
		rr.add(domain.TableArms, domain.Row{
			"arm_key":     armKey,
			"study_id":    studyID,
			"ordinal":     strconv.Itoa(armOrd),
			"label":       scalarString(arm["label"]),
			"type":        scalarString(arm["type"]),
			"description": scalarString(arm["description"]),
		})
		rr.add(domain.TableHasArm, domain.Row{
			"study_id": studyID,
			"arm_key":  armKey,
		})

		for intOrd, it := range fieldList(arm, "interventions") {
			iv, ok := it.(map[string]any)
			if !ok {
				continue
			}
			name := normalizeInterventionName(scalarString(iv["name"]))
			if name == "" {
				continue
			}
			key, known := seen[normKey(name)]
			if !known {
				key = scalarString(iv["id"])
				if key == "" {
					key = domain.KeyJoin(studyID, strconv.Itoa(armOrd), strconv.Itoa(intOrd))
				}
				seen[normKey(name)] = key
				rr.add(domain.TableInterventions, domain.Row{
					"intervention_key": key,
					"name":             name,
					"type":             scalarString(iv["type"]),
					"description":      scalarString(iv["description"]),
				})
			}
			rr.add(domain.TableUsesIntervention, domain.Row{
				"arm_key":          armKey,
				"intervention_key": key,
			})
		}
	}
}

func (d *Decomposer) locations(rr *RecordRows, studyID string, rec map[string]any) {
	for _, item := range fieldList(rec, "locations") {
		loc, ok := item.(map[string]any)
		if !ok {
			continue
		}
		facility := scalarString(loc["facility"])
		country := scalarString(loc["country"])
		if facility == "" && country == "" {
			continue
		}
		key := domain.KeyJoin(normKey(facility), normKey(country))
		rr.add(domain.TableLocations, domain.Row{
			"location_key": key,
			"facility":     facility,
			"city":         scalarString(loc["city"]),
			"state":        scalarString(loc["state"]),
			"country":      country,
			"latitude":     scalarString(loc["latitude"]),
			"longitude":    scalarString(loc["longitude"]),
		})
		rr.add(domain.TableConductedAt, domain.Row{
			"study_id":     studyID,
			"location_key": key,
			"status":       scalarString(loc["status"]),
		})
	}
}

func (d *Decomposer) outcomes(rr *RecordRows, studyID string, rec map[string]any) {
	for outOrd, item := range fieldList(rec, "outcomes") {
		out, ok := item.(map[string]any)
		if !ok {
			continue
		}
		outcomeKey := domain.KeyJoin(studyID, "OUT", strconv.Itoa(outOrd))
		rr.add(domain.TableOutcomes, domain.Row{
			"outcome_key": outcomeKey,
			"study_id":    studyID,
			"ordinal":     strconv.Itoa(outOrd),
			"measure":     scalarString(out["measure"]),
			"time_frame":  scalarString(out["time_frame"]),
			"type":        scalarString(out["type"]),
		})
		rr.add(domain.TableHasOutcome, domain.Row{
			"study_id":    studyID,
			"outcome_key": outcomeKey,
		})

		for resOrd, rit := range fieldList(out, "results") {
			res, ok := rit.(map[string]any)
			if !ok {
				continue
			}
			resultKey := domain.KeyJoin(outcomeKey, strconv.Itoa(resOrd))
			rr.add(domain.TableOutcomeResults, domain.Row{
				"result_key":  resultKey,
				"outcome_key": outcomeKey,
				"ordinal":     strconv.Itoa(resOrd),
				"group_label": scalarString(res["group"]),
				"value":       scalarString(res["value"]),
				"spread":      scalarString(res["spread"]),
			})
			rr.add(domain.TableHasResult, domain.Row{
				"outcome_key": outcomeKey,
				"result_key":  resultKey,
			})
		}
	}
}

func (d *Decomposer) adverseEvents(rr *RecordRows, studyID string, rec map[string]any) {
	for ord, item := range fieldList(rec, "adverse_events") {
		ev, ok := item.(map[string]any)
		if !ok {
			continue
		}
		eventKey := domain.KeyJoin(studyID, "AE", strconv.Itoa(ord))
		rr.add(domain.TableAdverseEvents, domain.Row{
			"event_key":    eventKey,
			"study_id":     studyID,
			"ordinal":      strconv.Itoa(ord),
			"term":         scalarString(ev["term"]),
			"serious":      scalarString(ev["serious"]),
			"num_affected": scalarString(ev["num_affected"]),
			"num_at_risk":  scalarString(ev["num_at_risk"]),
		})
		rr.add(domain.TableReportsEvent, domain.Row{
			"study_id":  studyID,
			"event_key": eventKey,
		})
	}
}

func (d *Decomposer) participantFlow(rr *RecordRows, studyID string, rec map[string]any) {
	for ord, item := range fieldList(rec, "participant_flow") {
		pf, ok := item.(map[string]any)
		if !ok {
			continue
		}
		flowKey := domain.KeyJoin(studyID, "PF", strconv.Itoa(ord))
		rr.add(domain.TableParticipantFlows, domain.Row{
			"flow_key":    flowKey,
			"study_id":    studyID,
			"ordinal":     strconv.Itoa(ord),
			"group_label": scalarString(pf["group"]),
			"period":      scalarString(pf["period"]),
			"milestone":   scalarString(pf["milestone"]),
			"count":       scalarString(pf["count"]),
		})
		rr.add(domain.TableHasFlow, domain.Row{
			"study_id": studyID,
			"flow_key": flowKey,
		})
	}
}

func (d *Decomposer) eligibility(rr *RecordRows, studyID string, rec map[string]any) {
	text := fieldString(rec, "eligibility_criteria")
	if text == "" {
		return
	}
	inclusion, exclusion := splitEligibility(text)
	emit := func(kind, short string, lines []string) {
		for seq, t := range lines {
			key := domain.KeyJoin(studyID, short, strconv.Itoa(seq))
			rr.add(domain.TableEligibilityCriteria, domain.Row{
				"criterion_key": key,
				"study_id":      studyID,
				"kind":          kind,
				"sequence":      strconv.Itoa(seq),
				"text":          t,
			})
			rr.add(domain.TableHasCriterion, domain.Row{
				"study_id":      studyID,
				"criterion_key": key,
			})
		}
	}
	emit("INCLUSION", "IN", inclusion)
	emit("EXCLUSION", "EX", exclusion)
}

// splitEligibility is a line-based split on the "Inclusion Criteria" /
// "Exclusion Criteria" headings. Text without headings is treated as one
// inclusion criterion.
func splitEligibility(text string) (inclusion, exclusion []string) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "inclusion criteria") && !strings.Contains(lower, "exclusion criteria") {
		return []string{strings.TrimSpace(text)}, nil
	}
	mode := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ll := strings.ToLower(line)
		if strings.Contains(ll, "inclusion") && strings.Contains(ll, "criteria") {
			mode = "IN"
			continue
		}
		if strings.Contains(ll, "exclusion") && strings.Contains(ll, "criteria") {
			mode = "EX"
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "*- "))
		if line == "" {
			continue
		}
		switch mode {
		case "EX":
			exclusion = append(exclusion, line)
		default:
			inclusion = append(inclusion, line)
		}
	}
	return inclusion, exclusion
}
