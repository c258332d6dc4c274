// Package extract turns a stream of nested trial records into normalized
// entity and relationship tables with bounded memory.
//
// A record is a generic JSON object with these known field paths:
//
//	study_id              string (required)
//	title, status, phase, study_type, enrollment, enrollment_type
//	start_date, completion_date
//	lead_sponsor          {name, class}
//	collaborators         [{name, class}]
//	conditions            ["term"] or [{name, mesh_id}]
//	arms                  [{label, type, description, interventions: [{id, name, type, description}]}]
//	locations             [{facility, city, state, country, latitude, longitude}]
//	outcomes              [{measure, time_frame, type, results: [{group, value, spread}]}]
//	adverse_events        [{term, serious, num_affected, num_at_risk}]
//	participant_flow      [{group, period, milestone, count}]
//	eligibility_criteria  free text
//
// Unknown fields are dropped. Absent optional sections yield zero rows.
package extract

import (
	"encoding/json"
	"strings"
)

// fieldString walks a dot-separated path and returns the scalar at the end,
// or "" when any hop is missing.
func fieldString(rec map[string]any, path string) string {
	cur := any(rec)
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[p]
		if !ok {
			return ""
		}
	}
	return scalarString(cur)
}

func fieldMap(rec map[string]any, name string) map[string]any {
	m, _ := rec[name].(map[string]any)
	return m
}

func fieldList(rec map[string]any, name string) []any {
	l, _ := rec[name].([]any)
	return l
}

// scalarString renders a decoded JSON scalar without losing the source
// literal. Readers decode numbers as json.Number, so re-extraction of the
// same input reproduces the exact same bytes.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// normKey canonicalizes a free-text name into a shared merge key.
func normKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

var interventionPrefixes = []string{"Drug:", "Other:", "Device:", "Procedure:", "Biological:"}

// normalizeInterventionName strips registry type prefixes so the same agent
// listed under different arms merges to one entity.
func normalizeInterventionName(name string) string {
	s := strings.TrimSpace(name)
	for _, prefix := range interventionPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}
