package domain

// Row is one flat record destined for a single output table. Values are kept
// as strings at this layer; Column types describe how the loader should
// coerce them before handing them to the graph store.
type Row map[string]string

type ColumnType string

const (
	ColString ColumnType = "string"
	ColInt    ColumnType = "int"
	ColFloat  ColumnType = "float"
	ColBool   ColumnType = "bool"
	ColDate   ColumnType = "date"
)

type Column struct {
	Name string
	Type ColumnType
}

// TableSpec fixes the column set and order of one output table. Column order
// is what makes re-extraction byte-identical.
type TableSpec struct {
	Name    string
	Key     string
	Columns []Column
}

func (s TableSpec) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Node tables.
const (
	TableStudies             = "studies"
	TableArms                = "arms"
	TableInterventions       = "interventions"
	TableConditions          = "conditions"
	TableMeshTerms           = "mesh_terms"
	TableSponsors            = "sponsors"
	TableLocations           = "locations"
	TableOutcomes            = "outcomes"
	TableOutcomeResults      = "outcome_results"
	TableAdverseEvents       = "adverse_events"
	TableParticipantFlows    = "participant_flows"
	TableEligibilityCriteria = "eligibility_criteria"
)

// Relationship tables.
const (
	TableHasArm           = "has_arm"
	TableUsesIntervention = "uses_intervention"
	TableStudiesCondition = "studies_condition"
	TableSponsoredBy      = "sponsored_by"
	TableConductedAt      = "conducted_at"
	TableHasOutcome       = "has_outcome"
	TableHasResult        = "has_result"
	TableReportsEvent     = "reports_event"
	TableHasFlow          = "has_flow"
	TableHasCriterion     = "has_criterion"
	TableConditionMesh    = "condition_mesh"
	TableMeshIsA          = "mesh_is_a"
)

// Tables lists every output table in a fixed order. The table writer flushes
// in this order so two runs over the same input produce identical artifacts.
var Tables = []TableSpec{
	{Name: TableStudies, Key: "study_id", Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "title", Type: ColString},
		{Name: "status", Type: ColString},
		{Name: "phase", Type: ColString},
		{Name: "study_type", Type: ColString},
		{Name: "start_date", Type: ColDate},
		{Name: "completion_date", Type: ColDate},
		{Name: "enrollment", Type: ColInt},
		{Name: "enrollment_type", Type: ColString},
	}},
	{Name: TableArms, Key: "arm_key", Columns: []Column{
		{Name: "arm_key", Type: ColString},
		{Name: "study_id", Type: ColString},
		{Name: "ordinal", Type: ColInt},
		{Name: "label", Type: ColString},
		{Name: "type", Type: ColString},
		{Name: "description", Type: ColString},
	}},
	{Name: TableInterventions, Key: "intervention_key", Columns: []Column{
		{Name: "intervention_key", Type: ColString},
		{Name: "name", Type: ColString},
		{Name: "type", Type: ColString},
		{Name: "description", Type: ColString},
	}},
	{Name: TableConditions, Key: "condition_key", Columns: []Column{
		{Name: "condition_key", Type: ColString},
		{Name: "name", Type: ColString},
	}},
	{Name: TableMeshTerms, Key: "mesh_id", Columns: []Column{
		{Name: "mesh_id", Type: ColString},
		{Name: "term", Type: ColString},
		{Name: "tree_number", Type: ColString},
	}},
	{Name: TableSponsors, Key: "sponsor_key", Columns: []Column{
		{Name: "sponsor_key", Type: ColString},
		{Name: "name", Type: ColString},
		{Name: "class", Type: ColString},
	}},
	{Name: TableLocations, Key: "location_key", Columns: []Column{
		{Name: "location_key", Type: ColString},
		{Name: "facility", Type: ColString},
		{Name: "city", Type: ColString},
		{Name: "state", Type: ColString},
		{Name: "country", Type: ColString},
		{Name: "latitude", Type: ColFloat},
		{Name: "longitude", Type: ColFloat},
	}},
	{Name: TableOutcomes, Key: "outcome_key", Columns: []Column{
		{Name: "outcome_key", Type: ColString},
		{Name: "study_id", Type: ColString},
		{Name: "ordinal", Type: ColInt},
		{Name: "measure", Type: ColString},
		{Name: "time_frame", Type: ColString},
		{Name: "type", Type: ColString},
	}},
	{Name: TableOutcomeResults, Key: "result_key", Columns: []Column{
		{Name: "result_key", Type: ColString},
		{Name: "outcome_key", Type: ColString},
		{Name: "ordinal", Type: ColInt},
		{Name: "group_label", Type: ColString},
		{Name: "value", Type: ColString},
		{Name: "spread", Type: ColString},
	}},
	{Name: TableAdverseEvents, Key: "event_key", Columns: []Column{
		{Name: "event_key", Type: ColString},
		{Name: "study_id", Type: ColString},
		{Name: "ordinal", Type: ColInt},
		{Name: "term", Type: ColString},
		{Name: "serious", Type: ColBool},
		{Name: "num_affected", Type: ColInt},
		{Name: "num_at_risk", Type: ColInt},
	}},
	{Name: TableParticipantFlows, Key: "flow_key", Columns: []Column{
		{Name: "flow_key", Type: ColString},
		{Name: "study_id", Type: ColString},
		{Name: "ordinal", Type: ColInt},
		{Name: "group_label", Type: ColString},
		{Name: "period", Type: ColString},
		{Name: "milestone", Type: ColString},
		{Name: "count", Type: ColInt},
	}},
	{Name: TableEligibilityCriteria, Key: "criterion_key", Columns: []Column{
		{Name: "criterion_key", Type: ColString},
		{Name: "study_id", Type: ColString},
		{Name: "kind", Type: ColString},
		{Name: "sequence", Type: ColInt},
		{Name: "text", Type: ColString},
	}},

	{Name: TableHasArm, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "arm_key", Type: ColString},
	}},
	{Name: TableUsesIntervention, Columns: []Column{
		{Name: "arm_key", Type: ColString},
		{Name: "intervention_key", Type: ColString},
	}},
	{Name: TableStudiesCondition, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "condition_key", Type: ColString},
	}},
	{Name: TableSponsoredBy, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "sponsor_key", Type: ColString},
		{Name: "role", Type: ColString},
	}},
	{Name: TableConductedAt, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "location_key", Type: ColString},
		{Name: "status", Type: ColString},
	}},
	{Name: TableHasOutcome, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "outcome_key", Type: ColString},
	}},
	{Name: TableHasResult, Columns: []Column{
		{Name: "outcome_key", Type: ColString},
		{Name: "result_key", Type: ColString},
	}},
	{Name: TableReportsEvent, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "event_key", Type: ColString},
	}},
	{Name: TableHasFlow, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "flow_key", Type: ColString},
	}},
	{Name: TableHasCriterion, Columns: []Column{
		{Name: "study_id", Type: ColString},
		{Name: "criterion_key", Type: ColString},
	}},
	{Name: TableConditionMesh, Columns: []Column{
		{Name: "condition_key", Type: ColString},
		{Name: "mesh_id", Type: ColString},
	}},
	{Name: TableMeshIsA, Columns: []Column{
		{Name: "child_id", Type: ColString},
		{Name: "parent_id", Type: ColString},
	}},
}

var tablesByName = func() map[string]TableSpec {
	m := make(map[string]TableSpec, len(Tables))
	for _, t := range Tables {
		m[t.Name] = t
	}
	return m
}()

func TableByName(name string) (TableSpec, bool) {
	t, ok := tablesByName[name]
	return t, ok
}

// KeyJoin builds a composite key by joining a parent key with a local part.
// Composite keys embed their parent key so a child row can never exist
// without identifying its parent.
func KeyJoin(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "::"
		}
		out += p
	}
	return out
}
