package graph

import "github.com/yungbote/trialgraph/internal/domain"

// NodeMapping binds one node table to its label and merge key.
type NodeMapping struct {
	Table string
	Label string
	Key   string
}

// RelMapping binds one relationship table to its spec and the columns that
// carry the endpoint keys. Remaining columns become edge attributes.
type RelMapping struct {
	Table  string
	Spec   RelSpec
	SrcCol string
	DstCol string
}

// NodeTiers is the dependency order for node loads. Tables within a tier are
// independent of each other and may load in parallel; a tier only starts
// after the previous one finished.
var NodeTiers = [][]NodeMapping{
	{
		{Table: domain.TableSponsors, Label: "Sponsor", Key: "sponsor_key"},
		{Table: domain.TableConditions, Label: "Condition", Key: "condition_key"},
		{Table: domain.TableMeshTerms, Label: "MeshTerm", Key: "mesh_id"},
		{Table: domain.TableLocations, Label: "Location", Key: "location_key"},
	},
	{
		{Table: domain.TableStudies, Label: "Study", Key: "study_id"},
	},
	{
		{Table: domain.TableArms, Label: "Arm", Key: "arm_key"},
		{Table: domain.TableInterventions, Label: "Intervention", Key: "intervention_key"},
		{Table: domain.TableOutcomes, Label: "Outcome", Key: "outcome_key"},
		{Table: domain.TableAdverseEvents, Label: "AdverseEvent", Key: "event_key"},
		{Table: domain.TableParticipantFlows, Label: "ParticipantFlow", Key: "flow_key"},
		{Table: domain.TableEligibilityCriteria, Label: "EligibilityCriterion", Key: "criterion_key"},
	},
	{
		{Table: domain.TableOutcomeResults, Label: "OutcomeResult", Key: "result_key"},
	},
}

// RelMappings load strictly after every node tier.
var RelMappings = []RelMapping{
	{Table: domain.TableHasArm, SrcCol: "study_id", DstCol: "arm_key",
		Spec: RelSpec{Label: "HAS_ARM", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "Arm", DstKey: "arm_key"}},
	{Table: domain.TableUsesIntervention, SrcCol: "arm_key", DstCol: "intervention_key",
		Spec: RelSpec{Label: "USES_INTERVENTION", SrcLabel: "Arm", SrcKey: "arm_key", DstLabel: "Intervention", DstKey: "intervention_key"}},
	{Table: domain.TableStudiesCondition, SrcCol: "study_id", DstCol: "condition_key",
		Spec: RelSpec{Label: "STUDIES", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "Condition", DstKey: "condition_key"}},
	{Table: domain.TableSponsoredBy, SrcCol: "study_id", DstCol: "sponsor_key",
		Spec: RelSpec{Label: "SPONSORED_BY", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "Sponsor", DstKey: "sponsor_key"}},
	{Table: domain.TableConductedAt, SrcCol: "study_id", DstCol: "location_key",
		Spec: RelSpec{Label: "CONDUCTED_AT", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "Location", DstKey: "location_key"}},
	{Table: domain.TableHasOutcome, SrcCol: "study_id", DstCol: "outcome_key",
		Spec: RelSpec{Label: "HAS_OUTCOME", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "Outcome", DstKey: "outcome_key"}},
	{Table: domain.TableHasResult, SrcCol: "outcome_key", DstCol: "result_key",
		Spec: RelSpec{Label: "HAS_RESULT", SrcLabel: "Outcome", SrcKey: "outcome_key", DstLabel: "OutcomeResult", DstKey: "result_key"}},
	{Table: domain.TableReportsEvent, SrcCol: "study_id", DstCol: "event_key",
		Spec: RelSpec{Label: "REPORTS_EVENT", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "AdverseEvent", DstKey: "event_key"}},
	{Table: domain.TableHasFlow, SrcCol: "study_id", DstCol: "flow_key",
		Spec: RelSpec{Label: "HAS_FLOW", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "ParticipantFlow", DstKey: "flow_key"}},
	{Table: domain.TableHasCriterion, SrcCol: "study_id", DstCol: "criterion_key",
		Spec: RelSpec{Label: "HAS_CRITERION", SrcLabel: "Study", SrcKey: "study_id", DstLabel: "EligibilityCriterion", DstKey: "criterion_key"}},
	{Table: domain.TableConditionMesh, SrcCol: "condition_key", DstCol: "mesh_id",
		Spec: RelSpec{Label: "HAS_MESH", SrcLabel: "Condition", SrcKey: "condition_key", DstLabel: "MeshTerm", DstKey: "mesh_id"}},
	{Table: domain.TableMeshIsA, SrcCol: "child_id", DstCol: "parent_id",
		Spec: RelSpec{Label: "IS_A", SrcLabel: "MeshTerm", SrcKey: "mesh_id", DstLabel: "MeshTerm", DstKey: "mesh_id"}},
}

// NodeMappings flattens NodeTiers, used by schema init.
func NodeMappings() []NodeMapping {
	var out []NodeMapping
	for _, tier := range NodeTiers {
		out = append(out, tier...)
	}
	return out
}
