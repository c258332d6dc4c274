// Package metrics computes portfolio-level signals for one intervention by
// querying the built graph.
package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/trialgraph/internal/platform/logger"
)

// Querier is the read-only slice of the graph client the metrics need.
type Querier interface {
	ReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// PortfolioReport summarizes every trial touching one intervention.
type PortfolioReport struct {
	Intervention       string  `json:"intervention"`
	TotalTrials        int     `json:"total_trials"`
	ConditionDiversity int     `json:"condition_diversity"`
	SponsorDiversity   int     `json:"sponsor_diversity"`
	GeographicSpread   int     `json:"geographic_spread"`
	CompletionRatio    float64 `json:"completion_ratio"`
	PhaseMaturity      float64 `json:"phase_maturity"`
	RepurposingSignal  float64 `json:"repurposing_signal"`
}

const portfolioQuery = `
MATCH (i:Intervention)<-[:USES_INTERVENTION]-(a:Arm)<-[:HAS_ARM]-(s:Study)
WHERE toLower(i.name) = toLower($name)
OPTIONAL MATCH (s)-[:STUDIES]->(c:Condition)
OPTIONAL MATCH (s)-[:SPONSORED_BY]->(sp:Sponsor)
OPTIONAL MATCH (s)-[:CONDUCTED_AT]->(l:Location)
RETURN
    s.study_id AS study_id,
    s.phase AS phase,
    s.status AS status,
    c.condition_key AS condition,
    sp.sponsor_key AS sponsor,
    l.country AS country
`

// Compute runs the portfolio query and folds the rows into the report. The
// repurposing signal multiplies condition diversity by phase maturity and
// completion ratio, so exploratory single-condition programs score near zero.
func Compute(ctx context.Context, q Querier, log *logger.Logger, intervention string) (*PortfolioReport, error) {
	if log == nil {
		log = logger.Nop()
	}
	intervention = strings.TrimSpace(intervention)
	if intervention == "" {
		return nil, fmt.Errorf("metrics: intervention name required")
	}

	rows, err := q.ReadQuery(ctx, portfolioQuery, map[string]any{"name": intervention})
	if err != nil {
		return nil, fmt.Errorf("metrics: portfolio query: %w", err)
	}

	studies := map[string]bool{}
	completed := map[string]bool{}
	mature := map[string]bool{}
	conditions := map[string]bool{}
	sponsors := map[string]bool{}
	countries := map[string]bool{}

	for _, row := range rows {
		id, _ := row["study_id"].(string)
		if id == "" {
			continue
		}
		studies[id] = true
		if status, _ := row["status"].(string); strings.EqualFold(status, "COMPLETED") {
			completed[id] = true
		}
		if phase, _ := row["phase"].(string); strings.Contains(phase, "3") || strings.Contains(phase, "4") {
			mature[id] = true
		}
		if c, _ := row["condition"].(string); c != "" {
			conditions[c] = true
		}
		if sp, _ := row["sponsor"].(string); sp != "" {
			sponsors[sp] = true
		}
		if co, _ := row["country"].(string); co != "" {
			countries[co] = true
		}
	}

	report := &PortfolioReport{
		Intervention:       intervention,
		TotalTrials:        len(studies),
		ConditionDiversity: len(conditions),
		SponsorDiversity:   len(sponsors),
		GeographicSpread:   len(countries),
	}
	if report.TotalTrials > 0 {
		report.CompletionRatio = float64(len(completed)) / float64(report.TotalTrials)
		report.PhaseMaturity = float64(len(mature)) / float64(report.TotalTrials)
	}
	report.RepurposingSignal = float64(report.ConditionDiversity) * report.PhaseMaturity * report.CompletionRatio

	log.Debug("portfolio computed",
		"intervention", intervention,
		"trials", report.TotalTrials,
		"signal", report.RepurposingSignal,
	)
	return report, nil
}
