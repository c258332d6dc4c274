package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StageExtract = "extract"
	StageSchema  = "schema"
	StageLoad    = "load"

	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// PipelineRun is one ledger entry per extract or load invocation. Counters
// holds the stage summary (records processed, rows per table, batches
// committed and failed) as JSON.
type PipelineRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Stage      string         `gorm:"index" json:"stage"`
	Status     string         `gorm:"index" json:"status"`
	Counters   datatypes.JSON `json:"counters"`
	Error      string         `json:"error"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
}
