package result

import "github.com/Centaurus99/Spearmint/internal/stats"

// TrialMeta is stored as meta.json next to each trial's raw payload.
type TrialMeta struct {
	Scheme     string                  `json:"scheme"`
	Trial      int                     `json:"trial"`
	Worker     string                  `json:"worker"`
	Params     string                  `json:"params,omitempty"`
	DurationS  float64                 `json:"duration_s"`
	ExitReason string                  `json:"exit_reason"`
	Error      string                  `json:"error,omitempty"`
	Flows      map[int]stats.FlowStats `json:"flows,omitempty"`
}

const (
	ExitCompleted = "completed"
	ExitTimeout   = "timeout"
	ExitFailed    = "failed"
	ExitNoData    = "no_data"
)
