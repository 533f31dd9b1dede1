package pipeline

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// Stage names a step of a pipeline run
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageReturns    Stage = "returns"
	StageMetrics    Stage = "metrics"
	StageSimulation Stage = "simulation"
)

// StageError reports which step of a run failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Notice codes
const (
	NoticeDefaultWeights = "default_weights"
	NoticeCloseFallback  = "close_fallback"
	NoticeDroppedRows    = "dropped_rows"
	NoticeAlertRaised    = "var_alert"
)

// Notice is a non-fatal condition observed during a run
type Notice struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Report is the full output of one successful run
type Report struct {
	RunID      string                    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time                 `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time                 `json:"finished_at" yaml:"finished_at"`
	Start      time.Time                 `json:"start" yaml:"start"`
	End        time.Time                 `json:"end" yaml:"end"`
	Prices     *riskcalc.PriceTable      `json:"-" yaml:"-"`
	Returns    *riskcalc.ReturnSeries    `json:"-" yaml:"-"`
	Metrics    *riskcalc.RiskMetrics     `json:"metrics" yaml:"metrics"`
	MonteCarlo riskcalc.SimulationResult `json:"monte_carlo" yaml:"monte_carlo"`
	Notices    []Notice                  `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// Duration returns the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasNotice reports whether a notice with code was recorded
func (r *Report) HasNotice(code string) bool {
	for _, n := range r.Notices {
		if n.Code == code {
			return true
		}
	}
	return false
}
