package temporal

const SweepStatusQueryName = "sweepStatus"

type SweepPhase string

const (
	SweepPhaseRefreshing SweepPhase = "refreshing_directory"
	SweepPhaseSweeping   SweepPhase = "sweeping"
	SweepPhaseDone       SweepPhase = "done"
	SweepPhaseFailed     SweepPhase = "failed"
)

type SweepStatus struct {
	Phase     SweepPhase           `json:"phase"`
	Reminders SweepRemindersOutput `json:"reminders"`
}
