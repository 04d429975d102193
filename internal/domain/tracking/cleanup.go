package tracking

// CleanupStep names one step of the disconnect chain.
type CleanupStep string

const (
	StepSetOffline     CleanupStep = "set_offline"
	StepRemoveLocation CleanupStep = "remove_location"
	StepPublishOffline CleanupStep = "publish_offline"
	StepEmitOffline    CleanupStep = "emit_offline"
)

type StepResult struct {
	Step CleanupStep
	Err  error
}

// CleanupReport is the outcome of a disconnect. Cleanup is best-effort: every step runs
// regardless of the others, failures are logged and recorded here, never returned.
type CleanupReport struct {
	SessionID string
	DriverID  string
	Reason    string
	Steps     []StepResult
}

// Failed lists the steps that did not complete.
func (r CleanupReport) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

func (r CleanupReport) OK() bool { return len(r.Failed()) == 0 }

// LiveState is the current truth held by the state store.
type LiveState struct {
	Locations []LocationRecord `json:"locations"`
	OnlineIDs []string         `json:"onlineIds"`
}
