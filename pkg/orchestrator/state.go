package orchestrator

// State is the lifecycle phase of an Orchestrator.
type State string

const (
	StateIdle             State = "idle"
	StateStartingInfra    State = "starting_infrastructure"
	StateInitializingData State = "initializing_data"
	StateStartingBackend  State = "starting_backend"
	StateStartingGateway  State = "starting_gateway"
	StateRunning          State = "running"
	StateStopping         State = "stopping"
)

// canStartFromState reports whether a start-type operation may begin.
// Starting again from running is allowed; already-running units are
// skipped.
func canStartFromState(state State) bool {
	switch state {
	case StateIdle, StateRunning:
		return true
	default:
		return false
	}
}

func canStopFromState(state State) bool {
	switch state {
	case StateIdle, StateRunning:
		return true
	default:
		return false
	}
}
