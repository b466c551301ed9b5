package rollupservice

// Step of a rollup invocation.
type State int

const (
	StateIdle State = iota
	StateFetchingBatch
	StateFolding
	StateFinalizing
	StateEnriching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingBatch:
		return "fetching-batch"
	case StateFolding:
		return "folding"
	case StateFinalizing:
		return "finalizing"
	case StateEnriching:
		return "enriching"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
