package symexec

// Reason records why a work item stopped advancing.
type Reason int

const (
	// ReasonNone is the zero value: the work has not finished yet.
	ReasonNone Reason = iota
	ReasonProperlyReturned
	ReasonBranchExplored
	ReasonExceedingLength
	ReasonUnreachable
)

// MetaData aggregates per-slice symbolic-execution outcome counters.
// Combine is associative and commutative, so results from parallel
// workers fold together regardless of order.
type MetaData struct {
	Proper          int
	PathUnsat       int
	BranchExplored  int
	Duplicate       int
	NoTarget        int
	ExceedingLength int
	Unreachable     int
	// Explored counts every work item that finished, of any reason; it is
	// the budget the executor checks against MaxExploredTracePerSlice,
	// distinct from Proper (traces actually kept).
	Explored int
}

// Combine folds o into a copy of m.
func (m MetaData) Combine(o MetaData) MetaData {
	return MetaData{
		Proper:          m.Proper + o.Proper,
		PathUnsat:       m.PathUnsat + o.PathUnsat,
		BranchExplored:  m.BranchExplored + o.BranchExplored,
		Duplicate:       m.Duplicate + o.Duplicate,
		NoTarget:        m.NoTarget + o.NoTarget,
		ExceedingLength: m.ExceedingLength + o.ExceedingLength,
		Unreachable:     m.Unreachable + o.Unreachable,
		Explored:        m.Explored + o.Explored,
	}
}
