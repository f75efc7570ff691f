package wizard

// Op names an asynchronous controller operation.
type Op string

const (
	OpLoad    Op = "load"
	OpNext    Op = "next"
	OpSuggest Op = "suggest"
	OpQuota   Op = "quota"
	OpSubmit  Op = "submit"
)

// OpState is the lifecycle of one operation.
type OpState int

const (
	Idle OpState = iota
	Pending
	Succeeded
	Failed
)

func (s OpState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// navigation operations move or replace the step pointer and exclude each
// other.
var navigation = []Op{OpLoad, OpNext, OpSubmit}

// conflicts returns the operations that must not be pending when op starts.
func conflicts(op Op) []Op {
	switch op {
	case OpLoad, OpNext, OpSubmit:
		return navigation
	default:
		return []Op{op}
	}
}
