package transfer

import "time"

// Decision is one side's verdict on a transfer. Unset -> Yes|No is the only legal transition.
type Decision int8

const (
	Unset Decision = iota
	Yes
	No
)

func DecisionOf(v bool) Decision {
	if v {
		return Yes
	}
	return No
}

// DecisionFromNull maps a nullable column to a Decision.
func DecisionFromNull(v *bool) Decision {
	if v == nil {
		return Unset
	}
	return DecisionOf(*v)
}

func (d Decision) Decided() bool { return d != Unset }

// Null maps a Decision back to a nullable column value.
func (d Decision) Null() *bool {
	switch d {
	case Yes:
		v := true
		return &v
	case No:
		v := false
		return &v
	default:
		return nil
	}
}

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unset"
	}
}

type Transfer struct {
	ID          int64
	RequestedOn time.Time
	EmailOld    string
	EmailNew    string
	TokenOld    string
	TokenNew    string
	Confirmed   Decision
	ConfirmedOn *time.Time
	Accepted    Decision
	AcceptedOn  *time.Time
}

// Outcome is the completion state derived from both sides.
type Outcome int

const (
	Pending Outcome = iota
	Void
	Approved
)

func (t *Transfer) Outcome() Outcome {
	if !t.Confirmed.Decided() || !t.Accepted.Decided() {
		return Pending
	}
	if t.Confirmed == Yes && t.Accepted == Yes {
		return Approved
	}
	return Void
}
