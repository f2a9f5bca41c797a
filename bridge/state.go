package bridge

import (
	"time"

	"github.com/wippyai/xplat/handle"
	"github.com/wippyai/xplat/model"
)

// State is the lifecycle state of a by-reference instance.
type State uint8

const (
	Constructing State = iota
	Ready
	Released
)

func (s State) String() string {
	switch s {
	case Constructing:
		return "constructing"
	case Ready:
		return "ready"
	case Released:
		return "released"
	}
	return "unknown"
}

// instance is the script-side record of one native object. It is stored in
// the handle table and shared by every Proxy for the same handle.
type instance struct {
	class   *model.ClassDescriptor
	failure error
	// queue holds calls that wait for this or an argument's construction.
	queue []*call
	// waiters are instances with held calls that take this one as an
	// argument. They are drained when the constructor is acknowledged.
	waiters []*instance
	h       handle.Handle
	// pins counts held calls that take this instance as an argument.
	pins  int
	state State
	acked bool
	// deferRelease is set when the last holder released while the release
	// could not be sent yet.
	deferRelease bool
	// freed is set once the table entry is gone.
	freed bool
}

type call struct {
	future *Future
	msg    *Message
	start  time.Time
	member string
	// deps are the instances passed as arguments.
	deps []*instance
}
