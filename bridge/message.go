package bridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MessageType identifies a wire message.
type MessageType uint8

const (
	MsgConstruct MessageType = iota + 1
	MsgConstructAck
	MsgCall
	MsgCallResult
	MsgRelease
	MsgReleaseAck
	MsgPropertyGet
	MsgPropertySet
	MsgPropertyResult
	MsgEvent
)

var messageTypeNames = map[MessageType]string{
	MsgConstruct:      "constructor-call",
	MsgConstructAck:   "constructor-ack",
	MsgCall:           "instance-call",
	MsgCallResult:     "call-result",
	MsgRelease:        "release-call",
	MsgReleaseAck:     "release-ack",
	MsgPropertyGet:    "property-get",
	MsgPropertySet:    "property-set",
	MsgPropertyResult: "property-result",
	MsgEvent:          "event-fire",
}

func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("message(%d)", uint8(t))
}

// Response reports whether t answers a request.
func (t MessageType) Response() bool {
	switch t {
	case MsgConstructAck, MsgCallResult, MsgReleaseAck, MsgPropertyResult:
		return true
	}
	return false
}

// Message is the single wire envelope for every bridge message.
// Seq correlates a response with its request. Handle is zero for events
// without a source instance.
type Message struct {
	Type   MessageType `cbor:"1,keyasint"`
	Seq    uint64      `cbor:"2,keyasint,omitempty"`
	Handle uint32      `cbor:"3,keyasint,omitempty"`
	Class  string      `cbor:"4,keyasint,omitempty"`
	Member string      `cbor:"5,keyasint,omitempty"`
	Args   []Arg       `cbor:"6,keyasint,omitempty"`
	Result *Arg        `cbor:"7,keyasint,omitempty"`
	// Error carries only the message text of a native failure.
	Error string `cbor:"8,keyasint,omitempty"`
	// Code is the error kind when Error is set, e.g. "native_failure".
	Code string `cbor:"9,keyasint,omitempty"`
	// Culprit is the handle that was not live for an invalid_handle failure.
	// It differs from Handle when the bad handle was an argument.
	Culprit uint32 `cbor:"10,keyasint,omitempty"`
}

// handles returns every handle referenced by args, including those inside
// value fields and lists.
func handles(args []Arg) []uint32 {
	var out []uint32
	var walk func(a Arg)
	walk = func(a Arg) {
		switch a.Kind {
		case ArgHandle:
			out = append(out, a.Handle)
		case ArgValue:
			for _, f := range a.Fields {
				walk(f)
			}
		case ArgList:
			for _, it := range a.Items {
				walk(it)
			}
		}
	}
	for _, a := range args {
		walk(a)
	}
	return out
}

// Failed reports whether the message carries a failure.
func (m *Message) Failed() bool {
	return m.Error != "" || m.Code != ""
}

// ArgKind tags an encoded argument or result.
type ArgKind uint8

const (
	ArgNil ArgKind = iota
	ArgPrimitive
	ArgHandle
	ArgValue
	ArgList
)

// Arg is an encoded argument, result, or value field.
type Arg struct {
	Kind   ArgKind        `cbor:"1,keyasint"`
	Prim   any            `cbor:"2,keyasint"`
	Handle uint32         `cbor:"3,keyasint,omitempty"`
	Class  string         `cbor:"4,keyasint,omitempty"`
	Fields map[string]Arg `cbor:"5,keyasint,omitempty"`
	Items  []Arg          `cbor:"6,keyasint,omitempty"`
	// Mode is the marshal kind of a value: 1 one-way, 2 two-way.
	Mode uint8 `cbor:"7,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bridge: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalMessage serializes a Message to canonical CBOR.
func MarshalMessage(m *Message) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalMessage deserializes a Message from CBOR bytes.
func UnmarshalMessage(data []byte) (*Message, error) {
	var m Message
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal message: %w", err)
	}
	if m.Type == 0 {
		return nil, fmt.Errorf("bridge: unmarshal message: missing type")
	}
	return &m, nil
}
