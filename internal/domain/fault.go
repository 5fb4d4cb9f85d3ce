package domain

import (
	"errors"
	"fmt"
)

// FaultKind classifies failures that are logged and absorbed rather than
// propagated to the caller.
type FaultKind int

const (
	FaultMalformedInput FaultKind = iota + 1
	FaultUnknownRoute
	FaultTransientDelivery
	FaultPayloadEncoding
	FaultLinkEvaluation
	FaultSelfEcho
)

func (k FaultKind) String() string {
	switch k {
	case FaultMalformedInput:
		return "malformed_input"
	case FaultUnknownRoute:
		return "unknown_route"
	case FaultTransientDelivery:
		return "transient_delivery"
	case FaultPayloadEncoding:
		return "payload_encoding"
	case FaultLinkEvaluation:
		return "link_evaluation"
	case FaultSelfEcho:
		return "self_echo"
	default:
		return "unknown"
	}
}

var (
	ErrUnroutedMessage = errors.New("message type has no route")
	ErrInternalEcho    = errors.New("message originated from this instance")
)

// Fault wraps an error with its kind and the operation that produced it.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func NewFault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is a Fault of kind.
func IsFault(err error, kind FaultKind) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}
