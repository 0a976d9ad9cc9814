// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, lifecycle states and cancellation contracts.

package api

// State enumerates the lifecycle of a channel context.
type State int32

const (
	StateActive State = iota
	StateDisconnecting
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Trigger names the event that started a disconnect.
type Trigger int

const (
	TriggerNone Trigger = iota
	// TriggerFinish: peer closed its side or the local side half-closed.
	TriggerFinish
	// TriggerError: a read or write on the socket failed.
	TriggerError
	// TriggerClose: explicit Close on the context.
	TriggerClose
	// TriggerComplete: the host pipeline for the channel returned.
	TriggerComplete
	// TriggerShutdown: the owning server or client was closed.
	TriggerShutdown
)

func (t Trigger) String() string {
	switch t {
	case TriggerFinish:
		return "finish"
	case TriggerError:
		return "error"
	case TriggerClose:
		return "close"
	case TriggerComplete:
		return "complete"
	case TriggerShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// Cancellation reasons.
const (
	// ReasonDisconnect is the terminal reason of every channel context.
	ReasonDisconnect = "disconnect"
	// ReasonComplete marks a message context whose exchange finished.
	ReasonComplete = "complete"
)

// Cancellation is the immutable payload of a fired cancel token.
// It satisfies error so it can travel as a context cause.
type Cancellation struct {
	Reason  string
	Trigger Trigger
	// Err is the transport or pipeline error behind the disconnect, nil on a
	// graceful close.
	Err error
}

func (c Cancellation) Error() string {
	s := "cancelled: " + c.Reason
	if c.Trigger != TriggerNone {
		s += " (" + c.Trigger.String() + ")"
	}
	if c.Err != nil {
		s += ": " + c.Err.Error()
	}
	return s
}

func (c Cancellation) Unwrap() error {
	return c.Err
}

// Subscription is a registered cancellation handler.
type Subscription interface {
	// Stop detaches the handler; it reports false when the handler already ran.
	Stop() bool
}

// CancelToken is the read side of a cancellation token handed to pipelines.
type CancelToken interface {
	IsCancelled() bool
	// Cause returns the first cancellation, if any.
	Cause() (Cancellation, bool)
	// Done is closed once the token fires.
	Done() <-chan struct{}
	// Subscribe registers fn to run exactly once with the cancellation.
	// fn runs immediately when the token already fired.
	Subscribe(fn func(Cancellation)) Subscription
}
