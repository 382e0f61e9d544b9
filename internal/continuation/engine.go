// Package continuation implements a serializable continuation engine: a
// stack of resumable scopes that can suspend mid-operation (typically
// because a cherry-pick conflicted), persist themselves to
// .git/continuation.json, and be reconstructed in a later process
// invocation to continue exactly where they left off.
//
// A Continuation is the Go analogue of the Python prototype's context
// managers: Enter runs any setup, invokes tail, and then — depending on
// what tail returns — either runs a success path, a failure path, or (if
// the error is a *Suspend) appends itself to the frame stack and
// propagates untouched. Continuations must keep all of their state in
// exported, JSON-serializable fields so a later process can rebuild them
// from continuation.json without replaying any of the original code that
// constructed them.
package continuation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/waystation-dev/gitq/internal/vcsutil"
)

// Kind names a registered Continuation type, matching Python's class name
// keyed ContinuationClass registry.
type Kind string

// Tail is the remainder of the operation a Continuation wraps: the rest
// of the continuation stack, innermost first, terminating in the actual
// work being protected.
type Tail func(repo *vcsutil.Repo) error

// Continuation is one frame of suspendable state. Enter performs the
// frame's acquire step, invokes tail, and applies the frame's
// success/failure/suspend handling to whatever tail returns.
type Continuation interface {
	Kind() Kind
	Enter(repo *vcsutil.Repo, tail Tail) error
}

// factory reconstructs a Continuation of a given Kind from its persisted
// JSON fields, for resume.
type factory func(data json.RawMessage) (Continuation, error)

var registry = map[Kind]factory{}

// register associates a Kind with the function that reconstructs it from
// JSON. Called from each scope type's init().
func register(kind Kind, f factory) {
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("continuation: duplicate registration for kind %q", kind))
	}
	registry[kind] = f
}

// Register is the exported form of register, for Continuation types
// defined outside this package (internal/swap), which
// cannot reach the unexported registry map directly.
func Register(kind Kind, f func(data json.RawMessage) (Continuation, error)) {
	register(kind, f)
}

// Suspend unwinds the stack of in-progress Continuations, carrying their
// serialized frames outward so the driver can write continuation.json.
// Frames are appended innermost-first as Suspend propagates; the driver
// reverses them before persisting so resume replays outermost-first.
type Suspend struct {
	Status string
	Frames []Frame
}

// Frame is one persisted Continuation: its Kind plus its JSON-encoded
// fields.
type Frame struct {
	Kind Kind
	Data json.RawMessage
}

func (s *Suspend) Error() string {
	if s.Status != "" {
		return s.Status
	}
	return "operation suspended"
}

// push appends c's serialized state to the frame stack. Called by each
// Continuation's Enter when it observes a *Suspend propagating through
// it.
func (s *Suspend) push(c Continuation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("continuation: marshal %s: %w", c.Kind(), err)
	}
	s.Frames = append(s.Frames, Frame{Kind: c.Kind(), Data: data})
	return nil
}

// Capture is the exported form of push, for Continuation types defined
// outside this package: it appends c's serialized state to the frame
// stack as it propagates through c's Enter method.
func (s *Suspend) Capture(c Continuation) error {
	return s.push(c)
}

// NewSuspend starts a new suspend with an optional human-readable status
// line (shown by `<tool> --status` and printed at suspend time).
func NewSuspend(status string) *Suspend {
	return &Suspend{Status: status}
}

// ResumeKind identifies which of the four user-driven resume instructions
// is in play. Only these four exist; anything else is a programming
// error.
type ResumeKind string

const (
	ResumeAbort  ResumeKind = "abort"
	ResumeStop   ResumeKind = "stop"
	ResumeSquash ResumeKind = "squash"
	ResumeFixup  ResumeKind = "fixup"
)

// Resume is injected into a reanimated continuation stack to carry the
// user's --continue/--abort/--stop/--squash/--fixup instruction down to
// the frame that knows how to act on it. Continuations that have no
// opinion about a given ResumeKind must let it propagate untouched.
type Resume struct {
	Kind ResumeKind
}

func (r *Resume) Error() string { return "resume: " + string(r.Kind) }

// Abort unwinds every remaining Continuation's failure tail and restores
// git to the state it was in before the operation started. The tools'
// --abort flag injects it directly into the reanimated stack; no
// Continuation converts a Resume{Kind: ResumeAbort} into it.
type Abort struct{}

func (a *Abort) Error() string { return "aborted" }

// propagate is the default Enter behavior for a Continuation with no
// interesting success or failure handling of its own: acquire, run tail,
// and on a *Suspend, capture self into the frame stack before returning.
func propagate(c Continuation, repo *vcsutil.Repo, tail Tail) error {
	err := tail(repo)
	var suspend *Suspend
	if errors.As(err, &suspend) {
		if pushErr := suspend.push(c); pushErr != nil {
			return pushErr
		}
	}
	return err
}
