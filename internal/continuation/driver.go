package continuation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/waystation-dev/gitq/internal/vcsutil"
)

// Driver runs a single tool's main loop: setup preconditions, suspend to
// continuation.json on *Suspend, and reanimate a saved stack on resume.
// Tool identifies which of the four binaries owns a given
// continuation.json, so one tool's --continue can't accidentally resume
// another's operation.
type Driver struct {
	Tool   string
	Repo   *vcsutil.Repo
	Log    *logrus.Entry
	Notice string // suspend_message in the Python prototype
}

// NewDriver builds a Driver with a per-invocation session id attached to
// every log line, so a suspended-then-resumed operation's two halves can
// be correlated in logs even though they're different processes.
func NewDriver(tool string, repo *vcsutil.Repo) *Driver {
	session := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"tool": tool, "session": session})
	return &Driver{Tool: tool, Repo: repo, Log: log, Notice: "Suspended!"}
}

type continuationFile struct {
	Tool          string      `json:"tool"`
	Status        string      `json:"status,omitempty"`
	Continuations []jsonFrame `json:"continuations"`
}

type jsonFrame struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"-"`
}

// MarshalJSON flattens Data's fields alongside "kind", matching the
// Python prototype's to_json_dict (a single flat object per frame, not a
// nested "data" key).
func (f jsonFrame) MarshalJSON() ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(f.Data, &fields); err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	for k, v := range fields {
		out[k] = v
	}
	kind, err := json.Marshal(f.Kind)
	if err != nil {
		return nil, err
	}
	out["kind"] = kind
	return json.Marshal(out)
}

func (f *jsonFrame) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	kindRaw, ok := fields["kind"]
	if !ok {
		return fmt.Errorf("continuation: frame missing \"kind\"")
	}
	if err := json.Unmarshal(kindRaw, &f.Kind); err != nil {
		return err
	}
	delete(fields, "kind")
	rest, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	f.Data = rest
	return nil
}

// Run executes body under setup's preconditions, handling *Suspend by
// persisting continuation.json and *vcsutil.UserError by printing and
// exiting 1. It never returns; like the Python prototype's Main.__call__,
// the process always exits from here.
func (d *Driver) Run(body func(repo *vcsutil.Repo) error) {
	err := d.runOnce(body)
	d.finish(err)
}

// RunStep is Run without the terminal os.Exit, for callers (the
// progress-rendering tool front-ends) that need to do something with the
// result — display a final state, for instance — before the process
// actually exits via Finish.
func (d *Driver) RunStep(body func(repo *vcsutil.Repo) error) error {
	return d.runOnce(body)
}

// Finish applies Run's usual exit-code mapping to an error obtained from
// RunStep. It never returns.
func (d *Driver) Finish(err error) {
	d.finish(err)
}

func (d *Driver) runOnce(body func(repo *vcsutil.Repo) error) error {
	clean, err := d.Repo.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		return vcsutil.NewUserError("Error: repo not clean")
	}
	if existing, err := d.readContinuationFile(); err == nil && existing != nil {
		return vcsutil.NewUserError("%s operation is already in progress.", existing.Tool)
	}
	return body(d.Repo)
}

// Resume reconstructs a saved continuation stack and replays it, feeding
// throw (if non-nil) into the innermost completed frame once every saved
// frame has been reanimated — this is how --abort/--stop/--squash/--fixup
// get delivered back into the scope that's waiting on them.
func (d *Driver) Resume(throw error) {
	d.finish(d.ResumeStep(throw))
}

// ResumeStep is Resume without the terminal os.Exit, for callers that need
// the resumed operation's result before the process exits (tests driving
// a real suspend/resume cycle).
func (d *Driver) ResumeStep(throw error) error {
	d.Log.Debug("resume")
	j, err := d.readContinuationFile()
	if err != nil {
		return err
	}
	if j == nil {
		return vcsutil.NewUserError("Error: no %s operation is in progress", d.Tool)
	}
	if j.Tool != d.Tool {
		return vcsutil.NewUserError("A %s operation is currently in progress", j.Tool)
	}
	if rmErr := os.Remove(d.Repo.ContinuationPath()); rmErr != nil && !os.IsNotExist(rmErr) {
		return rmErr
	}
	return d.reanimate(j.Continuations, throw)
}

func (d *Driver) reanimate(frames []jsonFrame, throw error) error {
	if len(frames) == 0 {
		return throw
	}
	head, rest := frames[0], frames[1:]
	build, ok := registry[head.Kind]
	if !ok {
		return fmt.Errorf("continuation: unknown kind %q in continuation.json", head.Kind)
	}
	c, err := build(head.Data)
	if err != nil {
		return fmt.Errorf("continuation: reconstructing %s: %w", head.Kind, err)
	}
	return c.Enter(d.Repo, func(repo *vcsutil.Repo) error {
		return d.reanimate(rest, throw)
	})
}

// Status prints the saved status line for an in-progress operation, or
// "no operation in progress" if none exists.
func (d *Driver) Status() error {
	j, err := d.readContinuationFile()
	if err != nil {
		return err
	}
	if j == nil {
		fmt.Println("no operation in progress")
		return nil
	}
	if j.Tool != d.Tool {
		return vcsutil.NewUserError("%s operation is in progress, not %s", j.Tool, d.Tool)
	}
	if j.Status != "" {
		fmt.Println(j.Status)
	} else {
		fmt.Println("unknown")
	}
	return nil
}

func (d *Driver) readContinuationFile() (*continuationFile, error) {
	path := d.Repo.ContinuationPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var j continuationFile
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("continuation: malformed continuation.json: %w", err)
	}
	return &j, nil
}

// PersistSuspend is the exported form of suspendFile, for callers that
// obtained a *Suspend via RunStep and need it written to continuation.json
// themselves instead of going through Finish (tests driving a real
// suspend/resume cycle across two RunStep/ResumeStep calls in one process).
func (d *Driver) PersistSuspend(s *Suspend) error {
	return d.suspendFile(s)
}

// suspendFile persists a *Suspend's frame stack to continuation.json,
// outermost-first. It writes a sibling temp file and renames it into
// place, so a concurrent `--status` read never observes a half-written
// file; an advisory flock on a sibling lock file serializes writers
// (readers do not take it).
func (d *Driver) suspendFile(s *Suspend) error {
	lock := flock.New(d.Repo.ContinuationPath() + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("continuation: acquiring continuation lock: %w", err)
	}
	defer lock.Unlock()

	frames := make([]jsonFrame, 0, len(s.Frames))
	for i := len(s.Frames) - 1; i >= 0; i-- {
		frames = append(frames, jsonFrame{Kind: s.Frames[i].Kind, Data: s.Frames[i].Data})
	}
	j := continuationFile{Tool: d.Tool, Status: s.Status, Continuations: frames}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := d.Repo.ContinuationPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.Repo.ContinuationPath())
}

// finish applies the Main.__call__ exit-status mapping: UserError prints
// and exits 1, *Suspend persists and exits 2, *Abort prints a
// cancellation notice and exits 0, any other error exits 1, and nil
// exits 0.
func (d *Driver) finish(err error) {
	var suspend *Suspend
	if errors.As(err, &suspend) {
		if werr := d.suspendFile(suspend); werr != nil {
			fmt.Fprintln(os.Stderr, werr)
			os.Exit(1)
		}
		if suspend.Status != "" {
			fmt.Println(suspend.Status)
		}
		fmt.Println(d.Notice)
		os.Exit(2)
	}

	var abort *Abort
	if errors.As(err, &abort) {
		fmt.Println("Cancelled.  Previous state restored.")
		os.Exit(0)
	}

	var userErr *vcsutil.UserError
	if errors.As(err, &userErr) {
		fmt.Println(userErr.Error())
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}
