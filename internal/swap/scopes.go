package swap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/text/unicode/norm"

	"github.com/waystation-dev/gitq/internal/config"
	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

func init() {
	continuation.Register(KindPickCherryWithReference, func(data json.RawMessage) (continuation.Continuation, error) {
		var c PickCherryWithReference
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	continuation.Register(KindOrSquash, func(data json.RawMessage) (continuation.Continuation, error) {
		var c OrSquash
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	continuation.Register(KindSwapCheckpoint, func(data json.RawMessage) (continuation.Continuation, error) {
		var c SwapCheckpoint
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	continuation.Register(KindKeepGoing, func(data json.RawMessage) (continuation.Continuation, error) {
		var c KeepGoing
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	continuation.Register(KindKeepGoingUp, func(data json.RawMessage) (continuation.Continuation, error) {
		var c KeepGoingUp
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	continuation.Register(KindKeepGoingUpFinish, func(data json.RawMessage) (continuation.Continuation, error) {
		var c KeepGoingUpFinish
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	continuation.Register(KindSingleSwap, func(data json.RawMessage) (continuation.Continuation, error) {
		var c SingleSwap
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
}

const (
	KindPickCherryWithReference continuation.Kind = "PickCherryWithReference"
	KindOrSquash                continuation.Kind = "OrSquash"
	KindSwapCheckpoint          continuation.Kind = "SwapCheckpoint"
	KindKeepGoing               continuation.Kind = "KeepGoing"
	KindKeepGoingUp             continuation.Kind = "KeepGoingUp"
	KindKeepGoingUpFinish       continuation.Kind = "KeepGoingUpFinish"
	KindSingleSwap              continuation.Kind = "SingleSwap"
)

// PickCherryWithReference resolves a cherry-pick conflict at most once:
// once tail has finished (the pick of Reference, possibly after the user
// resolves conflicts), Cherry is recreated on top by committing
// Reference's tree with Cherry's message, so the resulting tree is
// identical to Reference's — since swapping two adjacent commits must
// never change the resulting tree, only the commit order.
type PickCherryWithReference struct {
	Cherry    string `json:"Cherry"`
	Reference string `json:"Reference"`
}

func (c *PickCherryWithReference) Kind() continuation.Kind { return KindPickCherryWithReference }

func (c *PickCherryWithReference) Enter(repo *vcsutil.Repo, tail continuation.Tail) error {
	err := tail(repo)
	var suspend *continuation.Suspend
	if errors.As(err, &suspend) {
		return captureAndReturn(suspend, c, err)
	}
	if err != nil {
		return err
	}
	if err := repo.ReadTree(c.Reference); err != nil {
		return err
	}
	if err := repo.CommitAllowEmptyReuseMessage(c.Cherry); err != nil {
		return err
	}
	return repo.ResetHard("HEAD")
}

// OrSquash lets a resumed --squash/--fixup instruction collapse the pair
// of commits a swap was operating on instead of completing the swap. A
// resumed --stop propagates untouched, to be absorbed by KeepGoing or
// SingleSwap; everything else (success, *Suspend, *Abort, SwapFailed)
// also propagates untouched, since OrSquash has no opinion about them.
type OrSquash struct {
	Head string `json:"Head"`
}

func (c *OrSquash) Kind() continuation.Kind { return KindOrSquash }

func (c *OrSquash) Enter(repo *vcsutil.Repo, tail continuation.Tail) error {
	err := tail(repo)

	var suspend *continuation.Suspend
	if errors.As(err, &suspend) {
		return captureAndReturn(suspend, c, err)
	}

	var resume *continuation.Resume
	if errors.As(err, &resume) {
		switch resume.Kind {
		case continuation.ResumeFixup:
			if ferr := fixup(repo, c.Head); ferr != nil {
				return ferr
			}
			return &continuation.Resume{Kind: continuation.ResumeStop}
		case continuation.ResumeSquash:
			if serr := squash(repo, c.Head); serr != nil {
				return serr
			}
			return &continuation.Resume{Kind: continuation.ResumeStop}
		case continuation.ResumeStop:
			return err
		}
	}
	return err
}

// fixup folds the commit at head into its parent, keeping the parent's
// message and discarding the child's.
func fixup(repo *vcsutil.Repo, head string) error {
	a, err := repo.Commit(head)
	if err != nil {
		return err
	}
	b, err := repo.UniqueParent(a)
	if err != nil {
		return err
	}
	c, err := repo.UniqueParentOrRoot(b)
	if err != nil {
		return err
	}
	baseline := ""
	if c != nil {
		baseline = c.SHA
	}
	return continuation.CheckoutBaseline(repo, baseline, func() error {
		if err := repo.ReadTree(a.SHA); err != nil {
			return err
		}
		if err := repo.CommitAllowEmptyReuseMessage(b.SHA); err != nil {
			return err
		}
		return repo.ResetHard("HEAD")
	})
}

// squash folds the commit at head into its parent like fixup, but opens
// an editor seeded with both messages concatenated, and carries the
// parent's author identity forward onto the combined commit.
func squash(repo *vcsutil.Repo, head string) error {
	a, err := repo.Commit(head)
	if err != nil {
		return err
	}
	b, err := repo.UniqueParent(a)
	if err != nil {
		return err
	}
	c, err := repo.UniqueParentOrRoot(b)
	if err != nil {
		return err
	}
	baseline := ""
	if c != nil {
		baseline = c.SHA
	}
	return continuation.CheckoutBaseline(repo, baseline, func() error {
		if err := repo.ReadTree(a.SHA); err != nil {
			return err
		}
		author, err := vcsutil.SplitAuthor(b.Author)
		if err != nil {
			return err
		}
		message := strings.TrimRight(b.Message, "\n") + "\n\n" + a.Message
		message = norm.NFC.String(message)
		if err := os.WriteFile(repo.CommitEditMessageFile(), []byte(message), 0o644); err != nil {
			return err
		}
		env := append(os.Environ(),
			"GIT_AUTHOR_NAME="+norm.NFC.String(author.Name),
			"GIT_AUTHOR_EMAIL="+author.Email,
			"GIT_AUTHOR_DATE="+author.Date,
		)
		if cfg, cfgErr := config.Load(repo.GitDir); cfgErr == nil && cfg.Editor != "" {
			env = append(env, "GIT_EDITOR="+cfg.Editor)
		}
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		if err := repo.CommitAllowEmptyEditFile(env, interactive); err != nil {
			return err
		}
		return repo.ResetHard("HEAD")
	})
}

// SwapCheckpoint restores git to the state it was in before a swap was
// attempted, on any failure other than *Suspend.
type SwapCheckpoint struct {
	Head string `json:"Head"`
}

func (c *SwapCheckpoint) Kind() continuation.Kind { return KindSwapCheckpoint }

func (c *SwapCheckpoint) Enter(repo *vcsutil.Repo, tail continuation.Tail) error {
	err := tail(repo)

	var suspend *continuation.Suspend
	if errors.As(err, &suspend) {
		return captureAndReturn(suspend, c, err)
	}
	if err != nil {
		fmt.Println("# reset back to before attempted swap")
		if cerr := repo.ForceCheckout(c.Head); cerr != nil {
			return cerr
		}
		return err
	}
	return nil
}

// KeepGoing recurses after a successful swap_or_squash, pushing the
// newly-lowered commit as far down the stack as it will go. It stops
// cleanly (absorbing the condition rather than treating it as an error)
// on SwapFailed, a resumed --stop, or a merge encountered while walking
// to the next parent.
type KeepGoing struct {
	Edit      bool     `json:"Edit"`
	Baselines []string `json:"Baselines"`
}

func (c *KeepGoing) Kind() continuation.Kind { return KindKeepGoing }

func (c *KeepGoing) Enter(repo *vcsutil.Repo, tail continuation.Tail) error {
	err := tail(repo)

	var suspend *continuation.Suspend
	if errors.As(err, &suspend) {
		return captureAndReturn(suspend, c, err)
	}

	var swapFailed *SwapFailed
	if errors.As(err, &swapFailed) {
		return nil
	}
	var resume *continuation.Resume
	if errors.As(err, &resume) && resume.Kind == continuation.ResumeStop {
		return nil
	}
	if err != nil {
		return err
	}

	a, err := repo.Commit("HEAD")
	if err != nil {
		return err
	}
	b, err := repo.UniqueParent(a)
	if err != nil {
		if _, ok := asMergeFound(err); ok {
			return nil
		}
		return err
	}
	if err := repo.Checkout(b.SHA); err != nil {
		return err
	}

	pc := &continuation.PickCherries{Cherries: []string{a.SHA}, Edit: c.Edit}
	return pc.Enter(repo, func(repo *vcsutil.Repo) error {
		inner := &KeepGoing{Edit: c.Edit, Baselines: c.Baselines}
		return inner.Enter(repo, func(repo *vcsutil.Repo) error {
			return SwapOrSquash(repo, c.Edit, c.Baselines)
		})
	})
}

// KeepGoingUp is KeepGoing's upward mirror: it pushes a commit up through
// a known, pre-collected list of cherries above it, rather than
// discovering the next parent dynamically. Cherries holds the remaining
// commits to re-apply, nearest-to-target first; the base case (no
// cherries left) means the target has already been checked out and tail
// is the first swapOrSquash attempt. Each layer re-applies its own
// cherry on the way back out regardless of how the inner layers
// finished, so a failure partway up never drops a commit — it only stops
// further pushing.
type KeepGoingUp struct {
	Edit     bool     `json:"Edit"`
	Cherries []string `json:"Cherries"`
}

func (c *KeepGoingUp) Kind() continuation.Kind { return KindKeepGoingUp }

func (c *KeepGoingUp) Enter(repo *vcsutil.Repo, tail continuation.Tail) error {
	if len(c.Cherries) == 0 {
		err := tail(repo)
		var suspend *continuation.Suspend
		if errors.As(err, &suspend) {
			return captureAndReturn(suspend, c, err)
		}
		return err
	}

	cherry, rest := c.Cherries[0], c.Cherries[1:]
	inner := &KeepGoingUp{Edit: c.Edit, Cherries: rest}
	err := inner.Enter(repo, tail)

	var suspend *continuation.Suspend
	if errors.As(err, &suspend) {
		// inner's own frame (or one further down the stack) already
		// accounts for everything in rest; this layer has touched
		// nothing yet, so it only needs to remember its own cherry.
		pending := &KeepGoingUp{Edit: c.Edit, Cherries: []string{cherry}}
		return captureAndReturn(suspend, pending, err)
	}

	var swapFailed *SwapFailed
	var resume *continuation.Resume
	stopped := errors.As(err, &swapFailed) ||
		(errors.As(err, &resume) && resume.Kind == continuation.ResumeStop)

	if err != nil && !stopped {
		// A genuine failure unrelated to the keep-going stop
		// conditions: the cherry still lands (never drop a commit),
		// but there's nothing meaningful left to resume into if it
		// also conflicts here.
		if pickErr := continuation.CherryPick(repo, cherry, c.Edit); pickErr != nil {
			return pickErr
		}
		return err
	}

	// Whatever happened in the inner layers, this layer's cherry still
	// needs to land back on top before we can decide whether to keep
	// pushing or stop. finish carries that decision (stopped or not)
	// across a suspend here, since reconstructing a fresh KeepGoingUp
	// on resume would re-derive and re-apply cherry a second time.
	finish := &KeepGoingUpFinish{Edit: c.Edit, Stopped: stopped}
	return finish.Enter(repo, func(repo *vcsutil.Repo) error {
		return continuation.CherryPick(repo, cherry, c.Edit)
	})
}

// KeepGoingUpFinish resumes a single KeepGoingUp layer whose own
// cherry-pick was in flight (and may have conflicted) when the process
// stopped. Once the pick finishes, Stopped decides whether this layer
// absorbs an inner SwapFailed/--stop (returning nil) or attempts its own
// SwapOrSquash, exactly as KeepGoingUp would have done inline.
type KeepGoingUpFinish struct {
	Edit    bool `json:"Edit"`
	Stopped bool `json:"Stopped"`
}

func (c *KeepGoingUpFinish) Kind() continuation.Kind { return KindKeepGoingUpFinish }

func (c *KeepGoingUpFinish) Enter(repo *vcsutil.Repo, tail continuation.Tail) error {
	err := tail(repo)
	var suspend *continuation.Suspend
	if errors.As(err, &suspend) {
		return captureAndReturn(suspend, c, err)
	}
	if err != nil {
		return err
	}
	if c.Stopped {
		return nil
	}
	return SwapOrSquash(repo, c.Edit, nil)
}

// SingleSwap absorbs a resumed --stop so a non-keep-going swap that's
// resumed with --stop finishes cleanly instead of reporting an error.
type SingleSwap struct{}

func (c *SingleSwap) Kind() continuation.Kind { return KindSingleSwap }

func (c *SingleSwap) Enter(repo *vcsutil.Repo, tail continuation.Tail) error {
	err := tail(repo)

	var suspend *continuation.Suspend
	if errors.As(err, &suspend) {
		return captureAndReturn(suspend, c, err)
	}
	var resume *continuation.Resume
	if errors.As(err, &resume) && resume.Kind == continuation.ResumeStop {
		return nil
	}
	return err
}

// captureAndReturn appends c's serialized state onto suspend's frame
// stack and returns the original error (the *Suspend itself) unchanged,
// the shared tail of every Enter method's suspend-handling branch.
func captureAndReturn(suspend *continuation.Suspend, c continuation.Continuation, err error) error {
	if cerr := suspend.Capture(c); cerr != nil {
		return cerr
	}
	return err
}
