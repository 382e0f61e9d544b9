// Package swap implements the adjacent-commit swap algorithm: given a
// commit and its parent, it reorders them while guaranteeing the
// resulting tree is unchanged, optionally chaining further swaps
// (KeepGoing / KeepGoingUp) or collapsing the pair into one commit
// (--squash / --fixup).
package swap

import (
	"errors"
	"fmt"

	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

// SwapFailed reports that a swap could not proceed — a merge was
// encountered, or the parent commit is a configured baseline — without
// anything having gone wrong with the VCS itself. It is not part of the
// continuation Resume family; it unwinds like any other error, triggering
// the ordinary failure-tail cleanups (SwapCheckpoint, EditBranch) on its
// way out.
type SwapFailed struct {
	Msg string
}

func (e *SwapFailed) Error() string { return e.Msg }

func newSwapFailed(format string, args ...any) *SwapFailed {
	return &SwapFailed{Msg: fmt.Sprintf(format, args...)}
}

// contains reports whether sha appears in baselines.
func contains(baselines []string, sha string) bool {
	for _, b := range baselines {
		if b == sha {
			return true
		}
	}
	return false
}

// Swap reorders HEAD and HEAD^ (one becomes two, two becomes one), using
// PickCherryWithReference so the user resolves conflicts at most once —
// HEAD is the only commit cherry-picked (onto HEAD^^), and HEAD^ is then
// recreated on top of it by committing HEAD's original tree with HEAD^'s
// message rather than by a second pick. baselines, if HEAD^'s sha is among them, causes
// SwapFailed rather than crossing a configured boundary.
func Swap(repo *vcsutil.Repo, edit bool, baselines []string) error {
	one, err := repo.Commit("HEAD")
	if err != nil {
		return err
	}
	two, err := repo.UniqueParent(one)
	if err != nil {
		if mf, ok := asMergeFound(err); ok {
			return newSwapFailed("Swap failed: %s", mf.Error())
		}
		return err
	}
	three, err := repo.UniqueParentOrRoot(two)
	if err != nil {
		if mf, ok := asMergeFound(err); ok {
			return newSwapFailed("Swap failed: %s", mf.Error())
		}
		return err
	}
	if contains(baselines, two.SHA) {
		return newSwapFailed("hit baseline")
	}

	checkpoint := &SwapCheckpoint{Head: one.SHA}
	return checkpoint.Enter(repo, func(repo *vcsutil.Repo) error {
		threeSHA := ""
		if three != nil {
			threeSHA = three.SHA
		}
		return continuation.CheckoutBaseline(repo, threeSHA, func() error {
			ref := &PickCherryWithReference{Cherry: two.SHA, Reference: one.SHA}
			return ref.Enter(repo, func(repo *vcsutil.Repo) error {
				err := continuation.CherryPick(repo, one.SHA, edit)
				if err != nil {
					var suspend *continuation.Suspend
					if errors.As(err, &suspend) {
						suspend.Status = fmt.Sprintf(
							"Attempting to swap:\n    %s\n    %s\n",
							one.Summary(), two.Summary(),
						)
						return suspend
					}
					return newSwapFailed("Swap failed.")
				}
				return nil
			})
		})
	})
}

// SwapOrSquash attempts Swap, wrapping it in OrSquash so a resumed
// --squash/--fixup instruction can collapse the pair instead of
// completing an ordinary swap.
func SwapOrSquash(repo *vcsutil.Repo, edit bool, baselines []string) error {
	head, err := repo.Commit("HEAD")
	if err != nil {
		return err
	}
	orSquash := &OrSquash{Head: head.SHA}
	return orSquash.Enter(repo, func(repo *vcsutil.Repo) error {
		return Swap(repo, edit, baselines)
	})
}

// CollectCherries moves HEAD down to commit (or, if commit is "", this
// is a no-op), then re-applies everything that had been above it once
// body completes. Used to let swap/squash operate on an arbitrary
// COMMIT argument instead of always HEAD/HEAD^.
func CollectCherries(repo *vcsutil.Repo, commitRef string, body func() error) error {
	if commitRef == "" {
		return body()
	}
	sha, err := repo.RevParse(commitRef)
	if err != nil {
		return err
	}
	var cherries []string
	head, err := repo.Commit("HEAD")
	if err != nil {
		return err
	}
	for head.SHA != sha {
		cherries = append(cherries, head.SHA)
		parent, err := repo.UniqueParent(head)
		if err != nil {
			if mf, ok := asMergeFound(err); ok {
				return vcsutil.NewUserError("Error: %s", mf.Error())
			}
			return err
		}
		head = parent
	}
	if err := repo.Checkout(sha); err != nil {
		return err
	}
	reversed := make([]string, len(cherries))
	for i, c := range cherries {
		reversed[len(cherries)-1-i] = c
	}
	pc := &continuation.PickCherries{Cherries: reversed}
	return pc.Enter(repo, func(repo *vcsutil.Repo) error { return body() })
}

// MaybeKeepGoing wraps body with KeepGoing if keepGoing is set (pushing
// the swapped-down commit as far as it will go), or with SingleSwap
// otherwise (absorbing a lone Stop so a resumed --stop leaves the repo in
// a clean, finished state rather than reporting an error).
func MaybeKeepGoing(repo *vcsutil.Repo, keepGoing, edit bool, baselines []string, body func() error) error {
	if keepGoing {
		kg := &KeepGoing{Edit: edit, Baselines: baselines}
		return kg.Enter(repo, func(repo *vcsutil.Repo) error { return body() })
	}
	single := &SingleSwap{}
	return single.Enter(repo, func(repo *vcsutil.Repo) error { return body() })
}

// Squash combines HEAD with its parent into one commit, opening an editor
// seeded with both messages and carrying the parent's author identity
// forward. This is the git-squash tool's default action — unlike swap's
// --squash, it never attempts a reorder first.
func Squash(repo *vcsutil.Repo) error {
	head, err := repo.Commit("HEAD")
	if err != nil {
		return err
	}
	return squash(repo, head.SHA)
}

// Fixup is Squash without the message merge or editor: the parent's
// message and author both win outright.
func Fixup(repo *vcsutil.Repo) error {
	head, err := repo.Commit("HEAD")
	if err != nil {
		return err
	}
	return fixup(repo, head.SHA)
}

// RunUp drives the --up direction: it resolves a target commit (commitRef
// if given, else HEAD^), collects every commit between the target and HEAD
// as cherries (nearest-to-target first, per KeepGoingUp's contract), checks
// the target out, and lets KeepGoingUp swap the target with its parent and
// then carry that parent upward past each re-applied cherry, one step at a
// time.
func RunUp(repo *vcsutil.Repo, commitRef string, edit bool) error {
	var targetSHA string
	if commitRef != "" {
		sha, err := repo.RevParse(commitRef)
		if err != nil {
			return err
		}
		targetSHA = sha
	} else {
		head, err := repo.Commit("HEAD")
		if err != nil {
			return err
		}
		parent, err := repo.UniqueParent(head)
		if err != nil {
			if mf, ok := asMergeFound(err); ok {
				return newSwapFailed("Swap failed: %s", mf.Error())
			}
			return err
		}
		targetSHA = parent.SHA
	}

	head, err := repo.Commit("HEAD")
	if err != nil {
		return err
	}
	var cherries []string
	cur := head
	for cur.SHA != targetSHA {
		cherries = append(cherries, cur.SHA)
		parent, err := repo.UniqueParent(cur)
		if err != nil {
			if mf, ok := asMergeFound(err); ok {
				return newSwapFailed("Swap failed: %s", mf.Error())
			}
			return err
		}
		cur = parent
	}
	reversed := make([]string, len(cherries))
	for i, c := range cherries {
		reversed[len(cherries)-1-i] = c
	}

	if err := repo.Checkout(targetSHA); err != nil {
		return err
	}

	kgu := &KeepGoingUp{Edit: edit, Cherries: reversed}
	return kgu.Enter(repo, func(repo *vcsutil.Repo) error {
		return SwapOrSquash(repo, edit, nil)
	})
}

func asMergeFound(err error) (*vcsutil.MergeFound, bool) {
	mf, ok := err.(*vcsutil.MergeFound)
	return mf, ok
}
