package continuation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/waystation-dev/gitq/internal/vcsutil"
)

func init() {
	register(KindDeleteTempBranch, func(data json.RawMessage) (Continuation, error) {
		var c DeleteTempBranch
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	register(KindEditBranch, func(data json.RawMessage) (Continuation, error) {
		var c EditBranch
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	register(KindPickCherries, func(data json.RawMessage) (Continuation, error) {
		var c PickCherries
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	register(KindCherryPickContinue, func(data json.RawMessage) (Continuation, error) {
		var c CherryPickContinue
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
}

const (
	KindDeleteTempBranch   Kind = "DeleteTempBranch"
	KindEditBranch         Kind = "EditBranch"
	KindPickCherries       Kind = "PickCherries"
	KindCherryPickContinue Kind = "CherryPickContinue"
)

// DeleteTempBranch cleans up a branch created by TempBranch. On a
// *Suspend it is skipped entirely (the cleanup will run on some future
// resume, once the wrapped work finally completes or aborts); on any
// other exit it always runs.
type DeleteTempBranch struct {
	Branch       string `json:"Branch"`
	PreviousHead string `json:"PreviousHead"`
}

func (c *DeleteTempBranch) Kind() Kind { return KindDeleteTempBranch }

func (c *DeleteTempBranch) Enter(repo *vcsutil.Repo, tail Tail) error {
	err := tail(repo)

	var suspend *Suspend
	if errors.As(err, &suspend) {
		if pushErr := suspend.push(c); pushErr != nil {
			return pushErr
		}
		return err
	}

	if repo.OnOrphanBranch() {
		fmt.Printf("# reset back to before creating %s branch\n", c.Branch)
		if cerr := repo.ForceCheckout(c.PreviousHead); cerr != nil {
			return cerr
		}
	} else {
		if cerr := repo.Detach(); cerr != nil {
			return cerr
		}
	}
	if repo.BranchExists(c.Branch) {
		if cerr := repo.DeleteBranchForce(c.Branch); cerr != nil {
			return cerr
		}
	}
	return err
}

// TempBranch creates a branch with no content and no history, runs body,
// and arranges for DeleteTempBranch to tear it back down. It returns the
// branch name it picked.
func TempBranch(repo *vcsutil.Repo, body func(branch string) error) (string, error) {
	branches, err := repo.Branches()
	if err != nil {
		return "", err
	}
	existing := make(map[string]bool, len(branches))
	for _, b := range branches {
		existing[b] = true
	}
	branch := ""
	for n := 0; ; n++ {
		candidate := fmt.Sprintf("temp-%d", n)
		if !existing[candidate] {
			branch = candidate
			break
		}
	}

	previousHead, err := repo.Head()
	if err != nil {
		return "", err
	}

	del := &DeleteTempBranch{Branch: branch, PreviousHead: previousHead}
	err = del.Enter(repo, func(repo *vcsutil.Repo) error {
		if err := repo.CheckoutOrphan(branch); err != nil {
			return err
		}
		if err := repo.DeleteIndexAndFiles(); err != nil {
			return err
		}
		return body(branch)
	})
	return branch, err
}

// CheckoutBaseline checks out sha and runs body, or — if sha is empty —
// creates a fresh TempBranch and runs body there. This is how swap and
// squash start an edit with nothing below a historical boundary.
func CheckoutBaseline(repo *vcsutil.Repo, sha string, body func() error) error {
	if sha == "" {
		_, err := TempBranch(repo, func(branch string) error { return body() })
		return err
	}
	if err := repo.Checkout(sha); err != nil {
		return err
	}
	return body()
}

// EditBranch detaches HEAD (so intermediate commits don't pollute the
// branch's reflog), runs body, and on success moves the original branch
// ref to the new HEAD with message and checks the branch back out. On
// failure it resets back to the original HEAD. Head and Message must be
// set by the caller before Enter is invoked for the first time; on
// resume they are restored from JSON and Detach is not repeated.
type EditBranch struct {
	Head    string `json:"Head"`
	Message string `json:"Message"`
}

func (c *EditBranch) Kind() Kind { return KindEditBranch }

// Branch returns the short branch name c.Head names, or "" if Head is
// not a branch ref (e.g. HEAD was already detached before EditBranch
// ran).
func (c *EditBranch) Branch() string {
	const prefix = "refs/heads/"
	if strings.HasPrefix(c.Head, prefix) {
		return strings.TrimPrefix(c.Head, prefix)
	}
	return ""
}

// NewEditBranch captures the current HEAD and detaches it. Call this
// once, at first entry; a reconstructed EditBranch from resume already
// has Head populated and must not detach again.
func NewEditBranch(repo *vcsutil.Repo, message string) (*EditBranch, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}
	if err := repo.Detach(); err != nil {
		return nil, err
	}
	return &EditBranch{Head: head, Message: message}, nil
}

func (c *EditBranch) Enter(repo *vcsutil.Repo, tail Tail) error {
	err := tail(repo)

	var suspend *Suspend
	if errors.As(err, &suspend) {
		if pushErr := suspend.push(c); pushErr != nil {
			return pushErr
		}
		return err
	}

	if err != nil {
		fmt.Println("# Failed.  Resetting to original HEAD")
		target := c.Branch()
		if target == "" {
			target = c.Head
		}
		if cerr := repo.ForceCheckout(target); cerr != nil {
			return cerr
		}
		return err
	}

	if branch := c.Branch(); branch != "" {
		if uerr := repo.UpdateRef(c.Message, c.Head, "HEAD"); uerr != nil {
			return uerr
		}
		if cerr := repo.Checkout(branch); cerr != nil {
			return cerr
		}
	}
	return nil
}

// PickCherries cherry-picks the remaining commits in Cherries, one at a
// time, after running tail. Cherries shrinks as each pick completes, so a
// resume continues from wherever it left off rather than restarting.
type PickCherries struct {
	Cherries []string `json:"Cherries"`
	Edit     bool     `json:"Edit"`
}

func (c *PickCherries) Kind() Kind { return KindPickCherries }

func (c *PickCherries) Enter(repo *vcsutil.Repo, tail Tail) error {
	if err := tail(repo); err != nil {
		var suspend *Suspend
		if errors.As(err, &suspend) {
			if pushErr := suspend.push(c); pushErr != nil {
				return pushErr
			}
		}
		return err
	}
	for len(c.Cherries) > 0 {
		cherry := c.Cherries[0]
		if err := CherryPick(repo, cherry, c.Edit); err != nil {
			var suspend *Suspend
			if errors.As(err, &suspend) {
				if pushErr := suspend.push(c); pushErr != nil {
					return pushErr
				}
			}
			return err
		}
		c.Cherries = c.Cherries[1:]
	}
	return nil
}

// CherryPickContinue finishes an in-progress cherry-pick on resume if the
// user hasn't already run `git cherry-pick --continue` themselves.
type CherryPickContinue struct {
	Ref string `json:"Ref"`
}

func (c *CherryPickContinue) Kind() Kind { return KindCherryPickContinue }

func (c *CherryPickContinue) Enter(repo *vcsutil.Repo, tail Tail) error {
	err := tail(repo)

	var suspend *Suspend
	if errors.As(err, &suspend) {
		if pushErr := suspend.push(c); pushErr != nil {
			return pushErr
		}
		return err
	}

	if err != nil {
		_ = repo.CherryPickAbort()
		return err
	}

	if repo.CherryPickInProgress() {
		unmerged, uerr := repo.HasUnmergedFiles()
		if uerr != nil {
			return uerr
		}
		if unmerged {
			fmt.Println("The index still has unmerged files.")
			return NewSuspend(fmt.Sprintf("cherry-picking %s", c.Ref))
		}
		if cerr := repo.CherryPickContinueCmd(); cerr != nil {
			return cerr
		}
	}
	return nil
}

// CherryPick cherry-picks a single commit. If it fails and edit is set
// and a cherry-pick is left in progress (conflicts to resolve), it
// suspends under a CherryPickContinue frame so resume can finish it;
// otherwise it aborts the cherry-pick and returns the failure.
func CherryPick(repo *vcsutil.Repo, ref string, edit bool) error {
	if err := repo.CherryPickAllowEmpty(ref); err != nil {
		if edit && repo.CherryPickInProgress() {
			cpc := &CherryPickContinue{Ref: ref}
			return cpc.Enter(repo, func(repo *vcsutil.Repo) error {
				return NewSuspend(fmt.Sprintf("cherry-picking %s", ref))
			})
		}
		_ = repo.CherryPickAbort()
		return err
	}
	return nil
}
