// Package queue implements git-queue: a small patch-stack manager that
// keeps a set of commits rebased on top of one or more upstream
// baselines, recorded in a .git-queue file committed at the root of the
// branch's history.
package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

// QueueFileName is the tracked file a queue's baselines and metadata are
// stored in, one per branch.
const QueueFileName = ".git-queue"

// Tool is the commit-trailer value git-queue stamps on its own
// housekeeping commits (the baseline merge and the queue-file-only
// amend), so `rebase` knows to skip replaying them.
const Tool = "gitq"

// Queue wraps a branch whose root commit is a git-queue baseline
// checkpoint, backed by a .git-queue file at the worktree root.
type Queue struct {
	Repo *vcsutil.Repo
	File *QueueFile
	// FileName overrides QueueFileName (the gitq.toml queue_file
	// setting), when set.
	FileName string
}

func (q *Queue) fileName() string {
	if q.FileName != "" {
		return q.FileName
	}
	return QueueFileName
}

func queueFilePath(repo *vcsutil.Repo, name string) string {
	if name == "" {
		name = QueueFileName
	}
	return filepath.Join(repo.Dir, name)
}

// Open loads an existing queue's .git-queue file (or the name gitq.toml's
// queue_file configures instead, if fileName is non-empty).
func Open(repo *vcsutil.Repo, fileName string) (*Queue, error) {
	path := queueFilePath(repo, fileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcsutil.NewUserError("This branch is not a queue.")
		}
		return nil, err
	}
	defer f.Close()
	qf, err := LoadQueueFile(f)
	if err != nil {
		return nil, err
	}
	return &Queue{Repo: repo, File: qf, FileName: fileName}, nil
}

// message appends the commit trailer that marks a commit as
// tool-authored, optionally prefixed with the queue's title.
func message(m, title string) string {
	const trailer = "Tool: " + Tool
	title = norm.NFC.String(title)
	if title != "" {
		return fmt.Sprintf("%s: %s\n\n%s", m, title, trailer)
	}
	return fmt.Sprintf("%s\n\n%s", m, trailer)
}

// fromThisTool reports whether c carries git-queue's own commit trailer.
func fromThisTool(c *vcsutil.Commit) bool {
	return c.HasTrailer(Tool)
}

// saveQueueFile writes q.File back to disk, stages it, and amends it
// into HEAD — used after merging baselines, so the refreshed baseline
// shas land in the same commit as the merge itself.
func (q *Queue) saveQueueFile() error {
	path := queueFilePath(q.Repo, q.FileName)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := q.File.Dump(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := q.Repo.Add(q.fileName()); err != nil {
		return err
	}
	return q.Repo.CommitAmendReuseMessage()
}

// MergeBaselines checks out the first baseline and, if there are more,
// merges the rest into it, retrying conflicted merges one ref at a time
// and leaving the conflict for the user to resolve if that also fails.
// The queue file is rewritten and amended onto the resulting commit.
func (q *Queue) MergeBaselines() (*vcsutil.Commit, error) {
	if len(q.File.Baselines) == 0 {
		return nil, fmt.Errorf("queue: no baselines configured")
	}
	first := q.File.Baselines[0]
	rest := q.File.Baselines[1:]

	if err := q.Repo.Checkout(first.SHA); err != nil {
		return nil, err
	}

	if len(rest) == 0 {
		if err := q.Repo.CommitAllowEmpty(message("baseline", q.File.Title)); err != nil {
			return nil, err
		}
		if err := q.saveQueueFile(); err != nil {
			return nil, err
		}
		return q.Repo.Commit("HEAD")
	}

	refs := make([]string, len(rest))
	for i, b := range rest {
		refs[i] = b.SHA
	}

	if err := q.Repo.Merge(message("merged baselines", q.File.Title), refs...); err == nil {
		if err := q.saveQueueFile(); err != nil {
			return nil, err
		}
		return q.Repo.Commit("HEAD")
	}
	if err := q.Repo.MergeAbort(); err != nil {
		return nil, err
	}

	for _, ref := range refs {
		if err := q.Repo.MergeOne(ref); err != nil {
			return nil, err
		}
	}
	if err := q.saveQueueFile(); err != nil {
		return nil, err
	}
	return q.Repo.Commit("HEAD")
}

// Init commits an already-written .git-queue file as the first patch on
// the queue's branch.
func (q *Queue) Init() error {
	if err := q.Repo.Add(q.fileName()); err != nil {
		return err
	}
	return q.Repo.CommitAllowEmpty(message("initialized queue", q.File.Title))
}

// FindPatches walks the commits above the queue's baselines (everything
// not reachable from any of them) and returns the ones that are genuine
// user patches: not a git-queue housekeeping commit, and not a commit
// that only touches the queue file itself. A merge commit found along
// the way is a UserError — rebasing merges is out of scope.
func (q *Queue) FindPatches() ([]*vcsutil.Commit, error) {
	if q.Repo.OnOrphanBranch() {
		return nil, nil
	}
	refs := make([]string, 0, len(q.File.Baselines)+1)
	for _, b := range q.File.Baselines {
		refs = append(refs, "^"+b.SHA)
	}
	refs = append(refs, "HEAD")

	commits, err := q.Repo.Commits(refs, true)
	if err != nil {
		return nil, err
	}

	var patches []*vcsutil.Commit
	for _, c := range commits {
		if fromThisTool(c) {
			continue
		}
		if c.IsMerge() {
			return nil, vcsutil.NewUserError("rebasing merges is not implemented yet")
		}
		changed, err := q.Repo.Show("--name-only", "--pretty=", c.SHA)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(changed) == q.fileName() {
			continue
		}
		patches = append(patches, c)
	}
	return patches, nil
}

// Rebase replays every patch found by FindPatches onto freshly-merged,
// freshly-refreshed baselines. It always cherry-picks with edit=true:
// unlike swap/squash, a queue rebase must never silently drop a
// conflicting patch by aborting it — the user is expected to resolve
// every conflict it hits.
func (q *Queue) Rebase() error {
	clean, err := q.Repo.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		return vcsutil.NewUserError("Error: repo not clean")
	}

	patches, err := q.FindPatches()
	if err != nil {
		return err
	}
	for i, b := range q.File.Baselines {
		refreshed, err := RefreshBaseline(q.Repo, b)
		if err != nil {
			return err
		}
		q.File.Baselines[i] = refreshed
	}

	eb, err := continuation.NewEditBranch(q.Repo, "git-queue rebase")
	if err != nil {
		return err
	}
	cherries := make([]string, len(patches))
	for i, c := range patches {
		cherries[i] = c.SHA
	}

	return eb.Enter(q.Repo, func(repo *vcsutil.Repo) error {
		pc := &continuation.PickCherries{Cherries: cherries, Edit: true}
		return pc.Enter(repo, func(repo *vcsutil.Repo) error {
			_, err := q.MergeBaselines()
			return err
		})
	})
}

// Tidy rewrites .git-queue in its canonical form (field order, falsy
// values omitted, block-literal multiline strings) without touching
// history — a plain, uncommitted file rewrite the user stages and
// commits themselves.
func Tidy(repo *vcsutil.Repo, fileName string) error {
	path := queueFilePath(repo, fileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	qf, err := LoadQueueFile(f)
	f.Close()
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return qf.Dump(out)
}

var remoteBranchRe = regexp.MustCompile(`^refs/remotes/([^/]+)/(.*)$`)

// ParseBaseline resolves a user-supplied ref (a bare sha, HEAD, a local
// branch, or a remote-tracking branch) into a Baseline, recording enough
// of its provenance (Ref, and Remote if it came from a remote-tracking
// branch) for RefreshBaseline to re-resolve it later.
func ParseBaseline(repo *vcsutil.Repo, ref string) (Baseline, error) {
	sha, err := repo.RevParse(ref)
	if err != nil {
		return Baseline{}, err
	}
	fullName, err := repo.SymbolicFullName(ref)
	if err != nil {
		fullName = ""
	}

	if m := remoteBranchRe.FindStringSubmatch(fullName); m != nil {
		remote, branch := m[1], m[2]
		url, err := repo.RemoteGetURL(remote)
		if err != nil {
			return Baseline{}, err
		}
		return Baseline{SHA: sha, Ref: "refs/heads/" + branch, Remote: strings.TrimSpace(url)}, nil
	}
	if ref == sha || ref == "HEAD" {
		return Baseline{SHA: sha}, nil
	}
	return Baseline{SHA: sha, Ref: fullName}, nil
}

// RefreshBaseline re-resolves a baseline to its current sha: a bare sha
// or detached baseline is returned unchanged, a baseline recorded
// against a remote fetches first, and a purely local branch baseline
// just re-reads its current tip.
func RefreshBaseline(repo *vcsutil.Repo, b Baseline) (Baseline, error) {
	if b.Ref == "" {
		return b, nil
	}
	if b.Remote != "" {
		var fetched string
		if strings.HasPrefix(b.Ref, "refs/heads/") {
			if remote, err := repo.FindRemote(b.Remote); err == nil && remote != "" {
				if err := repo.Fetch(remote); err != nil {
					return Baseline{}, err
				}
				branch := strings.TrimPrefix(b.Ref, "refs/heads/")
				fetched = "refs/remotes/" + remote + "/" + branch
			}
		}
		if fetched == "" {
			if err := repo.Fetch(b.Remote, b.Ref); err != nil {
				return Baseline{}, err
			}
			fetched = "FETCH_HEAD"
		}
		c, err := repo.Commit(fetched)
		if err != nil {
			return Baseline{}, err
		}
		return Baseline{SHA: c.SHA, Ref: b.Ref, Remote: b.Remote}, nil
	}
	c, err := repo.Commit(b.Ref)
	if err != nil {
		return Baseline{}, err
	}
	return Baseline{SHA: c.SHA, Ref: b.Ref}, nil
}
