package vcsutil_test

import (
	"testing"

	"github.com/waystation-dev/gitq/internal/testkit"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

func TestOpenNotARepo(t *testing.T) {
	dir := t.TempDir()
	if _, err := vcsutil.Open(dir, nil); err == nil {
		t.Fatal("expected an error opening a non-repository directory")
	} else if !vcsutil.IsUserError(err) {
		t.Errorf("expected a UserError, got %T: %v", err, err)
	}
}

func TestOpenResolvesToplevel(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "hello", "initial")

	r, err := vcsutil.Open(repo.Dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Dir != repo.Dir {
		t.Errorf("Dir = %q, want %q", r.Dir, repo.Dir)
	}
}

func TestCommitAndCommits(t *testing.T) {
	repo := testkit.NewRepo(t)
	sha1 := repo.CommitFile("a.txt", "one", "first")
	sha2 := repo.CommitFile("b.txt", "two", "second")

	c, err := repo.Repo.Commit(sha2)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if c.SHA != sha2 {
		t.Errorf("SHA = %q, want %q", c.SHA, sha2)
	}
	if len(c.Parents) != 1 || c.Parents[0] != sha1 {
		t.Errorf("Parents = %v, want [%s]", c.Parents, sha1)
	}
	if c.Message != "second\n" {
		t.Errorf("Message = %q, want %q", c.Message, "second\n")
	}

	commits, err := repo.Commits([]string{"HEAD"}, true)
	if err != nil {
		t.Fatalf("Commits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("len(Commits) = %d, want 2", len(commits))
	}
	if commits[0].SHA != sha1 || commits[1].SHA != sha2 {
		t.Errorf("Commits out of order: %v", commits)
	}
}

func TestUniqueParentOrRoot(t *testing.T) {
	repo := testkit.NewRepo(t)
	sha1 := repo.CommitFile("a.txt", "one", "first")

	root, err := repo.Repo.Commit(sha1)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	parent, err := repo.UniqueParentOrRoot(root)
	if err != nil {
		t.Fatalf("UniqueParentOrRoot: %v", err)
	}
	if parent != nil {
		t.Errorf("expected nil parent for root commit, got %v", parent)
	}
}

func TestUniqueParentMergeFound(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "one", "first")
	repo.Sh("git", "checkout", "-qb", "side")
	repo.CommitFile("b.txt", "two", "side")
	repo.Sh("git", "checkout", "-q", "main")
	repo.CommitFile("c.txt", "three", "main")
	repo.Sh("git", "merge", "-q", "--no-edit", "side")

	head, err := repo.Repo.Commit("HEAD")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !head.IsMerge() {
		t.Fatal("expected HEAD to be a merge commit")
	}
	if _, err := repo.UniqueParent(head); err == nil {
		t.Fatal("expected MergeFound")
	}
}

func TestIsCleanAndBranches(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "one", "first")

	clean, err := repo.IsClean()
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Error("expected clean worktree")
	}

	repo.Write("a.txt", "changed")
	clean, err = repo.IsClean()
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if clean {
		t.Error("expected dirty worktree after edit")
	}

	branches, err := repo.Branches()
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	found := false
	for _, b := range branches {
		if b == "main" || b == "master" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected default branch in %v", branches)
	}
}

func TestBranchExistsAndRefExists(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "one", "first")
	repo.Branch("feature")

	if !repo.BranchExists("feature") {
		t.Error("expected feature branch to exist")
	}
	if repo.BranchExists("nonexistent") {
		t.Error("did not expect nonexistent branch to exist")
	}
	if !repo.RefExists("HEAD") {
		t.Error("expected HEAD to exist")
	}
}

func TestHasTrailer(t *testing.T) {
	repo := testkit.NewRepo(t)
	sha := repo.CommitFile("a.txt", "one", "rebase housekeeping\n\nTool: git-queue")

	c, err := repo.Repo.Commit(sha)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !c.HasTrailer("git-queue") {
		t.Errorf("expected HasTrailer(git-queue), message = %q", c.Message)
	}
	if c.HasTrailer("git-swap") {
		t.Error("did not expect HasTrailer(git-swap)")
	}
}

func TestBaselinesUnconfigured(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "one", "first")

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	baselines, err := repo.Baselines(head)
	if err != nil {
		t.Fatalf("Baselines: %v", err)
	}
	if baselines != nil {
		t.Errorf("expected no baselines, got %v", baselines)
	}
}

func TestBaselinesConfigured(t *testing.T) {
	repo := testkit.NewRepo(t)
	sha1 := repo.CommitFile("a.txt", "one", "first")
	repo.CommitFile("b.txt", "two", "second")
	repo.SetBaseline("main", sha1)

	baselines, err := repo.Baselines("refs/heads/main")
	if err != nil {
		t.Fatalf("Baselines: %v", err)
	}
	if len(baselines) != 1 || baselines[0] != sha1 {
		t.Errorf("Baselines = %v, want [%s]", baselines, sha1)
	}
}

func TestCherryPickInProgressFalseByDefault(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "one", "first")
	if repo.CherryPickInProgress() {
		t.Error("did not expect a cherry-pick in progress")
	}
}
