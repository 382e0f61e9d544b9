package swap_test

import (
	"errors"
	"testing"

	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/swap"
	"github.com/waystation-dev/gitq/internal/testkit"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

func TestSwapReordersAdjacentCommits(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "base", "base")
	repo.CommitFile("b.txt", "one", "one")
	repo.CommitFile("c.txt", "two", "two")

	if err := swap.Swap(repo.Repo, false, nil); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	log := repo.Log(0)
	if len(log) != 3 || log[1] != "two" || log[2] != "one" {
		t.Fatalf("log = %v, want [base two one]", log)
	}
}

func TestSwapHitsBaseline(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "base", "base")
	repo.CommitFile("b.txt", "one", "one")
	baseline, err := repo.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}
	repo.CommitFile("b.txt", "two", "two")

	err = swap.Swap(repo.Repo, false, []string{baseline})
	if err == nil {
		t.Fatal("expected a baseline SwapFailed")
	}
	var sf *swap.SwapFailed
	if !asSwapFailed(err, &sf) {
		t.Fatalf("expected *SwapFailed, got %T: %v", err, err)
	}
}

func TestKeepGoingPushesCommitToBottom(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "base", "base")
	repo.CommitFile("b.txt", "one", "one")
	repo.CommitFile("c.txt", "two", "two")
	repo.CommitFile("d.txt", "three", "three")

	err := swap.MaybeKeepGoing(repo.Repo, true, false, nil, func() error {
		return swap.SwapOrSquash(repo.Repo, false, nil)
	})
	if err != nil {
		t.Fatalf("MaybeKeepGoing: %v", err)
	}

	log := repo.Log(0)
	if log[1] != "three" {
		t.Errorf("log = %v, want \"three\" pushed to the bottom", log)
	}
}

func TestRunUpPushesCommitToTop(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "base", "base")
	repo.CommitFile("b.txt", "one", "one")
	repo.CommitFile("c.txt", "two", "two")
	repo.CommitFile("d.txt", "three", "three")

	if err := swap.RunUp(repo.Repo, "", false); err != nil {
		t.Fatalf("RunUp: %v", err)
	}

	log := repo.Log(0)
	if len(log) != 4 {
		t.Fatalf("log = %v, want 4 commits", log)
	}
	if log[0] != "base" {
		t.Errorf("log = %v, want \"base\" left at the bottom", log)
	}
	if log[3] != "one" {
		t.Errorf("log = %v, want \"one\" pushed to the top", log)
	}
}

// TestSwapConflictSuspendsAndContinueFinishes drives a real cherry-pick
// conflict through continuation.json and back, the way `swap --edit`
// followed by `swap --continue` does across two process invocations.
func TestSwapConflictSuspendsAndContinueFinishes(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "line one", "base")
	repo.CommitFile("a.txt", "line one, touched by one", "one")
	repo.CommitFile("a.txt", "line one, touched by two", "two")

	driver := continuation.NewDriver("swap", repo.Repo)

	err := driver.RunStep(func(r *vcsutil.Repo) error {
		return swap.Swap(r, true, nil)
	})

	var suspend *continuation.Suspend
	if !errors.As(err, &suspend) {
		t.Fatalf("expected a conflict to suspend, got %v (%T)", err, err)
	}
	if perr := driver.PersistSuspend(suspend); perr != nil {
		t.Fatalf("PersistSuspend: %v", perr)
	}

	repo.Write("a.txt", "line one, touched by two")
	if err := repo.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := driver.ResumeStep(nil); err != nil {
		t.Fatalf("ResumeStep: %v", err)
	}

	clean, err := repo.IsClean()
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Fatal("expected a clean tree after --continue")
	}

	log := repo.Log(0)
	if len(log) != 3 || log[1] != "two" || log[2] != "one" {
		t.Fatalf("log = %v, want [base two one]", log)
	}
}

func asSwapFailed(err error, target **swap.SwapFailed) bool {
	sf, ok := err.(*swap.SwapFailed)
	if ok {
		*target = sf
	}
	return ok
}
