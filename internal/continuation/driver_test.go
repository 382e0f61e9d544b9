package continuation_test

import (
	"os"
	"testing"

	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/testkit"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

func TestDriverStatusNoOperation(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "one", "first")

	d := continuation.NewDriver("git-swap", repo.Repo)
	if err := d.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}
}

func TestSuspendCapturesFrameWithoutPersisting(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("a.txt", "base", "base")
	repo.Branch("side")
	sha := repo.CommitFile("b.txt", "side", "side commit")
	repo.Sh("git", "checkout", "-q", "main")

	pc := &continuation.PickCherries{Cherries: []string{sha}}
	err := pc.Enter(repo.Repo, func(r *vcsutil.Repo) error {
		return continuation.NewSuspend("picking cherries")
	})

	var suspend *continuation.Suspend
	if !asSuspend(err, &suspend) {
		t.Fatalf("expected a *Suspend, got %v (%T)", err, err)
	}
	if len(suspend.Frames) != 1 {
		t.Fatalf("expected 1 captured frame, got %d", len(suspend.Frames))
	}
	if suspend.Frames[0].Kind != continuation.KindPickCherries {
		t.Errorf("Frame.Kind = %q, want %q", suspend.Frames[0].Kind, continuation.KindPickCherries)
	}

	if _, err := os.Stat(repo.ContinuationPath()); err == nil {
		t.Fatal("continuation.json should not exist until the driver persists it")
	}
}

func asSuspend(err error, target **continuation.Suspend) bool {
	s, ok := err.(*continuation.Suspend)
	if ok {
		*target = s
	}
	return ok
}
