package queue_test

import (
	"strings"
	"testing"

	"github.com/waystation-dev/gitq/internal/queue"
	"github.com/waystation-dev/gitq/internal/testkit"
)

func writeQueueFile(t *testing.T, repo *testkit.Repo, qf *queue.QueueFile) {
	t.Helper()
	var sb strings.Builder
	if err := qf.Dump(&sb); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	repo.Write(queue.QueueFileName, sb.String())
}

func TestQueueFileRoundTrip(t *testing.T) {
	qf := &queue.QueueFile{
		Title: "my-feature",
		Baselines: []queue.Baseline{
			{SHA: "abc123"},
		},
	}
	var sb strings.Builder
	if err := qf.Dump(&sb); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	loaded, err := queue.LoadQueueFile(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("LoadQueueFile: %v", err)
	}
	if loaded.Title != "my-feature" {
		t.Errorf("Title = %q, want my-feature", loaded.Title)
	}
	if len(loaded.Baselines) != 1 || loaded.Baselines[0].SHA != "abc123" {
		t.Errorf("Baselines = %v", loaded.Baselines)
	}
}

func TestQueueInitAndFindPatches(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("README.md", "hello", "project root")
	baseline, err := repo.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}

	qf := &queue.QueueFile{Title: "feature", Baselines: []queue.Baseline{{SHA: baseline}}}
	writeQueueFile(t, repo, qf)

	q := &queue.Queue{Repo: repo.Repo, File: qf}
	if err := q.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	repo.CommitFile("patch1.txt", "one", "first patch")
	repo.CommitFile("patch2.txt", "two", "second patch")

	patches, err := q.FindPatches()
	if err != nil {
		t.Fatalf("FindPatches: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("len(patches) = %d, want 2", len(patches))
	}
	if patches[0].Message != "first patch\n" || patches[1].Message != "second patch\n" {
		t.Errorf("unexpected patch order: %q, %q", patches[0].Message, patches[1].Message)
	}
}

func TestQueueFindPatchesSkipsToolCommits(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("README.md", "hello", "project root")
	baseline, err := repo.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}

	qf := &queue.QueueFile{Baselines: []queue.Baseline{{SHA: baseline}}}
	writeQueueFile(t, repo, qf)
	q := &queue.Queue{Repo: repo.Repo, File: qf}
	if err := q.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	repo.CommitFile("patch1.txt", "one", "a real patch")
	repo.CommitFile("unused.txt", "noop", "housekeeping\n\nTool: gitq")

	patches, err := q.FindPatches()
	if err != nil {
		t.Fatalf("FindPatches: %v", err)
	}
	if len(patches) != 1 || patches[0].Message != "a real patch\n" {
		t.Fatalf("patches = %v", patches)
	}
}

func TestOpenAndTidyWithCustomFileName(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("README.md", "hello", "project root")
	baseline, err := repo.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}

	const customName = "queue.toml.d"
	qf := &queue.QueueFile{Title: "feature", Baselines: []queue.Baseline{{SHA: baseline}}}
	var sb strings.Builder
	if err := qf.Dump(&sb); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	repo.Write(customName, sb.String())

	q, err := queue.Open(repo.Repo, customName)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if q.FileName != customName {
		t.Errorf("FileName = %q, want %q", q.FileName, customName)
	}
	if q.File.Title != "feature" {
		t.Errorf("File.Title = %q, want feature", q.File.Title)
	}

	if err := queue.Tidy(repo.Repo, customName); err != nil {
		t.Fatalf("Tidy: %v", err)
	}
	if _, err := queue.Open(repo.Repo, customName); err != nil {
		t.Fatalf("Open after Tidy: %v", err)
	}

	if _, err := queue.Open(repo.Repo, ""); err == nil {
		t.Fatal("Open with default name should fail: no .git-queue written")
	}
}

func TestMergeSingleBaseline(t *testing.T) {
	repo := testkit.NewRepo(t)
	repo.CommitFile("README.md", "hello", "root")
	baseline, err := repo.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}

	qf := &queue.QueueFile{Baselines: []queue.Baseline{{SHA: baseline}}}
	writeQueueFile(t, repo, qf)
	q := &queue.Queue{Repo: repo.Repo, File: qf}
	if err := q.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	c, err := q.MergeBaselines()
	if err != nil {
		t.Fatalf("MergeBaselines: %v", err)
	}
	if !c.HasTrailer(queue.Tool) {
		t.Errorf("expected merge commit to carry the %s trailer, got %q", queue.Tool, c.Message)
	}
}
