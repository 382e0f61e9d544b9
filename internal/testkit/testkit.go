// Package testkit builds throwaway git repositories for exercising
// internal/vcsutil, internal/continuation, internal/swap and
// internal/queue against a real git binary rather than a mock.
package testkit

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/waystation-dev/gitq/internal/vcsutil"
)

// Repo is a real, disposable git repository rooted at a t.TempDir().
type Repo struct {
	t    *testing.T
	Dir  string
	*vcsutil.Repo
}

// NewRepo initializes a fresh git repository in a fresh temp directory
// and returns it wrapped in the same vcsutil.Repo the production code
// uses, so tests exercise the real adapter.
func NewRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	r := &Repo{t: t, Dir: dir}
	r.Sh("git", "init", "-q")
	r.Sh("git", "config", "user.name", "Test User")
	r.Sh("git", "config", "user.email", "test@example.com")
	r.Sh("git", "config", "commit.gpgsign", "false")

	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(testWriter{t})
	vr, err := vcsutil.Open(dir, log)
	if err != nil {
		t.Fatalf("testkit: vcsutil.Open: %v", err)
	}
	r.Repo = vr
	return r
}

// Sh runs a command in the repository directory, failing the test on a
// non-zero exit.
func (r *Repo) Sh(name string, args ...string) string {
	r.t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = r.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		r.t.Fatalf("testkit: %s %v: %v\n%s", name, args, err, out.String())
	}
	return out.String()
}

// Write creates or overwrites a tracked file with content, trimmed and
// newline-terminated like the Python fixture harness this is modeled on.
func (r *Repo) Write(rel, content string) {
	r.t.Helper()
	path := filepath.Join(r.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatalf("testkit: mkdir: %v", err)
	}
	body := strings.TrimSpace(content) + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		r.t.Fatalf("testkit: write %s: %v", rel, err)
	}
}

// Commit stages everything and commits with message, returning the new
// commit's sha.
func (r *Repo) Commit(message string) string {
	r.t.Helper()
	r.Sh("git", "add", "-A")
	r.Sh("git", "commit", "-q", "--allow-empty", "-m", message)
	return strings.TrimSpace(r.Sh("git", "rev-parse", "HEAD"))
}

// CommitFile writes rel with content then commits it as a single commit.
func (r *Repo) CommitFile(rel, content, message string) string {
	r.t.Helper()
	r.Write(rel, content)
	return r.Commit(message)
}

// Log returns the subject lines of the current branch, oldest first.
func (r *Repo) Log(n int) []string {
	r.t.Helper()
	args := []string{"log", "--topo-order", "--reverse", "--format=%s"}
	if n > 0 {
		args = append(args, "-n", strconv.Itoa(n))
	}
	out := r.Sh("git", args...)
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Branch creates a new branch named name at the current HEAD and checks
// it out.
func (r *Repo) Branch(name string) {
	r.t.Helper()
	r.Sh("git", "checkout", "-q", "-b", name)
}

// SetBaseline records branch.<name>.baseline = ref, the config the swap
// algorithm reads to know how far downward it may travel.
func (r *Repo) SetBaseline(branch, ref string) {
	r.t.Helper()
	r.Sh("git", "config", "branch."+branch+".baseline", ref)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
