package vcsutil

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Repo is the thin façade over the git binary. Every method works by
// running git subprocesses; Repo owns the working directory and the
// stdin/stdout/stderr wiring, and normalizes failures into UserError or
// VcsFailed.
type Repo struct {
	Dir    string // worktree top-level
	GitDir string // absolute path to the repository's metadata directory
	log    *logrus.Entry
}

// Open locates the git repository containing dir (or the current
// directory, if dir is empty) and returns a Repo bound to it.
func Open(dir string, log *logrus.Entry) (*Repo, error) {
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Repo{Dir: dir, log: log}

	top, err := r.runQuiet("rev-parse", "--show-toplevel")
	if err != nil {
		return nil, NewUserError("Error: not a git repository")
	}
	top = strings.TrimSpace(top)
	if top == "" {
		return nil, NewUserError("Error: cannot find working directory.  bare repository?")
	}
	r.Dir = top

	gitDir, err := r.runQuiet("rev-parse", "--git-dir")
	if err != nil {
		return nil, NewUserError("Error: not a git repository")
	}
	gitDir = strings.TrimSpace(gitDir)
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(top, gitDir)
	}
	r.GitDir = gitDir
	return r, nil
}

type runOpts struct {
	quiet bool
}

// run invokes `git <args...>` in the repository's working directory and
// returns its stdout. Non-quiet (runLoud) invocations are logged at Debug;
// a non-zero exit is logged at Warn and surfaced as *VcsFailed.
func (r *Repo) run(args []string, opts runOpts) (string, error) {
	entry := r.log.WithField("args", args)
	if !opts.quiet {
		entry.Debug("git")
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = nil
	err := cmd.Run()
	if err != nil {
		entry.WithField("stderr", stderr.String()).Warn("git failed")
		return "", &VcsFailed{Args: args, Stderr: stderr.String()}
	}
	return stdout.String(), nil
}

func (r *Repo) runQuiet(args ...string) (string, error) {
	return r.run(args, runOpts{quiet: true})
}

func (r *Repo) runLoud(args ...string) (string, error) {
	return r.run(args, runOpts{quiet: false})
}

// runTest runs a git command whose exit code is a boolean predicate
// (0 = true, 1 = false); any other exit code is a VcsFailed.
func (r *Repo) runTest(args ...string) (bool, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if ee, ok := err.(*exec.ExitError); ok {
		if code := ee.ExitCode(); code == 0 || code == 1 {
			return code == 0, nil
		}
	}
	return false, &VcsFailed{Args: args, Stderr: "predicate command failed"}
}

// ContinuationPath is the singleton suspended-state file's location.
func (r *Repo) ContinuationPath() string {
	return filepath.Join(r.GitDir, "continuation.json")
}

// cherryPickHeadPath is the VCS's own marker for an in-progress
// cherry-pick.
func (r *Repo) cherryPickHeadPath() string {
	return filepath.Join(r.GitDir, "CHERRY_PICK_HEAD")
}

// commitEditMsgPath is where a pending commit message is staged before
// `git commit --edit -F`.
func (r *Repo) commitEditMsgPath() string {
	return filepath.Join(r.GitDir, "COMMIT_EDITMSG")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
