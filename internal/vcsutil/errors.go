// Package vcsutil is a narrow subprocess-driven facade over a git
// repository: it resolves refs, reads commit metadata, checks out state,
// and reports the small set of repository predicates the continuation
// engine and swap algorithm need. It owns no business logic of its own.
package vcsutil

import (
	"errors"
	"fmt"
	"strings"
)

// UserError signals a precondition violation: something the caller did
// wrong, not a bug and not a transient VCS failure. It is always printed
// to stderr verbatim and the process exits 1.
type UserError struct {
	Msg string
}

func NewUserError(format string, args ...any) *UserError {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

func (e *UserError) Error() string { return e.Msg }

// VcsFailed wraps a non-zero exit from the underlying git binary. Stderr
// is captured and indented with a leading tab per line, mirroring how the
// Python prototype renders a failed subprocess.
type VcsFailed struct {
	Args   []string
	Stderr string
}

func (e *VcsFailed) Error() string {
	return fmt.Sprintf("git failed:\n%s", indentLines(strings.TrimSpace(e.Stderr)))
}

func indentLines(s string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "\t" + l
	}
	return strings.Join(lines, "\n")
}

// MergeFound is raised when a walk that assumes a linear history (single
// unique parent per commit) instead finds a merge commit.
type MergeFound struct {
	SHA string
}

func (e *MergeFound) Error() string {
	return fmt.Sprintf("%s is a merge", shortSHA(e.SHA))
}

func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}

// IsUserError reports whether err (or something it wraps) is a UserError.
func IsUserError(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}
