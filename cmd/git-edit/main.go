// Command git-edit suspends immediately on a chosen commit so the user
// can amend it by hand, then replays everything that was above it once
// they resume.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/swap"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

var flags struct {
	Continue bool
	Abort    bool
	Status   bool
}

var rootCmd = &cobra.Command{
	Use:   "git-edit <commit>",
	Short: "Edit a historical commit in place",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&flags.Continue, "continue", "c", false, "resume after the commit has been amended")
	f.BoolVar(&flags.Abort, "abort", false, "give up and restore the repository to its original state")
	f.BoolVar(&flags.Status, "status", false, "print the status of a suspended edit")
	rootCmd.MarkFlagsMutuallyExclusive("continue", "abort", "status")
}

func run(cmd *cobra.Command, args []string) error {
	repo, err := vcsutil.Open("", nil)
	if err != nil {
		return printUserError(err)
	}
	driver := continuation.NewDriver("edit", repo)
	driver.Notice = "Suspended! edit HEAD, then resume with `git-edit --continue`"

	switch {
	case flags.Status:
		if err := driver.Status(); err != nil {
			return printUserError(err)
		}
		return nil
	case flags.Continue:
		driver.Resume(nil)
	case flags.Abort:
		driver.Resume(&continuation.Abort{})
	default:
		if len(args) != 1 {
			cmd.Println(cmd.UsageString())
			os.Exit(2)
		}
		commitRef := args[0]
		driver.Run(func(repo *vcsutil.Repo) error {
			commit, err := repo.Commit(commitRef)
			if err != nil {
				return err
			}
			eb, err := continuation.NewEditBranch(repo, "git-edit")
			if err != nil {
				return err
			}
			return eb.Enter(repo, func(repo *vcsutil.Repo) error {
				return swap.CollectCherries(repo, commit.SHA, func() error {
					return continuation.NewSuspend(fmt.Sprintf("editing %s", commit.Summary()))
				})
			})
		})
	}
	return nil
}

// printUserError prints err (usually a *vcsutil.UserError — vcsutil.Open
// only returns that kind, Driver.Status also returns a plain error when
// continuation.json cannot be read) and exits 1.
func printUserError(err error) error {
	if ue, ok := err.(*vcsutil.UserError); ok {
		fmt.Println(ue.Error())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
	return err
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
