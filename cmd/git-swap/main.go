// Command git-swap reorders HEAD and HEAD^, keeping the tree at HEAD
// unchanged, optionally chaining further swaps down (--keep-going) or
// up (--up) through the rest of the branch, or collapsing the pair into
// one commit (--squash/--fixup) instead of completing the reorder.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/waystation-dev/gitq/internal/config"
	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/progress"
	"github.com/waystation-dev/gitq/internal/swap"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

var flags struct {
	Edit      bool
	KeepGoing bool
	Up        bool
	Continue  bool
	Abort     bool
	Stop      bool
	Squash    bool
	Fixup     bool
	Status    bool
}

var rootCmd = &cobra.Command{
	Use:   "git-swap [commit]",
	Short: "Swap a commit with its parent, preserving the tree at HEAD",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&flags.Edit, "edit", "e", false, "stop to resolve conflicts interactively instead of aborting")
	f.BoolVarP(&flags.KeepGoing, "keep-going", "k", false, "push the commit as far down as it will go")
	f.BoolVar(&flags.Up, "up", false, "push the commit as far up as it will go")
	f.BoolVarP(&flags.Continue, "continue", "c", false, "continue a suspended swap")
	f.BoolVar(&flags.Abort, "abort", false, "abort a suspended swap")
	f.BoolVar(&flags.Stop, "stop", false, "stop a keep-going swap at its current position")
	f.BoolVar(&flags.Squash, "squash", false, "squash the pair instead of completing the swap")
	f.BoolVar(&flags.Fixup, "fixup", false, "fixup the pair instead of completing the swap")
	f.BoolVar(&flags.Status, "status", false, "print the status of a suspended swap")

	rootCmd.MarkFlagsMutuallyExclusive("continue", "abort", "stop", "squash", "fixup", "status")
	rootCmd.MarkFlagsMutuallyExclusive("keep-going", "up")
}

func run(cmd *cobra.Command, args []string) error {
	repo, err := vcsutil.Open("", nil)
	if err != nil {
		return printUserError(err)
	}
	driver := continuation.NewDriver("swap", repo)

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
	case flags.Stop:
		driver.Resume(&continuation.Resume{Kind: continuation.ResumeStop})
	case flags.Squash:
		driver.Resume(&continuation.Resume{Kind: continuation.ResumeSquash})
	case flags.Fixup:
		driver.Resume(&continuation.Resume{Kind: continuation.ResumeFixup})
	default:
		var commitRef string
		if len(args) == 1 {
			commitRef = args[0]
		}
		body := func(repo *vcsutil.Repo) error {
			eb, err := continuation.NewEditBranch(repo, "swap")
			if err != nil {
				return err
			}
			return eb.Enter(repo, func(repo *vcsutil.Repo) error {
				baselines, err := repo.Baselines(eb.Head)
				if err != nil {
					return err
				}
				if flags.Up {
					return swap.RunUp(repo, commitRef, flags.Edit)
				}
				return swap.CollectCherries(repo, commitRef, func() error {
					return swap.MaybeKeepGoing(repo, flags.KeepGoing, flags.Edit, baselines, func() error {
						return swap.SwapOrSquash(repo, flags.Edit, baselines)
					})
				})
			})
		}

		if !flags.KeepGoing && !flags.Up {
			driver.Run(body)
			return nil
		}

		label := "pushing commit down"
		if flags.Up {
			label = "pushing commit up"
		}
		cfg, _ := config.Load(repo.GitDir)
		runner := progress.NewRunner([]string{label}, cfg.NoTUI)
		var stepErr error
		_ = runner.Run(func(int) error {
			stepErr = driver.RunStep(body)
			return stepErr
		})
		driver.Finish(stepErr)
	}
	return nil
}

// printUserError prints err (usually a *vcsutil.UserError — vcsutil.Open
// only returns that kind, Driver.Status also returns a plain error when
// continuation.json cannot be read) and exits 1,
// matching the exit-code mapping in Driver.finish for consistency.
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
