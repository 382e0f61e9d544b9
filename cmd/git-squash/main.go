// Command git-squash folds HEAD into its parent, combining both commit
// messages and keeping the parent's author identity. --fixup folds them
// without merging messages or opening an editor.
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
	Fixup    bool
	Continue bool
	Abort    bool
	Status   bool
}

var rootCmd = &cobra.Command{
	Use:   "git-squash",
	Short: "Squash HEAD into its parent",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&flags.Fixup, "fixup", false, "fold without merging messages or editing")
	f.BoolVarP(&flags.Continue, "continue", "c", false, "resume a suspended squash")
	f.BoolVar(&flags.Abort, "abort", false, "give up and restore the repository to its original state")
	f.BoolVar(&flags.Status, "status", false, "print the status of a suspended squash")
	rootCmd.MarkFlagsMutuallyExclusive("continue", "abort", "status")
}

func run(cmd *cobra.Command, args []string) error {
	repo, err := vcsutil.Open("", nil)
	if err != nil {
		return printUserError(err)
	}
	driver := continuation.NewDriver("squash", repo)

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
		driver.Run(func(repo *vcsutil.Repo) error {
			eb, err := continuation.NewEditBranch(repo, "squash")
			if err != nil {
				return err
			}
			return eb.Enter(repo, func(repo *vcsutil.Repo) error {
				if flags.Fixup {
					return swap.Fixup(repo)
				}
				return swap.Squash(repo)
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
