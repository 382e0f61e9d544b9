// Command git-queue manages a patch stack rebased on top of one or more
// upstream baselines, recorded in a .git-queue file at the worktree
// root. Subcommands: init, rebase, tidy.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/waystation-dev/gitq/internal/config"
	"github.com/waystation-dev/gitq/internal/continuation"
	"github.com/waystation-dev/gitq/internal/progress"
	"github.com/waystation-dev/gitq/internal/queue"
	"github.com/waystation-dev/gitq/internal/vcsutil"
)

var rootCmd = &cobra.Command{
	Use:   "git-queue",
	Short: "Manage a rebased patch stack",
}

var initTitle string

var initCmd = &cobra.Command{
	Use:   "init <baseline>...",
	Short: "Initialize a queue on top of one or more baselines",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInit,
}

var rebaseFlags struct {
	Continue bool
	Abort    bool
	Status   bool
}

var rebaseCmd = &cobra.Command{
	Use:   "rebase",
	Short: "Replay the queue's patches onto freshly-merged baselines",
	Args:  cobra.NoArgs,
	RunE:  runRebase,
}

var tidyCmd = &cobra.Command{
	Use:   "tidy",
	Short: "Rewrite .git-queue in its canonical form",
	Args:  cobra.NoArgs,
	RunE:  runTidy,
}

func init() {
	initCmd.Flags().StringVar(&initTitle, "title", "", "title recorded in .git-queue")

	f := rebaseCmd.Flags()
	f.BoolVarP(&rebaseFlags.Continue, "continue", "c", false, "resume a suspended rebase")
	f.BoolVar(&rebaseFlags.Abort, "abort", false, "give up and restore the repository to its original state")
	f.BoolVar(&rebaseFlags.Status, "status", false, "print the status of a suspended rebase")
	rebaseCmd.MarkFlagsMutuallyExclusive("continue", "abort", "status")

	rootCmd.AddCommand(initCmd, rebaseCmd, tidyCmd)
}

func openRepo() (*vcsutil.Repo, *config.Config, error) {
	repo, err := vcsutil.Open("", nil)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(repo.GitDir)
	if err != nil {
		return nil, nil, err
	}
	return repo, cfg, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	repo, cfg, err := openRepo()
	if err != nil {
		return printUserError(err)
	}
	clean, err := repo.IsClean()
	if err != nil {
		return printUserError(err)
	}
	if !clean {
		return printUserError(vcsutil.NewUserError("Error: repo not clean"))
	}

	baselines := make([]queue.Baseline, len(args))
	for i, ref := range args {
		b, err := queue.ParseBaseline(repo, ref)
		if err != nil {
			return printUserError(err)
		}
		baselines[i] = b
	}
	qf := &queue.QueueFile{Title: initTitle, Baselines: baselines}

	path := filepath.Join(repo.Dir, fileName(cfg))
	f, err := os.Create(path)
	if err != nil {
		return printUserError(err)
	}
	if err := qf.Dump(f); err != nil {
		f.Close()
		return printUserError(err)
	}
	if err := f.Close(); err != nil {
		return printUserError(err)
	}

	q := &queue.Queue{Repo: repo, File: qf, FileName: cfg.QueueFile}
	if err := q.Init(); err != nil {
		return printUserError(err)
	}
	return nil
}

func runRebase(cmd *cobra.Command, args []string) error {
	repo, cfg, err := openRepo()
	if err != nil {
		return printUserError(err)
	}
	driver := continuation.NewDriver("queue", repo)
	driver.Notice = "Suspended! resolve conflicts, then resume with `git-queue rebase --continue`"

	switch {
	case rebaseFlags.Status:
		if err := driver.Status(); err != nil {
			return printUserError(err)
		}
		return nil
	case rebaseFlags.Continue:
		driver.Resume(nil)
		return nil
	case rebaseFlags.Abort:
		driver.Resume(&continuation.Abort{})
		return nil
	}

	body := func(repo *vcsutil.Repo) error {
		q, err := queue.Open(repo, cfg.QueueFile)
		if err != nil {
			return err
		}
		return q.Rebase()
	}

	runner := progress.NewRunner([]string{"rebasing queue"}, cfg.NoTUI)
	var stepErr error
	_ = runner.Run(func(int) error {
		stepErr = driver.RunStep(body)
		return stepErr
	})
	driver.Finish(stepErr)
	return nil
}

func runTidy(cmd *cobra.Command, args []string) error {
	repo, cfg, err := openRepo()
	if err != nil {
		return printUserError(err)
	}
	if err := queue.Tidy(repo, cfg.QueueFile); err != nil {
		return printUserError(err)
	}
	return nil
}

func fileName(cfg *config.Config) string {
	if cfg.QueueFile != "" {
		return cfg.QueueFile
	}
	return queue.QueueFileName
}

// printUserError prints err (a *vcsutil.UserError in practice) and exits
// 1, matching the exit-code mapping in Driver.finish for consistency.
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
