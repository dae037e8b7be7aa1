package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/alexhholmes/mvtree"
)

var demoCmd = &cobra.Command{
	Use:   "demo <keys>",
	Short: "print the tree shape while keys are inserted and deleted",
	Long: `
Inserts keys 1..<keys> one transaction at a time, printing the tree after
every structural change, then deletes them in reverse order. A read
transaction opened halfway through shows the snapshot it pinned.
`,
	Args: cobra.ExactArgs(1),
	RunE: runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	var n int
	if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n <= 0 {
		return errors.Newf("invalid key count %q", args[0])
	}

	z, log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = z.Sync() }()

	options, err := treeOptions(log)
	if err != nil {
		return err
	}
	mgr := mvtree.NewManager(mvtree.WithManagerLogger(log))
	defer mgr.Close()
	tree := mvtree.New[int, string](options...)
	out := cmd.OutOrStdout()

	step := func(label string, fn func(tx *mvtree.Tx) error) error {
		before := tree.Height(nil)
		if err := mgr.Update(fn); err != nil {
			return err
		}
		if tree.Height(nil) != before || verbose {
			fmt.Fprintf(out, "%s (height %d)\n%s\n", label, tree.Height(nil), tree.Format(nil))
		}
		return nil
	}

	var snapshot *mvtree.Tx
	for k := 1; k <= n; k++ {
		err := step(fmt.Sprintf("insert %d", k), func(tx *mvtree.Tx) error {
			return tree.Insert(tx, k, fmt.Sprintf("v%d", k))
		})
		if err != nil {
			return err
		}
		if k == (n+1)/2 {
			if snapshot, err = mgr.Begin(false); err != nil {
				return err
			}
		}
	}
	for k := n; k >= 1; k-- {
		err := step(fmt.Sprintf("delete %d", k), func(tx *mvtree.Tx) error {
			_, err := tree.Delete(tx, k)
			return err
		})
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "final %s\n%s\n", tree.ConsistencyReport(nil), tree.Format(nil))
	fmt.Fprintf(out, "snapshot at version %d holds %d entries, %s\n%s",
		snapshot.Snapshot(), tree.Size(snapshot), tree.ConsistencyReport(snapshot), tree.Format(snapshot))
	return snapshot.Rollback()
}
