package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexhholmes/mvtree"
	"github.com/alexhholmes/mvtree/logger"
)

var (
	duration time.Duration
	verbose  bool

	valueBlock       int
	minValueBlock    int
	internalBlock    int
	minInternalBlock int
)

var rootCmd = &cobra.Command{
	Use:   "mvtree [command] (flags)",
	Short: "mvtree stress and demonstration tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		stressCmd,
		demoCmd,
	)

	for _, cmd := range []*cobra.Command{stressCmd, demoCmd} {
		cmd.Flags().IntVar(
			&valueBlock, "value-block", mvtree.DefaultValueBlockSize, "maximum entries per leaf")
		cmd.Flags().IntVar(
			&minValueBlock, "min-value-block", mvtree.DefaultMinValueBlockSize, "minimum entries per non-root leaf")
		cmd.Flags().IntVar(
			&internalBlock, "internal-block", mvtree.DefaultInternalNodeBlockSize, "maximum children per internal node (odd)")
		cmd.Flags().IntVar(
			&minInternalBlock, "min-internal-block", mvtree.DefaultMinInternalNodeBlockSize, "minimum separators per non-root internal node")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "enable debug logging")
	}

	stressCmd.Flags().DurationVarP(
		&duration, "duration", "d", 10*time.Second, "the duration to run")
	stressCmd.Flags().IntVarP(
		&stressConfig.readers, "readers", "r", 4, "number of concurrent read transactions")
	stressCmd.Flags().IntVarP(
		&stressConfig.keys, "keys", "k", 10000, "size of the key space")
	stressCmd.Flags().IntVarP(
		&stressConfig.batch, "batch", "b", 100, "operations per write transaction")
	stressCmd.Flags().Uint64Var(
		&stressConfig.seed, "seed", uint64(time.Now().UnixNano()), "random seed")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

// newLogger builds the zap logger shared by the manager and trees. Debug
// output includes every root split and collapse.
func newLogger() (*zap.Logger, mvtree.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return z, logger.NewZap(z), nil
}

// treeOptions returns the options for the trees built by a command. Block
// sizes come from flags, so they are validated here rather than left to
// panic in mvtree.New.
func treeOptions(l mvtree.Logger, extra ...mvtree.Option) ([]mvtree.Option, error) {
	options := append([]mvtree.Option{
		mvtree.WithBlockSizes(valueBlock, minValueBlock, internalBlock, minInternalBlock),
		mvtree.WithLogger(l),
	}, extra...)
	opts := mvtree.DefaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}
