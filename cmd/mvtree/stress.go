package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexhholmes/mvtree"
)

const (
	minLatency = 10 * time.Microsecond
	maxLatency = 10 * time.Second
)

var stressConfig struct {
	readers int
	keys    int
	batch   int
	seed    uint64
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "run one writer against concurrent snapshot readers",
	Long: `
Runs a single writer that commits batches of random inserts, upserts and
deletes while readers repeatedly open read transactions, scan the tree
and run the consistency validator. Any snapshot that reports a size
different from its scan, or fails validation, stops the run.
`,
	Args: cobra.ExactArgs(0),
	RunE: runStress,
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

func record(h *hdrhistogram.Histogram, start time.Time) {
	d := time.Since(start)
	if d > maxLatency {
		d = maxLatency
	}
	_ = h.RecordValue(d.Nanoseconds())
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg := stressConfig
	if cfg.readers < 0 || cfg.keys <= 0 || cfg.batch <= 0 {
		return errors.New("readers, keys and batch must be positive")
	}

	z, log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = z.Sync() }()

	metrics := mvtree.NewMetrics()
	options, err := treeOptions(log, mvtree.WithMetrics(metrics))
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	mgr := mvtree.NewManager(
		mvtree.WithMaxReaders(cfg.readers+1),
		mvtree.WithManagerLogger(log),
		mvtree.WithManagerMetrics(metrics),
	)
	defer mgr.Close()
	tree := mvtree.New[int, int](options...)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	writes := newHistogram()
	g.Go(func() error {
		rng := rand.New(rand.NewPCG(cfg.seed, 0))
		for ctx.Err() == nil {
			start := time.Now()
			err := mgr.Update(func(tx *mvtree.Tx) error {
				for i := 0; i < cfg.batch; i++ {
					key := rng.IntN(cfg.keys)
					switch op := rng.IntN(10); {
					case op < 5:
						if err := tree.Upsert(tx, key, func(old int, _ bool) int { return old + 1 }); err != nil {
							return err
						}
					case op < 7:
						if err := tree.Insert(tx, key, key); err != nil {
							return err
						}
					default:
						if _, err := tree.Delete(tx, key); err != nil {
							return err
						}
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrap(err, "writer")
			}
			record(writes, start)
		}
		return nil
	})

	reads := make([]*hdrhistogram.Histogram, cfg.readers)
	for r := range reads {
		reads[r] = newHistogram()
		h := reads[r]
		g.Go(func() error {
			for ctx.Err() == nil {
				start := time.Now()
				err := mgr.View(func(tx *mvtree.Tx) error {
					n := 0
					for range tree.Ascend(tx).Keys() {
						n++
					}
					if size := tree.Size(tx); n != size {
						return errors.Newf("snapshot %d: size %d, scanned %d", tx.Snapshot(), size, n)
					}
					if report := tree.ConsistencyReport(tx); !report.OK() {
						return errors.Newf("snapshot %d: %s", tx.Snapshot(), report)
					}
					return nil
				})
				if err != nil {
					return errors.Wrapf(err, "reader %d", r)
				}
				record(h, start)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	merged := newHistogram()
	for _, h := range reads {
		merged.Merge(h)
	}

	fmt.Printf("version=%d size=%d height=%d\n", mgr.Version(), tree.Size(nil), tree.Height(nil))
	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Op", "Count", "Ops/sec", "Mean(ms)", "p50(ms)", "p95(ms)", "p99(ms)", "pMax(ms)"})
	for _, row := range []struct {
		name string
		h    *hdrhistogram.Histogram
	}{
		{name: "write", h: writes},
		{name: "read", h: merged},
	} {
		tbl.Append([]string{
			row.name,
			fmt.Sprintf("%d", row.h.TotalCount()),
			fmt.Sprintf("%.1f", float64(row.h.TotalCount())/duration.Seconds()),
			fmt.Sprintf("%.3f", row.h.Mean()/1e6),
			fmt.Sprintf("%.3f", float64(row.h.ValueAtQuantile(50))/1e6),
			fmt.Sprintf("%.3f", float64(row.h.ValueAtQuantile(95))/1e6),
			fmt.Sprintf("%.3f", float64(row.h.ValueAtQuantile(99))/1e6),
			fmt.Sprintf("%.3f", float64(row.h.Max())/1e6),
		})
	}
	tbl.Render()

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	tbl = tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Metric", "Value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				tbl.Append([]string{mf.GetName(), fmt.Sprintf("%.0f", m.GetCounter().GetValue())})
			case m.GetGauge() != nil:
				tbl.Append([]string{mf.GetName(), fmt.Sprintf("%.0f", m.GetGauge().GetValue())})
			case m.GetHistogram() != nil:
				tbl.Append([]string{mf.GetName() + "_count", fmt.Sprintf("%d", m.GetHistogram().GetSampleCount())})
			}
		}
	}
	tbl.Render()
	return nil
}
