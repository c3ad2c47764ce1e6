// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tokenbucket"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/teachos/kcore"
	"github.com/teachos/kcore/internal/disk"
	"github.com/teachos/kcore/internal/randvar"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

var benchConfig struct {
	concurrency  int
	duration     time.Duration
	rate         float64
	seed         uint64
	metricsAddr  string
	keys         string
	devices      int
	writePercent int
	dir          string
	image        string
	hold         int
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "run benchmarks",
}

var benchCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "benchmark the buffer cache",
	Long: `
Workers repeatedly look up a block, optionally modify and write it back, and
release it. Block numbers are drawn from --keys, a spec of the form
[uniform|zipf:]min-max.
`,
	Args: cobra.NoArgs,
	RunE: runBenchCache,
}

var benchAllocCmd = &cobra.Command{
	Use:   "alloc",
	Short: "benchmark the page allocator",
	Long: `
Each worker keeps up to --hold pages allocated, freeing a random one of them
whenever it is at the limit.
`,
	Args: cobra.NoArgs,
	RunE: runBenchAlloc,
}

func init() {
	benchCmd.AddCommand(benchCacheCmd, benchAllocCmd)
	for _, cmd := range []*cobra.Command{benchCacheCmd, benchAllocCmd} {
		cmd.Flags().IntVarP(
			&benchConfig.concurrency, "concurrency", "c", 4, "number of concurrent workers")
		cmd.Flags().DurationVarP(
			&benchConfig.duration, "duration", "d", 10*time.Second, "the duration to run (0, run forever)")
		cmd.Flags().Float64Var(
			&benchConfig.rate, "rate", 0, "maximum operations per second across all workers (0, unlimited)")
		cmd.Flags().Uint64Var(
			&benchConfig.seed, "seed", 1, "random seed")
		cmd.Flags().StringVar(
			&benchConfig.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	}
	benchCacheCmd.Flags().StringVar(
		&benchConfig.keys, "keys", "zipf:0-1023", "block number distribution")
	benchCacheCmd.Flags().IntVar(
		&benchConfig.devices, "devices", 1, "number of devices")
	benchCacheCmd.Flags().IntVar(
		&benchConfig.writePercent, "write-percent", 10, "percent (0-100) of lookups that write the block back")
	benchCacheCmd.Flags().StringVar(
		&benchConfig.dir, "dir", "", "directory of disk images (default: in-memory device)")
	benchCacheCmd.Flags().StringVar(
		&benchConfig.image, "image", "", "disk image preloaded as device 0 of the in-memory device")
	benchAllocCmd.Flags().IntVar(
		&benchConfig.hold, "hold", 16, "maximum pages held by each worker")
}

// limiter paces all workers of a benchmark to a shared rate.
type limiter struct {
	mu sync.Mutex
	tb *tokenbucket.TokenBucket
}

func newLimiter(rate float64) *limiter {
	if rate <= 0 {
		return nil
	}
	l := &limiter{tb: &tokenbucket.TokenBucket{}}
	l.tb.Init(tokenbucket.TokensPerSecond(rate), tokenbucket.Tokens(max(rate/10, 1)))
	return l
}

// wait blocks until one operation may proceed or ctx is done.
func (l *limiter) wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		l.mu.Lock()
		ok, d := l.tb.TryToFulfill(1)
		l.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// bench is a benchmark run by runBench. init starts the workers on g; they
// must return once ctx is done.
type bench struct {
	init func(ctx context.Context, k *kcore.Kernel, g *errgroup.Group)
	tick func(elapsed time.Duration, i int)
	done func(elapsed time.Duration)
}

func runBench(cmd *cobra.Command, opts kcore.Options, b bench) error {
	stdout := cmd.OutOrStdout()
	if err := loadOptions(&opts); err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	opts.Logger = logger
	k, err := kcore.New(&opts)
	if err != nil {
		return err
	}
	kopts := k.Options()
	fmt.Fprintf(stdout, "%s\nconcurrency %d\n\n", kopts.String(), benchConfig.concurrency)

	if benchConfig.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(kcore.NewCollector(k))
		srv := &http.Server{
			Addr:    benchConfig.metricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	b.init(ctx, k, g)

	workersDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(workersDone)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var timeout <-chan time.Time
	if benchConfig.duration > 0 {
		timeout = time.After(benchConfig.duration)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	start := time.Now()
	for i := 0; ; i++ {
		select {
		case <-ticker.C:
			b.tick(time.Since(start), i)
			continue
		case <-workersDone:
		case <-interrupt:
		case <-timeout:
		}
		break
	}
	cancel()
	werr := g.Wait()
	b.done(time.Since(start))

	fmt.Fprintln(stdout)
	printMetrics(stdout, k.Metrics())
	if err := k.Close(); err != nil {
		return errors.CombineErrors(werr, err)
	}
	if errors.Is(werr, context.Canceled) {
		werr = nil
	}
	return werr
}

// progress prints per-tick latency lines for the registered histograms and
// collects the total throughput for the final plot.
type progress struct {
	w    io.Writer
	reg  *histogramRegistry
	opsS sampledMetric
}

func (p *progress) tick(elapsed time.Duration, i int) {
	if i%20 == 0 {
		fmt.Fprintln(p.w, "_elapsed____optype__ops/sec(inst)___ops/sec(cum)__p50(us)__p95(us)__p99(us)_pMax(us)")
	}
	var total float64
	p.reg.Tick(func(tick histogramTick) {
		h := tick.Hist
		inst := float64(h.TotalCount()) / tick.Elapsed.Seconds()
		total += inst
		fmt.Fprintf(p.w, "%8s %9s %14.1f %14.1f %9.1f %9.1f %9.1f %9.1f\n",
			time.Duration(elapsed.Seconds()+0.5)*time.Second,
			tick.Name,
			inst,
			float64(tick.Cumulative.TotalCount())/elapsed.Seconds(),
			time.Duration(h.ValueAtQuantile(50)).Seconds()*1e6,
			time.Duration(h.ValueAtQuantile(95)).Seconds()*1e6,
			time.Duration(h.ValueAtQuantile(99)).Seconds()*1e6,
			time.Duration(h.ValueAtQuantile(100)).Seconds()*1e6,
		)
	})
	p.opsS.record(total)
}

func (p *progress) done(elapsed time.Duration) {
	fmt.Fprintln(p.w, "\n_elapsed____optype_____ops(total)___ops/sec(cum)__avg(us)__p50(us)__p95(us)__p99(us)_pMax(us)")
	p.reg.Tick(func(tick histogramTick) {
		h := tick.Cumulative
		fmt.Fprintf(p.w, "%7.1fs %9s %14d %14.1f %8.1f %8.1f %8.1f %8.1f %8.1f\n",
			elapsed.Seconds(), tick.Name,
			h.TotalCount(),
			float64(h.TotalCount())/elapsed.Seconds(),
			time.Duration(h.Mean()).Seconds()*1e6,
			time.Duration(h.ValueAtQuantile(50)).Seconds()*1e6,
			time.Duration(h.ValueAtQuantile(95)).Seconds()*1e6,
			time.Duration(h.ValueAtQuantile(99)).Seconds()*1e6,
			time.Duration(h.ValueAtQuantile(100)).Seconds()*1e6,
		)
	})
	if values := p.opsS.downsample(72); len(values) > 1 {
		fmt.Fprintf(p.w, "\n%s\n", asciigraph.Plot(values,
			asciigraph.Height(10), asciigraph.Caption("ops/sec")))
	}
}

func runBenchCache(cmd *cobra.Command, args []string) error {
	if benchConfig.writePercent < 0 || benchConfig.writePercent > 100 {
		return errors.Newf("--write-percent %d out of range [0, 100]", benchConfig.writePercent)
	}
	if benchConfig.devices < 1 {
		return errors.Newf("--devices %d must be >= 1", benchConfig.devices)
	}
	if _, err := randvar.Parse(benchConfig.keys, nil); err != nil {
		return err
	}
	var opts kcore.Options
	switch {
	case benchConfig.dir != "" && benchConfig.image != "":
		return errors.New("--dir and --image are mutually exclusive")
	case benchConfig.image != "":
		m := disk.NewMem()
		if err := m.LoadImage(0, benchConfig.image); err != nil {
			return err
		}
		opts.Device = m
	case benchConfig.dir != "":
		f, err := disk.OpenFile(benchConfig.dir)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		opts.Device = f
	}

	reg := newHistogramRegistry()
	p := &progress{w: cmd.OutOrStdout(), reg: reg}
	var exhausted atomic.Int64
	lim := newLimiter(benchConfig.rate)

	return runBench(cmd, opts, bench{
		init: func(ctx context.Context, k *kcore.Kernel, g *errgroup.Group) {
			c := k.Cache()
			for w := 0; w < benchConfig.concurrency; w++ {
				rng := rand.New(rand.NewSource(benchConfig.seed + uint64(w)))
				keys, _ := randvar.Parse(benchConfig.keys, rng)
				readHist, writeHist := reg.Register("read"), reg.Register("write")
				g.Go(func() error {
					for ctx.Err() == nil {
						if err := lim.wait(ctx); err != nil {
							return nil
						}
						dev := uint32(rng.Intn(benchConfig.devices))
						blockno := uint32(keys.Uint64())
						write := rng.Intn(100) < benchConfig.writePercent

						start := time.Now()
						b, err := c.GetOrLoad(dev, blockno)
						if errors.Is(err, kcore.ErrResourceExhausted) {
							exhausted.Add(1)
							continue
						} else if err != nil {
							return err
						}
						if write {
							data := b.Data()
							data[rng.Intn(len(data))]++
							if err := c.Write(b); err != nil {
								c.Release(b)
								return err
							}
						}
						c.Release(b)
						if write {
							writeHist.Record(time.Since(start))
						} else {
							readHist.Record(time.Since(start))
						}
					}
					return nil
				})
			}
		},
		tick: p.tick,
		done: func(elapsed time.Duration) {
			p.done(elapsed)
			if n := exhausted.Load(); n > 0 {
				fmt.Fprintf(p.w, "\n%d lookups found every buffer referenced\n", n)
			}
		},
	})
}

func runBenchAlloc(cmd *cobra.Command, args []string) error {
	if benchConfig.hold < 1 {
		return errors.Newf("--hold %d must be >= 1", benchConfig.hold)
	}
	reg := newHistogramRegistry()
	p := &progress{w: cmd.OutOrStdout(), reg: reg}
	var failed atomic.Int64
	lim := newLimiter(benchConfig.rate)

	return runBench(cmd, kcore.Options{}, bench{
		init: func(ctx context.Context, k *kcore.Kernel, g *errgroup.Group) {
			a := k.Allocator()
			for w := 0; w < benchConfig.concurrency; w++ {
				rng := rand.New(rand.NewSource(benchConfig.seed + uint64(w)))
				allocHist, freeHist := reg.Register("alloc"), reg.Register("free")
				g.Go(func() error {
					held := make([]kcore.Page, 0, benchConfig.hold)
					defer func() {
						for _, pg := range held {
							a.Free(pg)
						}
					}()
					for ctx.Err() == nil {
						if err := lim.wait(ctx); err != nil {
							return nil
						}
						if len(held) == cap(held) {
							i := rng.Intn(len(held))
							pg := held[i]
							held[i] = held[len(held)-1]
							held = held[:len(held)-1]
							start := time.Now()
							a.Free(pg)
							freeHist.Record(time.Since(start))
							continue
						}
						start := time.Now()
						pg, err := a.Alloc()
						if errors.Is(err, kcore.ErrAllocationFailed) {
							failed.Add(1)
							continue
						} else if err != nil {
							return err
						}
						allocHist.Record(time.Since(start))
						pg.Bytes()[0] = byte(w)
						held = append(held, pg)
					}
					return nil
				})
			}
		},
		tick: p.tick,
		done: func(elapsed time.Duration) {
			p.done(elapsed)
			if n := failed.Load(); n > 0 {
				fmt.Fprintf(p.w, "\n%d allocations failed\n", n)
			}
		},
	})
}
