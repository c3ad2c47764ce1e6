// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/teachos/kcore"
	"github.com/teachos/kcore/internal/kalloc"
)

var statsConfig struct {
	warm   int
	format string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print the configuration and metrics of a fresh kernel",
	Long: `
Builds a kernel from the default options and --config, optionally touches
--warm blocks and pages, and prints its options and metrics.
`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(
		&statsConfig.warm, "warm", 0, "number of blocks to load and pages to allocate before printing")
	statsCmd.Flags().StringVar(
		&statsConfig.format, "format", "table", "metrics format: table or text")
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsConfig.format != "table" && statsConfig.format != "text" {
		return errors.Newf("unknown format %q", statsConfig.format)
	}
	opts := kcore.Options{Affinity: kalloc.FixedCore(0)}
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

	var pages []kcore.Page
	for i := 0; i < statsConfig.warm; i++ {
		b, err := k.Cache().GetOrLoad(0, uint32(i))
		if err != nil {
			return errors.CombineErrors(err, k.Close())
		}
		k.Cache().Release(b)
		p, err := k.Allocator().Alloc()
		if err != nil {
			return errors.CombineErrors(err, k.Close())
		}
		pages = append(pages, p)
	}

	w := cmd.OutOrStdout()
	o := k.Options()
	fmt.Fprintf(w, "%s\n", o.String())
	m := k.Metrics()
	if statsConfig.format == "text" {
		fmt.Fprint(w, m.String())
	} else {
		printMetrics(w, m)
	}
	for _, p := range pages {
		k.Allocator().Free(p)
	}
	return k.Close()
}

// printMetrics renders m as a table.
func printMetrics(w io.Writer, m *kcore.Metrics) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Subsystem", "Metric", "Value"})
	tbl.SetAutoMergeCells(true)
	row := func(subsystem, metric string, v int64) {
		tbl.Append([]string{subsystem, metric, strconv.FormatInt(v, 10)})
	}
	row("cache", "buffers", m.Cache.Buffers)
	row("cache", "assigned", m.Cache.Assigned)
	row("cache", "referenced", m.Cache.Referenced)
	row("cache", "hits", m.Cache.Hits)
	row("cache", "misses", m.Cache.Misses)
	row("cache", "evictions", m.Cache.Evictions)
	row("cache", "exhaustions", m.Cache.Exhaustions)
	row("cache", "reads", m.Cache.Reads)
	row("cache", "writes", m.Cache.Writes)
	row("alloc", "pages", m.Alloc.Pages)
	for core, n := range m.Alloc.FreePages {
		row("alloc", fmt.Sprintf("free (core %d)", core), n)
	}
	row("alloc", "allocs", m.Alloc.Allocs)
	row("alloc", "frees", m.Alloc.Frees)
	row("alloc", "steals", m.Alloc.Steals)
	row("alloc", "pages stolen", m.Alloc.PagesStolen)
	row("alloc", "failures", m.Alloc.Failures)
	tbl.Render()
}
