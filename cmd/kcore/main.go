// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// kcore is a benchmarking and introspection tool for the buffer cache and the
// page allocator.
package main

import (
	"io"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/teachos/kcore"
	"github.com/teachos/kcore/internal/base"
)

var (
	configPath string
	logFormat  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "kcore [command] (flags)",
	Short: "kcore benchmarking/introspection tool",
	Long:  ``,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "", "TOML file with [cache] and [alloc] options")
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(benchCmd, imageCmd, statsCmd)
}

func main() {
	log.SetFlags(0)

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

// newLogger returns a logrus backed logger writing to w in the format selected
// by --log-format.
func newLogger(w io.Writer) (base.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)
	switch logFormat {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Newf("unknown log format %q", logFormat)
	}
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.InfoLevel)
	}
	return base.NewLogrusLogger(l, "kcore"), nil
}

// loadOptions returns the options in --config, if any, on top of opts.
func loadOptions(opts *kcore.Options) error {
	if configPath == "" {
		return nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrapf(err, "reading %s", configPath)
	}
	return opts.Parse(string(data))
}
