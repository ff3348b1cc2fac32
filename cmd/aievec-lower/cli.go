// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/lower"
	"github.com/ajroetker/go-aievec/target"
)

// config holds the settings shared by the subcommands.
type config struct {
	target string
	shift  int
	debug  bool
	jobs   int
	stats  bool
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	root := &cobra.Command{
		Use:           "aievec-lower",
		Short:         "Lower generic vector IR to AIE vector IR",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfg.target, "target", env.Str("AIEVEC_TARGET", "aieml"),
		"Target ("+strings.Join(targetNames(), ", ")+")")
	flags.BoolVar(&cfg.debug, "debug", env.Bool("AIEVEC_DEBUG"), "Log every rewrite to stderr")

	root.AddCommand(newLowerCmd(cfg), newTargetsCmd())
	return root
}

func newLowerCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lower [flags] file.ir...",
		Short: "Lower IR files and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := target.GetTarget(cfg.target)
			if err != nil {
				return err
			}
			return runLower(cmd.Context(), cfg, t, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().IntVar(&cfg.shift, "shift", env.Int("AIEVEC_SHIFT", 0), "Rounding shift applied by multiply-accumulate results")
	cmd.Flags().IntVarP(&cfg.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "Number of files lowered concurrently")
	cmd.Flags().BoolVar(&cfg.stats, "stats", false, "Print per-pattern rewrite counts to stderr")
	return cmd
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the supported targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTargets(cmd.OutOrStdout())
		},
	}
}

func targetNames() []string {
	var names []string
	for _, t := range target.Targets() {
		names = append(names, t.Name)
	}
	return names
}

func printTargets(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tGENERATION\tREGISTERS\tBROADCAST\tMAX LOAD")
	for _, t := range target.Targets() {
		widths := make([]string, len(t.RegisterWidths))
		for i, bits := range t.RegisterWidths {
			widths[i] = fmt.Sprint(bits)
		}
		broadcast := "-"
		if t.BroadcastWidth > 0 {
			broadcast = fmt.Sprint(t.BroadcastWidth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", t.Name, t.Generation, strings.Join(widths, ","), broadcast, t.UPD.MaxLoadSize)
	}
	return tw.Flush()
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// runLower lowers every input concurrently and prints the results in
// input order. Output for a file is only written once all files
// succeeded.
func runLower(ctx context.Context, cfg *config, t target.Target, files []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(stderr, cfg.debug)
	opts := []lower.Option{lower.WithTarget(t), lower.WithShift(cfg.shift), lower.WithLogger(log)}

	outputs := make([]bytes.Buffer, len(files))
	pipelines := make([]*lower.Pipeline, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	if cfg.jobs > 0 {
		eg.SetLimit(cfg.jobs)
	}
	for i, name := range files {
		eg.Go(func() error {
			g, err := readGraph(name, stdin)
			if err != nil {
				return err
			}
			p := lower.NewPipeline(opts...)
			if err := p.Run(ctx, g); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			pipelines[i] = p
			return ir.Print(&outputs[i], g)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, name := range files {
		if len(files) > 1 {
			fmt.Fprintf(stdout, "// %s\n", name)
		}
		if _, err := outputs[i].WriteTo(stdout); err != nil {
			return err
		}
		if cfg.stats {
			printStats(stderr, name, pipelines[i])
		}
	}
	return nil
}

func readGraph(name string, stdin io.Reader) (*ir.Graph, error) {
	if name == "-" {
		return ir.Parse(stdin, "stdin")
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ir.Parse(f, name)
}

func printStats(w io.Writer, name string, p *lower.Pipeline) {
	for _, pass := range p.Passes() {
		st, ok := p.Stats[pass.Name()]
		if !ok {
			continue
		}
		for _, pattern := range slices.Sorted(maps.Keys(st.Applied)) {
			fmt.Fprintf(w, "%s: %s: %s applied %d time(s)\n", name, pass.Name(), pattern, st.Applied[pattern])
		}
	}
}
