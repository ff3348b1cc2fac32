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

package lower

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/ajroetker/go-aievec/ir"
)

// Legality classifies an operation for one conversion.
type Legality int

const (
	// Legal ops are left untouched.
	Legal Legality = iota

	// Illegal ops must be rewritten; any left over fail the conversion.
	Illegal

	// Unknown ops are rewritten when a pattern applies and kept otherwise.
	Unknown
)

func (l Legality) String() string {
	switch l {
	case Legal:
		return "legal"
	case Illegal:
		return "illegal"
	case Unknown:
		return "unknown"
	}
	return "Legality(?)"
}

// LegalityFunc decides the Legality of an op in its graph.
type LegalityFunc func(g *ir.Graph, op *ir.Op) Legality

// Conversion pairs a pattern set with the legality it drives toward.
type Conversion struct {
	Name     string
	Patterns *PatternSet
	Legality LegalityFunc
}

// Stats summarizes a conversion run.
type Stats struct {
	Scans    int
	Rewrites int
	Applied  map[string]int // rewrites per pattern name
}

// ApplyPartialConversion rewrites g until no op is illegal. Each scan walks
// the non-legal ops in program order and commits the first pattern that
// matches each of them. The run fails with a *ConversionError once a scan
// commits nothing while illegal ops remain, and with an *OpError as soon as
// a pattern reports a hard failure.
func ApplyPartialConversion(ctx context.Context, g *ir.Graph, c Conversion, opts *Options) (Stats, error) {
	if opts == nil {
		opts = NewOptions()
	}
	log := opts.Logger.With("conversion", c.Name)
	st := Stats{Applied: make(map[string]int)}
	rw := newRewriter(g, opts)

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Scans++
		candidates := lo.Filter(g.Ops(), func(op *ir.Op, _ int) bool {
			switch c.Legality(g, op) {
			case Illegal:
				return true
			case Unknown:
				return c.Patterns.Has(op.Kind)
			}
			return false
		})
		committed := 0
		for _, op := range candidates {
			// Earlier rewrites in this scan may have erased or legalized op.
			if op.Erased() || c.Legality(g, op) == Legal {
				continue
			}
			name, err := tryPatterns(ctx, rw, c.Patterns, op, log)
			if err != nil {
				log.Warn("rewrite failed", "error", err)
				return st, err
			}
			if name != "" {
				committed++
				st.Applied[name]++
			}
		}
		st.Rewrites += committed
		log.Debug("scan done", "scan", st.Scans, "candidates", len(candidates), "rewrites", committed)
		if committed == 0 {
			break
		}
	}

	illegal := lo.Filter(g.Ops(), func(op *ir.Op, _ int) bool {
		return c.Legality(g, op) == Illegal
	})
	if len(illegal) > 0 {
		err := &ConversionError{
			Conversion: c.Name,
			Illegal:    lo.Map(illegal, func(op *ir.Op, _ int) string { return g.Format(op) }),
		}
		log.Warn("conversion incomplete", "illegal", len(illegal))
		return st, err
	}
	return st, nil
}

// tryPatterns returns the name of the pattern that rewrote op, or "" if
// every pattern declined.
func tryPatterns(ctx context.Context, rw *Rewriter, set *PatternSet, op *ir.Op, log *slog.Logger) (string, error) {
	g := rw.Graph()
	for _, p := range set.For(op.Kind) {
		if !p.matches(g, op, rw.Target()) {
			continue
		}
		var desc string
		if log.Enabled(ctx, slog.LevelDebug) {
			desc = g.Format(op)
		}
		rw.begin(op)
		ok, err := p.Apply(rw, op)
		if err == nil && ok {
			err = rw.commit()
		}
		if err != nil {
			rw.rollback()
			return "", &OpError{Pattern: p.Name, Op: g.Format(op), Err: err}
		}
		if !ok {
			rw.rollback()
			continue
		}
		log.Debug("rewrite", "pattern", p.Name, "op", desc)
		return p.Name, nil
	}
	return "", nil
}
