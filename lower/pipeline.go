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

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/transforms"
)

// Pipeline is the full vector-to-aievec lowering: the main conversion
// followed by extension lowering and load cleanup.
type Pipeline struct {
	opts   *Options
	passes []transforms.Pass

	// Stats accumulates the statistics of every conversion the pipeline
	// has run.
	Stats map[string]Stats
}

// NewPipeline builds the pipeline for opts.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{opts: NewOptions(opts...), Stats: make(map[string]Stats)}
	t := p.opts.Target
	p.passes = []transforms.Pass{
		transforms.NewPass("lower-vector-to-aievec", func(ctx context.Context, g *ir.Graph) error {
			st, err := lowerWith(ctx, g, p.opts)
			p.Stats["lower-vector-to-aievec"] = st
			return err
		}),
		p.conversionPass(ExtOpsConversion(t)),
		transforms.Canonicalize,
		p.conversionPass(ExtendUPDConversion(t)),
		transforms.CSE,
		p.conversionPass(SimplifyUPDConversion(t)),
		transforms.Canonicalize,
	}
	return p
}

func (p *Pipeline) conversionPass(c Conversion) transforms.Pass {
	return transforms.NewPass(c.Name, func(ctx context.Context, g *ir.Graph) error {
		st, err := ApplyPartialConversion(ctx, g, c, p.opts)
		p.Stats[c.Name] = st
		return err
	})
}

// Passes returns the passes in the order Run applies them.
func (p *Pipeline) Passes() []transforms.Pass { return p.passes }

// Run lowers g in place.
func (p *Pipeline) Run(ctx context.Context, g *ir.Graph) error {
	log := p.opts.Logger.With(slog.String("graph", g.Name), slog.String("target", p.opts.Target.Name))
	return transforms.Run(ctx, g, log, p.passes...)
}
