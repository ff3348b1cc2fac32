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

// Package transforms holds target-independent graph passes and the runner
// that chains passes into a pipeline.
package transforms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ajroetker/go-aievec/ir"
)

// Pass is one step of a pipeline. It rewrites g in place.
type Pass interface {
	Name() string
	Run(ctx context.Context, g *ir.Graph) error
}

type funcPass struct {
	name string
	run  func(ctx context.Context, g *ir.Graph) error
}

func (p funcPass) Name() string                               { return p.name }
func (p funcPass) Run(ctx context.Context, g *ir.Graph) error { return p.run(ctx, g) }

// NewPass wraps run as a Pass called name.
func NewPass(name string, run func(ctx context.Context, g *ir.Graph) error) Pass {
	return funcPass{name: name, run: run}
}

// Run applies passes to g in order, stopping at the first failure. The
// graph is verified after every pass. Errors are wrapped with the name of
// the failing pass.
func Run(ctx context.Context, g *ir.Graph, log *slog.Logger, passes ...Pass) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := g.Len()
		if err := p.Run(ctx, g); err != nil {
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		if err := g.Verify(); err != nil {
			return fmt.Errorf("pass %s: broken graph: %w", p.Name(), err)
		}
		log.Debug("pass done", "pass", p.Name(), "ops_before", before, "ops_after", g.Len())
	}
	return nil
}
