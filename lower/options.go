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
	"log/slog"

	"github.com/ajroetker/go-aievec/target"
)

// Options configures a lowering.
type Options struct {
	// Target is the core generation code is emitted for.
	Target target.Target

	// Shift is the rounding shift applied when accumulators are narrowed
	// after multiplies and multiply-accumulates.
	Shift int

	// Logger receives debug traces of every committed rewrite.
	Logger *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithTarget selects the core generation.
func WithTarget(t target.Target) Option {
	return func(o *Options) { o.Target = t }
}

// WithGeneration selects the core generation by its selector.
func WithGeneration(g target.Generation) Option {
	return func(o *Options) { o.Target = g.Get() }
}

// WithShift sets the rounding shift of accumulator narrowing.
func WithShift(shift int) Option {
	return func(o *Options) { o.Shift = shift }
}

// WithLogger sets the logger used for rewrite traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// NewOptions returns the defaults (AIE-ML, shift 0, no logging) with opts
// applied.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		Target: target.AIEMLTarget(),
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

func (o *Options) generation() target.Generation { return o.Target.Generation }
