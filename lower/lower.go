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
	"fmt"
	"slices"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// AIEMLPatterns returns the rules lowering generic vector ops for AIE-ML.
func AIEMLPatterns() *PatternSet {
	return NewPatternSet(slices.Concat(
		memoryPatterns(),
		arithPatterns(),
		mathPatterns(),
		broadcastPatterns(),
		reducePatterns(),
		sliceMLPatterns(),
	)...)
}

// AIE1Patterns returns the rules lowering generic vector ops for AIE1.
func AIE1Patterns() *PatternSet {
	return NewPatternSet(slices.Concat(
		memoryPatterns(),
		aie1Patterns(),
		sliceAIE1Patterns(),
	)...)
}

// PatternsFor returns the rule set of generation gen.
func PatternsFor(gen target.Generation) (*PatternSet, error) {
	switch gen {
	case target.AIE1:
		return AIE1Patterns(), nil
	case target.AIEML:
		return AIEMLPatterns(), nil
	}
	return nil, fmt.Errorf("%w: %v", target.ErrUnknownGeneration, gen)
}

// LoweringConversion returns the conversion from generic vector ops to
// aievec instructions for t.
func LoweringConversion(t target.Target) (Conversion, error) {
	set, err := PatternsFor(t.Generation)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{
		Name:     "lower-vector-to-aievec",
		Patterns: set,
		Legality: loweringLegality(set, t),
	}, nil
}

// Lower rewrites the generic vector ops of g into aievec instructions of
// the configured target. On failure g may be partially rewritten.
func Lower(ctx context.Context, g *ir.Graph, opts ...Option) (Stats, error) {
	return lowerWith(ctx, g, NewOptions(opts...))
}

func lowerWith(ctx context.Context, g *ir.Graph, o *Options) (Stats, error) {
	c, err := LoweringConversion(o.Target)
	if err != nil {
		return Stats{}, err
	}
	return ApplyPartialConversion(ctx, g, c, o)
}
