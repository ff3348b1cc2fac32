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
	"bufio"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// goldenErrors names the failures a golden case may expect.
var goldenErrors = map[string]error{
	"partial-conversion": ErrPartialConversion,
	"masked-load":        ErrMaskedLoad,
	"int8-select":        ErrInt8Select,
}

type goldenCase struct {
	opts    []Option
	input   string
	kinds   []string
	wantErr error
}

func readGolden(t *testing.T, file string) goldenCase {
	t.Helper()
	ar, err := txtar.ParseFile(file)
	require.NoError(t, err)

	var c goldenCase
	sc := bufio.NewScanner(strings.NewReader(string(ar.Comment)))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "target":
			tgt, err := target.GetTarget(value)
			require.NoError(t, err)
			c.opts = append(c.opts, WithTarget(tgt))
		case "shift":
			n, err := strconv.Atoi(value)
			require.NoError(t, err)
			c.opts = append(c.opts, WithShift(n))
		}
	}
	for _, f := range ar.Files {
		body := string(f.Data)
		switch f.Name {
		case "input.ir":
			c.input = body
		case "want.kinds":
			c.kinds = strings.Fields(body)
		case "want.error":
			var ok bool
			c.wantErr, ok = goldenErrors[strings.TrimSpace(body)]
			require.True(t, ok, "unknown error name %q", strings.TrimSpace(body))
		}
	}
	require.NotEmpty(t, c.input, "%s has no input.ir", file)
	return c
}

func kindNames(g *ir.Graph) []string {
	return lo.Map(g.Kinds(), func(k ir.Kind, _ int) string { return k.String() })
}

func TestGolden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".txtar")
		t.Run(name, func(t *testing.T) {
			c := readGolden(t, file)
			g, err := ir.ParseString(c.input, name)
			require.NoError(t, err)

			_, err = Lower(context.Background(), g, c.opts...)
			switch {
			case c.wantErr != nil && !errors.Is(err, c.wantErr):
				t.Fatalf("Lower() = %v, want %v", err, c.wantErr)
			case c.wantErr == nil && err != nil:
				t.Fatalf("Lower(): %v", err)
			}
			require.NoError(t, g.Verify())
			if c.kinds == nil {
				return
			}
			if diff := cmp.Diff(c.kinds, kindNames(g)); diff != "" {
				t.Errorf("op kinds mismatch (-want +got):\n%s\n%s", diff, g)
			}
		})
	}
}
