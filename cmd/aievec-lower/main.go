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

// Command aievec-lower lowers generic vector IR to AIE vector IR.
//
// Usage:
//
//	aievec-lower lower --target aieml kernel.ir         # print the lowered graph
//	aievec-lower lower --target aie --shift 8 a.ir b.ir  # several inputs, in parallel
//	aievec-lower targets                                # list known targets
//
// Defaults for the flags are read from AIEVEC_TARGET, AIEVEC_SHIFT and
// AIEVEC_DEBUG. An input of "-" reads standard input.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
