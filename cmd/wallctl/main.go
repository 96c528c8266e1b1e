// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The wallctl command reads and writes walls on a wall server from the
// command line. It renders items the same way the browser page does.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wallctl:", err)
		os.Exit(1)
	}
}
