// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package static holds the templates, styles and scripts of the wall page.
package static

import "embed"

//go:embed frontend/* shared/*
var FS embed.FS
