// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	"context"
	"errors"
	stdlog "log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type entry struct {
	Severity Severity
	Payload  any
}

// recordingLogger keeps what it is given.
type recordingLogger struct{ entries []entry }

func (l *recordingLogger) Log(_ context.Context, s Severity, payload any) {
	l.entries = append(l.entries, entry{s, payload})
}

func (l *recordingLogger) Flush() {}

// useRecorder installs a recordingLogger at level for the rest of the test.
// Tests that call it must not run in parallel.
func useRecorder(t *testing.T, level string) *recordingLogger {
	oldLogger, oldLevel := logger, getLevel()
	t.Cleanup(func() {
		Use(oldLogger)
		mu.Lock()
		currentLevel = oldLevel
		mu.Unlock()
	})
	l := &recordingLogger{}
	Use(l)
	SetLevel(level)
	return l
}

func TestToLevel(t *testing.T) {
	for in, want := range map[string]Severity{
		"":        SeverityDefault,
		"xyz":     SeverityDefault,
		"debug":   SeverityDebug,
		"INFO":    SeverityInfo,
		"warning": SeverityWarning,
		"error":   SeverityError,
		"fatal":   SeverityCritical,
	} {
		if got := toLevel(in); got != want {
			t.Errorf("toLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLevels(t *testing.T) {
	for _, test := range []struct {
		level string
		want  []entry
	}{
		{"", []entry{
			{SeverityDebug, "rendering"},
			{SeverityInfo, "wall created"},
			{SeverityWarning, "poll 3 failed"},
			{SeverityError, "store down"},
		}},
		{"info", []entry{
			{SeverityInfo, "wall created"},
			{SeverityWarning, "poll 3 failed"},
			{SeverityError, "store down"},
		}},
		{"error", []entry{
			{SeverityError, "store down"},
		}},
	} {
		t.Run(test.level, func(t *testing.T) {
			l := useRecorder(t, test.level)
			ctx := context.Background()
			Debug(ctx, "rendering")
			Info(ctx, "wall created")
			Warningf(ctx, "poll %d failed", 3)
			// Errors reach the backend as strings.
			Error(ctx, errors.New("store down"))
			if diff := cmp.Diff(test.want, l.entries); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Do not run in parallel. It redirects the standard logger.
func TestStdlibLoggerLabels(t *testing.T) {
	var buf bytes.Buffer
	old := stdlog.Writer()
	stdlog.SetOutput(&buf)
	defer stdlog.SetOutput(old)

	ctx := NewContextWithTraceID(context.Background(), "abc")
	ctx = NewContextWithLabel(ctx, "wall", "n1")
	ctx2 := NewContextWithLabel(ctx, "variant", "fixed")
	stdlibLogger{}.Log(ctx2, SeverityWarning, "posted")

	got := buf.String()
	want := "Warning (traceID abc, variant=fixed, wall=n1): posted"
	if !strings.Contains(got, want) {
		t.Errorf("got %q, want it to contain %q", got, want)
	}
	if labels := ctx.Value(labelsKey{}).(map[string]string); len(labels) != 1 {
		t.Errorf("parent context labels mutated: %v", labels)
	}
}
