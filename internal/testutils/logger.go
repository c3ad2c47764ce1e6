// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package testutils

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// Logger is a base.Logger that writes to a testing.TB.
type Logger struct {
	T testing.TB
}

func (l Logger) Infof(format string, args ...interface{}) {
	l.T.Logf(format, args...)
}

func (l Logger) Errorf(format string, args ...interface{}) {
	l.T.Logf("ERROR: "+format, args...)
}

func (l Logger) Fatalf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf(format, args...)
}

// RecordingLogger is a base.Logger that keeps every Infof and Errorf line so
// that tests can assert on what a cache or allocator reported. Fatalf fails
// the test.
type RecordingLogger struct {
	T testing.TB

	mu    sync.Mutex
	lines []string
}

func (l *RecordingLogger) record(prefix, format string, args ...interface{}) {
	line := prefix + fmt.Sprintf(format, args...)
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
	if l.T != nil {
		l.T.Log(line)
	}
}

func (l *RecordingLogger) Infof(format string, args ...interface{}) {
	l.record("", format, args...)
}

func (l *RecordingLogger) Errorf(format string, args ...interface{}) {
	l.record("ERROR: ", format, args...)
}

func (l *RecordingLogger) Fatalf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf(format, args...)
}

// Lines returns the recorded lines containing substr, in order.
func (l *RecordingLogger) Lines(substr string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []string
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			res = append(res, line)
		}
	}
	return res
}
