// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package invariants

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseChecker(t *testing.T) {
	var c CloseChecker
	c.AssertNotClosed()
	c.Close()
	if Enabled {
		require.Panics(t, c.AssertNotClosed)
		require.Panics(t, c.Close)
	}
}
