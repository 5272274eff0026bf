// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"strconv"
	"strings"
)

// KeySeparator joins the segments of a composite key.
const KeySeparator = "~"

// Key builds a composite key such as root~A~1000.
func Key(prefix string, segments ...string) []byte {
	return []byte(prefix + KeySeparator + strings.Join(segments, KeySeparator))
}

// Prefix returns the iteration prefix for keys under prefix and segments.
func Prefix(prefix string, segments ...string) []byte {
	if len(segments) == 0 {
		return []byte(prefix + KeySeparator)
	}
	return append(Key(prefix, segments...), KeySeparator...)
}

// Uint renders a numeric key segment.
func Uint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// ValidSegment reports whether s can be used as one key segment.
func ValidSegment(s string) bool {
	return s != "" && !strings.Contains(s, KeySeparator)
}
