// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

import "github.com/rs/zerolog"

// UseLogger sets the package-wide logger.
func UseLogger(logger zerolog.Logger) {
	log = logger
}
