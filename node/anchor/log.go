// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import (
	"github.com/rs/zerolog"
	"gitlab.com/jaxnet/smicp/corelog"
)

var log = corelog.Disabled

// UseLogger sets the package-wide logger.  Call it before the registry is
// used.
func UseLogger(logger zerolog.Logger) {
	log = logger
}
