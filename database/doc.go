// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package database provides the ordered key/value store the protocol
components persist into.

The components never talk to a concrete engine.  They receive a DB and only
use Get, Put, Has, Delete, atomic batch writes and ordered prefix iteration.
Engines register themselves as drivers, the same way btcd database backends
do, so the daemon can pick one by name from its configuration:

	import (
		"gitlab.com/jaxnet/smicp/database"
		_ "gitlab.com/jaxnet/smicp/database/ldb"
	)

	db, err := database.Create("leveldb", "/path/to/data")
	if err != nil {
		// Handle error
	}
	defer db.Close()

Keys are plain strings built by the components (root~A~1000, epoch~e1, ...),
so every backend preserves the one-key-per-logical-entity contract.
*/
package database
