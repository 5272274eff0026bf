// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/jaxnet/smicp/database"
	_ "gitlab.com/jaxnet/smicp/database/badgerdb"
	_ "gitlab.com/jaxnet/smicp/database/ldb"
	_ "gitlab.com/jaxnet/smicp/database/memdb"
	"gitlab.com/jaxnet/smicp/network/rpc"
	"gitlab.com/jaxnet/smicp/node/anchor"
	"gitlab.com/jaxnet/smicp/node/coordinator"
	"gitlab.com/jaxnet/smicp/node/keylock"
	"gitlab.com/jaxnet/smicp/node/metrics"
	"gitlab.com/jaxnet/smicp/node/verifier"
	"gitlab.com/jaxnet/smicp/types/events"
	"golang.org/x/sync/errgroup"
)

const (
	// dbNamePrefix is the prefix for the database directory name.  The
	// database type is appended to this value to form the full name.
	dbNamePrefix = "smicp"

	memDbType = "memdb"
)

// Controller owns the database and the protocol components of one node.
type Controller struct {
	cfg *Config
	db  database.DB
	now func() time.Time

	anchors     *anchor.Registry
	verifier    *verifier.Verifier
	coordinator *coordinator.Coordinator

	sink events.Fanout
	rpc  *rpc.Server
}

// NewController opens the configured database and builds the components.
func NewController(cfg *Config) (*Controller, error) {
	db, err := loadDB(cfg)
	if err != nil {
		return nil, err
	}

	ctl, err := New(cfg, db, time.Now)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ctl, nil
}

// New builds a controller on an open database.  now is the clock of every
// component.
func New(cfg *Config, db database.DB, now func() time.Time) (*Controller, error) {
	seed, err := cfg.Protocol.ValidatorSet()
	if err != nil {
		return nil, errors.Wrap(err, "invalid validator set")
	}

	locks := keylock.New()
	registry, err := anchor.New(anchor.Config{DB: db, Validators: seed, Locks: locks, Now: now})
	if err != nil {
		return nil, errors.Wrap(err, "unable to init anchor registry")
	}

	vcfg := verifier.Config{DB: db, Locks: locks, Now: now}
	if cfg.Protocol.RequireAnchoredRoots {
		vcfg.Anchors = registry
	}

	nodeID := cfg.Protocol.NodeID
	if nodeID == "" {
		nodeID, _ = os.Hostname()
	}

	ctl := &Controller{
		cfg:         cfg,
		db:          db,
		now:         now,
		anchors:     registry,
		verifier:    verifier.New(vcfg),
		coordinator: coordinator.New(coordinator.Config{DB: db, NodeID: nodeID, Locks: locks, Now: now}),
	}
	ctl.sink.Attach(events.SinkFunc(logEvents))
	return ctl, nil
}

// loadDB loads (or creates when needed) the database taking into account the
// selected database backend and returns a handle to it.
func loadDB(cfg *Config) (database.DB, error) {
	dbType := cfg.DbType
	if dbType == "" {
		dbType = memDbType
	}

	// The memdb backend does not have a file path associated with it, so
	// handle it uniquely.
	if dbType == memDbType {
		log.Info().Msg("Creating database in memory.")
		return database.Create(dbType)
	}

	dbPath := filepath.Join(cfg.DataDir, dbNamePrefix+"_"+dbType)
	log.Info().Str("path", dbPath).Msg("Loading database")

	db, err := database.Open(dbType, dbPath)
	if err != nil {
		// Return the error if it's not because the database doesn't exist.
		if dbErr, ok := err.(database.Error); !ok || dbErr.ErrorCode !=
			database.ErrDbDoesNotExist {

			return nil, err
		}

		// Create the db if it does not exist.
		if err = os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, errors.Wrap(err, "unable to create data dir")
		}
		db, err = database.Create(dbType, dbPath)
		if err != nil {
			return nil, err
		}
	}

	log.Info().Str("db_type", dbType).Msg("Database loaded")
	return db, nil
}

// Events lets callers attach additional sinks.
func (ctl *Controller) Events() *events.Fanout {
	return &ctl.sink
}

// Run starts the RPC server, the metrics listener and the timeout reaper and
// blocks until ctx is done or one of them fails.  The database is closed on
// return.
func (ctl *Controller) Run(ctx context.Context) error {
	defer ctl.Close()

	if !ctl.cfg.RPC.Disable {
		ctl.rpc = rpc.NewServer(&ctl.cfg.RPC, ctl)
		ctl.sink.Attach(ctl.rpc)
	}

	var manager *metrics.Manager
	if ctl.cfg.Metrics.Enable {
		var err error
		manager, err = ctl.initMetrics()
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if ctl.rpc != nil {
		g.Go(func() error {
			return ctl.rpc.Run(gctx)
		})
	}
	if manager != nil {
		g.Go(func() error {
			manager.Run(gctx)
			return nil
		})
		g.Go(func() error {
			return manager.Listen(gctx, "/metrics", ctl.cfg.Metrics.Port)
		})
	}
	g.Go(func() error {
		ctl.reap(gctx)
		return nil
	})

	return g.Wait()
}

func (ctl *Controller) initMetrics() (*metrics.Manager, error) {
	manager := metrics.NewManager(time.Duration(ctl.cfg.Metrics.Interval) * time.Second)
	counter, err := metrics.NewEventCounter(manager.Registry())
	if err != nil {
		return nil, errors.Wrap(err, "unable to register event counter")
	}
	ctl.sink.Attach(counter)

	dataDir := ctl.cfg.DataDir
	if ctl.db.Type() == memDbType {
		dataDir = ""
	}
	state, err := metrics.StateMetrics(manager.Registry(), ctl, dataDir)
	if err != nil {
		return nil, errors.Wrap(err, "unable to register state metrics")
	}
	manager.Add(state)
	return manager, nil
}

// reap aborts timed out epochs every ReapInterval until ctx is done.
func (ctl *Controller) reap(ctx context.Context) {
	interval := ctl.cfg.Protocol.ReapInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			aborted, err := ctl.CleanupTimeouts()
			if err != nil {
				log.Error().Err(err).Msg("Timeout cleanup failed")
				continue
			}
			if len(aborted) > 0 {
				log.Info().Strs("epochs", aborted).Msg("Aborted timed out epochs")
			}
		}
	}
}

// Close closes the database.
func (ctl *Controller) Close() error {
	return ctl.db.Close()
}

func logEvents(evs ...events.Event) {
	for _, ev := range evs {
		log.Info().Str("event", string(ev.Name)).Str("key", ev.Key).Msg("Event emitted")
	}
}
