package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/talx-hub/gopher-billpay/internal/api/handlers"
	"github.com/talx-hub/gopher-billpay/internal/batch"
	"github.com/talx-hub/gopher-billpay/internal/callback"
	"github.com/talx-hub/gopher-billpay/internal/config"
	"github.com/talx-hub/gopher-billpay/internal/dbmanager"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/reconciler"
	"github.com/talx-hub/gopher-billpay/internal/repo"
)

var errNoDatabase = errors.New("DATABASE_URI is not set")

// stores bundles the order backends picked by the reconcile mode.
type stores struct {
	db       *dbmanager.DBManager
	orders   *repo.OrderRepository
	callback *callback.Client
}

// openStores connects to the database when one is configured and builds
// the callback client in callback mode.
func openStores(ctx context.Context, c *config.Config) (*stores, error) {
	s := &stores{}
	if c.DatabaseURI != "" {
		db, err := openDB(ctx, c.DatabaseURI)
		if err != nil {
			return nil, err
		}
		s.db = db
		pool, err := db.GetPool(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to get pool: %w", err)
		}
		s.orders = repo.NewOrderRepository(pool, log)
	}
	if c.ReconcileMode == config.ReconcileCallback {
		s.callback = callback.New(c.NodeServerURL,
			model.DefaultCallbackAttemptCount, model.DefaultCallbackBackoff)
	}
	return s, nil
}

func openDB(ctx context.Context, dsn string) (*dbmanager.DBManager, error) {
	db := dbmanager.New(dsn, log).
		Connect(ctx).
		Ping(ctx).
		ApplyMigrations(ctx)
	if err := db.Error(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	return db, nil
}

// reconciler returns nil when no order backend is available, which
// turns order updates off.
func (s *stores) reconciler() batch.Reconciler {
	switch {
	case s.callback != nil:
		return reconciler.New(s.callback)
	case s.orders != nil:
		return reconciler.New(s.orders)
	}
	return nil
}

func (s *stores) close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *stores) healthChecks() []handlers.Check {
	var checks []handlers.Check
	if s.db != nil {
		checks = append(checks, func(ctx context.Context) error {
			pool, err := s.db.GetPool(ctx)
			if err != nil {
				return fmt.Errorf("failed to get pool: %w", err)
			}
			return pool.Ping(ctx) //nolint: wrapcheck // reported as is
		})
	}
	if s.callback != nil {
		checks = append(checks, s.callback.Health)
	}
	return checks
}
