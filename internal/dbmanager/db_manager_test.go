package dbmanager_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talx-hub/gopher-billpay/internal/dbmanager"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/utils/pgcontainer"
)

const testDefaultTimeout = 10 * time.Second

var getDSN func() string

func TestMain(m *testing.M) {
	log := slog.Default()
	pg := pgcontainer.New(log)
	err := pg.RunContainer()
	if errors.Is(err, pgcontainer.ErrDockerUnavailable) {
		log.Warn("docker is unavailable, integration tests skipped")
		os.Exit(m.Run())
	}
	if err != nil {
		log.ErrorContext(context.TODO(), "unexpected test failure",
			slog.Any(model.KeyLoggerError, err))
		pg.Close()
		os.Exit(1)
	}

	getDSN = pg.GetDSN
	code := m.Run()
	pg.Close()
	os.Exit(code)
}

func requireDocker(t *testing.T) {
	t.Helper()
	if getDSN == nil {
		t.Skip("docker is unavailable")
	}
}

func TestDBManager_Connect(t *testing.T) {
	requireDocker(t)
	db := dbmanager.New(getDSN(), slog.Default())
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testDefaultTimeout)
	defer cancel()

	db.Connect(ctx).Ping(ctx)
	assert.NoError(t, db.Error())
}

func TestDBManager_ApplyMigrations(t *testing.T) {
	requireDocker(t)
	db := dbmanager.New(getDSN(), slog.Default())
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testDefaultTimeout)
	defer cancel()

	db.Connect(ctx).Ping(ctx).ApplyMigrations(ctx).ApplyMigrations(ctx)
	require.NoError(t, db.Error())

	pool, err := db.GetPool(ctx)
	require.NoError(t, err)
	var tables int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_name IN ('users', 'orders', 'service_transactions')`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 3, tables)
}

func TestDBManager_GetPool_from_nil(t *testing.T) {
	db := dbmanager.New("postgres://localhost/none", slog.Default())
	defer db.Close()

	p, err := db.GetPool(context.Background())
	assert.Nil(t, p)
	assert.Error(t, err)
}

func TestDBManager_error_sticks(t *testing.T) {
	db := dbmanager.New("::not a dsn::", slog.Default())
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testDefaultTimeout)
	defer cancel()

	db.Connect(ctx).Ping(ctx).ApplyMigrations(ctx)
	err := db.Error()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse DSN")
}
