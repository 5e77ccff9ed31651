// Package pgcontainer runs a throwaway Postgres container for integration tests.
package pgcontainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/talx-hub/gopher-billpay/internal/model"
)

// ErrDockerUnavailable is returned when no docker daemon answers.
var ErrDockerUnavailable = errors.New("docker is unavailable")

const (
	pgPort       = "5432/tcp"
	defaultTag   = "17-alpine"
	testDBName   = "test"
	testUser     = "test"
	testPassword = "test"
	maxWait      = 30 * time.Second
)

type PGContainer struct {
	log      *slog.Logger
	pool     *dockertest.Pool
	resource *dockertest.Resource
	hostPort string
}

func New(log *slog.Logger) *PGContainer {
	return &PGContainer{log: log}
}

func (c *PGContainer) RunContainer() error {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDockerUnavailable, err)
	}
	if err = pool.Client.Ping(); err != nil {
		return fmt.Errorf("%w: %w", ErrDockerUnavailable, err)
	}
	c.pool = pool

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Repository: "postgres",
			Tag:        imageTag(),
			Env: []string{
				"POSTGRES_DB=" + testDBName,
				"POSTGRES_USER=" + testUser,
				"POSTGRES_PASSWORD=" + testPassword,
			},
			ExposedPorts: []string{pgPort},
		},
		func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{Name: "no"}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to run postgres container: %w", err)
	}
	c.resource = resource
	c.hostPort = resource.GetHostPort(pgPort)

	pool.MaxWait = maxWait
	if err = pool.Retry(func() error {
		conn, err := pgx.Connect(context.Background(), c.GetDSN())
		if err != nil {
			return fmt.Errorf("failed to connect to the DB: %w", err)
		}
		return conn.Close(context.Background()) //nolint: wrapcheck // retry loop only
	}); err != nil {
		return fmt.Errorf("postgres container is not ready: %w", err)
	}
	return nil
}

func (c *PGContainer) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		testUser,
		testPassword,
		c.hostPort,
		testDBName,
	)
}

func (c *PGContainer) Close() {
	if c.pool == nil || c.resource == nil {
		return
	}
	if err := c.pool.Purge(c.resource); err != nil {
		c.log.LogAttrs(context.TODO(),
			slog.LevelError,
			"failed to purge the postgres container",
			slog.Any(model.KeyLoggerError, err),
		)
	}
}

// imageTag reads POSTGRES_TAG from the environment or a local .env file.
func imageTag() string {
	_ = godotenv.Load(".env")
	if tag := os.Getenv("POSTGRES_TAG"); tag != "" {
		return tag
	}
	return defaultTag
}
