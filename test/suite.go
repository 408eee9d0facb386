// Package test provides shared helpers for integration tests that need real
// infrastructure. Containers are started with testcontainers; tests skip when
// Docker is not available or when running with -short.
package test

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apae-gestao/apae/core/csql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresUser     = "testuser"
	postgresPassword = "testpass"
	postgresDB       = "testdb"
)

var (
	dockerOnce sync.Once
	hasDocker  bool
)

// DockerAvailable returns true if the Docker daemon is reachable.
// testcontainers panics without Docker, so callers probe first.
func DockerAvailable() bool {
	dockerOnce.Do(func() {
		hasDocker = exec.Command("docker", "info").Run() == nil
	})
	return hasDocker
}

// Postgres starts a postgres container for the test and returns a database
// opened on a fresh schema named after the test. The container is terminated
// when the test ends.
func Postgres(t *testing.T) *csql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	if !DockerAvailable() {
		t.Skip("Docker not available, skipping postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgC.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	pgHost, err := pgC.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pgPort, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	db := csql.OpenWithSchema(fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		pgHost, pgPort.Port(), postgresUser, postgresDB), postgresPassword, schemaName(t))
	t.Cleanup(func() { db.Close() })
	return db
}

func schemaName(t *testing.T) string {
	name := strings.ToLower(t.Name())
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "t_" + b.String()
}
