//go:build integration

package main

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/plantcare/pkg/config"
)

func setupTestRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	return host + ":" + port.Port()
}

func TestNewApp_WithRedis(t *testing.T) {
	addr := setupTestRedis(t)

	c, err := config.Load(writeConfig(t, "redis:\n  addr: "+addr+"\n"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, c)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	if got := a.cache.Layer(); got != "redis" {
		t.Errorf("cache layer = %q, want redis", got)
	}
	if err := a.ready(ctx); err != nil {
		t.Errorf("ready() error = %v", err)
	}

	a.redis.Close()
	if err := a.ready(ctx); err == nil {
		t.Error("ready() should fail once redis is closed")
	}
}
