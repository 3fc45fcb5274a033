//go:build integration

package resolver_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/plantcare/internal/testutil"
	"github.com/Sternrassler/plantcare/pkg/cache"
	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/provider"
	"github.com/Sternrassler/plantcare/pkg/provider/generative"
	"github.com/Sternrassler/plantcare/pkg/provider/structured"
	"github.com/Sternrassler/plantcare/pkg/ratelimit"
	"github.com/Sternrassler/plantcare/pkg/resolver"
	"github.com/Sternrassler/plantcare/pkg/store"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})
	return redisClient
}

// replica is one process worth of resolver wiring on shared backends.
func replica(t *testing.T, redisClient *redis.Client, st store.Store, gen, str *testutil.MockProvider) *resolver.Resolver {
	t.Helper()
	tracker := ratelimit.NewTracker(redisClient, zerolog.Nop())

	genCfg := generative.DefaultConfig()
	genCfg.APIKey = "integration-key"
	genCfg.BaseURL = gen.URL()
	genCfg.Retry.InitialBackoff = time.Millisecond
	g, err := generative.New(genCfg, tracker, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	strCfg := structured.DefaultConfig()
	strCfg.Token = "integration-token"
	strCfg.BaseURL = str.URL()
	s, err := structured.New(strCfg, tracker, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	r, err := resolver.New(resolver.Config{
		Store:     st,
		Cache:     cache.NewManager(cache.NewRedisStore(redisClient), time.Hour),
		Providers: provider.NewSet(g, s),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// TestFullResolutionFlow covers cache miss → provider → store → shared cache
// across two replicas.
func TestFullResolutionFlow(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{
		Driver:      store.DriverSQLite,
		DSN:         filepath.Join(t.TempDir(), "plants.db"),
		AutoMigrate: true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	gen := testutil.NewMockProvider()
	defer gen.Close()
	str := testutil.NewMockProvider()
	defer str.Close()

	genPath := testutil.GenerativePath(generative.DefaultModel)
	gen.SetResponse(genPath, testutil.NewJSONResponse(testutil.GenerativeCareBody(map[string]any{
		"watering_guide": "Keep the soil evenly moist during the growing season.",
		"care_summary":   "A tropical shrub that likes warmth and bright light.",
	})))
	str.SetResponse("/plants/search", testutil.NewJSONResponse(`{"data":[
		{"slug":"hibiscus-rosa-sinensis","scientific_name":"Hibiscus rosa-sinensis","common_name":"Chinese hibiscus"}
	]}`))
	str.SetResponse("/plants/hibiscus-rosa-sinensis", testutil.NewJSONResponse(`{"data":{
		"genus":{"name":"Hibiscus"},"family":{"name":"Malvaceae"},
		"main_species":{"growth":{"ph_minimum":6.0,"ph_maximum":7.0,"light":8}}
	}}`))

	first := replica(t, redisClient, st, gen, str)
	second := replica(t, redisClient, st, gen, str)

	// Replica 1: cache miss, generative answers, record is persisted.
	result := first.Resolve(ctx, resolver.Request{ScientificName: "Hibiscus rosa-sinensis"})
	if !result.Success || result.Source != care.SourceGenerative {
		t.Fatalf("first Resolve() = %+v, want generative success", result)
	}
	if gen.GetPathCount(genPath) != 1 {
		t.Errorf("generative requests = %d, want 1", gen.GetPathCount(genPath))
	}

	rec, err := st.Get(ctx, "Hibiscus rosa-sinensis")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.IsUncached() || rec.Source() != care.SourceGenerative {
		t.Errorf("record = %+v, want cached generative", rec)
	}

	// Replica 2: served from the shared cache.
	again := second.Resolve(ctx, resolver.Request{ScientificName: "Hibiscus rosa-sinensis"})
	if !again.Success || *again.Data.WateringGuide != *result.Data.WateringGuide {
		t.Errorf("second Resolve() = %+v, want cached result", again)
	}
	if gen.GetRequestCount() != 1 {
		t.Errorf("generative requests after replica 2 = %d, want 1", gen.GetRequestCount())
	}

	// Structured preference does not downgrade the stored generative record.
	structuredResult := second.Resolve(ctx, resolver.Request{ScientificName: "Hibiscus rosa-sinensis", Provider: care.SourceStructured})
	if !structuredResult.Success || structuredResult.Source != care.SourceStructured {
		t.Fatalf("structured Resolve() = %+v, want structured success", structuredResult)
	}
	rec, _ = st.Get(ctx, "Hibiscus rosa-sinensis")
	if rec.Source() != care.SourceGenerative {
		t.Errorf("stored source = %s, want generative kept", rec.Source())
	}
}

// TestCooldownSharedAcrossReplicas checks that a rate limited provider is
// skipped by every replica.
func TestCooldownSharedAcrossReplicas(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{
		Driver:      store.DriverSQLite,
		DSN:         filepath.Join(t.TempDir(), "plants.db"),
		AutoMigrate: true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	gen := testutil.NewMockProvider()
	defer gen.Close()
	str := testutil.NewMockProvider()
	defer str.Close()

	genPath := testutil.GenerativePath(generative.DefaultModel)
	gen.SetResponse(genPath, testutil.NewRateLimitResponse(time.Minute))

	first := replica(t, redisClient, st, gen, str)
	second := replica(t, redisClient, st, gen, str)

	if r := first.Resolve(ctx, resolver.Request{ScientificName: "Ficus lyrata"}); r.Success {
		t.Fatalf("Resolve() = %+v, want failure", r)
	}
	calls := gen.GetPathCount(genPath)
	if calls != 2 {
		t.Errorf("generative requests = %d, want 2 attempts", calls)
	}

	if r := second.Resolve(ctx, resolver.Request{ScientificName: "Monstera deliciosa"}); r.Success {
		t.Fatalf("Resolve() = %+v, want failure", r)
	}
	if gen.GetPathCount(genPath) != calls {
		t.Error("second replica should skip the cooling down provider")
	}
}
