//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/dyluth/vigil/pkg/console"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisPort = nat.Port("6379/tcp")

// RedisEnvironment is a disposable Redis server standing in for the
// operator console's broker.
type RedisEnvironment struct {
	T            *testing.T
	Ctx          context.Context
	URL          string
	InstanceName string
}

// StartRedis starts a Redis container that is terminated when the test ends.
func StartRedis(t *testing.T) *RedisEnvironment {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")

	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err, "Failed to get container host")

	port, err := redisC.MappedPort(ctx, redisPort)
	require.NoError(t, err, "Failed to get container port")

	return &RedisEnvironment{
		T:            t,
		Ctx:          ctx,
		URL:          fmt.Sprintf("redis://%s:%s", host, port.Port()),
		InstanceName: fmt.Sprintf("test-%s", time.Now().Format("20060102-150405-000000")),
	}
}

// NewClient returns a console client for this environment, closed at test end.
func (env *RedisEnvironment) NewClient() *console.Client {
	opts, err := redis.ParseURL(env.URL)
	require.NoError(env.T, err, "Failed to parse Redis URL")

	client, err := console.NewClient(opts, env.InstanceName)
	require.NoError(env.T, err, "Failed to create console client")
	env.T.Cleanup(func() { client.Close() })

	return client
}

// WaitForAlert blocks until an alert arrives on sub (up to 10 seconds).
func (env *RedisEnvironment) WaitForAlert(sub *console.AlertSubscription) *console.ValidationRequest {
	select {
	case alert := <-sub.Alerts():
		env.T.Logf("✓ Received alert: id=%s", alert.ID)
		return alert
	case <-time.After(10 * time.Second):
		require.Fail(env.T, "No alert received within 10 seconds")
		return nil
	}
}
