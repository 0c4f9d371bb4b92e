package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestServerDefaults(t *testing.T) {
	cfg, err := ServerFromViper(viper.New())
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8094", cfg.Server.Addr())
	require.NotEmpty(t, cfg.Server.InstanceID)
	require.Equal(t, "redis", cfg.PubSub.Driver)
	require.Equal(t, "localhost:6379", cfg.PubSub.Redis.Address)
	require.Equal(t, "cursors-"+cfg.Server.InstanceID, cfg.PubSub.Kafka.GroupID)
	require.Equal(t, "cursors-events", cfg.PubSub.Kafka.Topic)
	require.Equal(t, 2*time.Minute, cfg.Presence.TTL)
	require.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	require.EqualValues(t, 4096, cfg.WebSocket.MaxMessageSize)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestServerEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("INSTANCE_ID", "node-a")
	t.Setenv("PUBSUB_DRIVER", "memory")
	t.Setenv("REDIS_ADDRESS", "redis:6380")

	cfg, err := ServerFromViper(viper.New())
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "node-a", cfg.Server.InstanceID)
	require.Equal(t, "memory", cfg.PubSub.Driver)
	require.Equal(t, "redis:6380", cfg.PubSub.Redis.Address)
	require.Equal(t, "cursors-node-a", cfg.PubSub.Kafka.GroupID)
}

func TestParticipantDefaults(t *testing.T) {
	cfg, err := ParticipantFromViper(viper.New())
	require.NoError(t, err)

	require.Equal(t, "ws://localhost:8094/cursors", cfg.Client.URL)
	require.Equal(t, "lobby", cfg.Client.Room)
	require.Equal(t, 100*time.Millisecond, cfg.Reactions.EmitInterval)
	require.Equal(t, time.Second, cfg.Reactions.SweepInterval)
	require.Equal(t, 4*time.Second, cfg.Reactions.Lifetime)
}

func TestParticipantFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(file, []byte("client:\n  room: studio\nreactions:\n  emit_interval: 50ms\n  lifetime: 0s\n"), 0o600))

	cfg, err := LoadParticipant(file)
	require.NoError(t, err)
	require.Equal(t, "studio", cfg.Client.Room)
	require.Equal(t, 50*time.Millisecond, cfg.Reactions.EmitInterval)
	require.Equal(t, 4*time.Second, cfg.Reactions.Lifetime, "non-positive duration falls back")
}
