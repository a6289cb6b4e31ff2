package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
brokers: ["localhost:9092"]
command_topic: "forwarder-commands"
status_report_uri: "forwarder-status"
conversion_threads: 8
conversion_worker_queue_size: 2048
channel_queue_depth: 32
broker_pool_size: 3
main_poll_interval_ms: 10
period_ms: 60000
fake_pv_period_ms: 0
streams:
  - channel: "A"
    channel_provider_type: "ca"
    converter:
      schema: "f142"
      topic: "values"
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "forwarder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesAndValidates(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	require.Equal(t, "forwarder-commands", cfg.CommandTopic)
	require.Equal(t, 8, cfg.ConversionThreads)
	require.Len(t, cfg.Streams, 1)
	require.Equal(t, "A", cfg.Streams[0].Channel)
	require.Len(t, cfg.Streams[0].Converters, 1)
	require.Equal(t, "f142", cfg.Streams[0].Converters[0].Schema)
}

func TestLoadMissingCommandTopicIsConfigError(t *testing.T) {
	path := writeTempConfig(t, `
brokers: ["localhost:9092"]
conversion_threads: 1
conversion_worker_queue_size: 1
channel_queue_depth: 1
broker_pool_size: 1
main_poll_interval_ms: 10
`)
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Fields, "command_topic")
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyOverridesOnlyChangedFlags(t *testing.T) {
	cfg := Default()
	cfg.CommandTopic = "original"
	cfg.ConversionThreads = 4

	cmd := &cobra.Command{Run: func(*cobra.Command, []string) {}}
	BindFlags(cmd)
	require.NoError(t, cmd.Flags().Set("command-topic", "overridden"))

	require.NoError(t, ApplyOverrides(cfg, cmd))
	require.Equal(t, "overridden", cfg.CommandTopic)
	require.Equal(t, 4, cfg.ConversionThreads, "unset flags must not clobber file-based values")
}
