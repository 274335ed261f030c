package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"processor-service/service/preprocess"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.ListenPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxConcurrentJobs)
	assert.Equal(t, 72*time.Hour, cfg.JobRetention)
	assert.Empty(t, cfg.Notifiers)
	assert.False(t, cfg.RateLimit.Enabled())
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, preprocess.DefaultOptions(), cfg.Pipeline)
	assert.Contains(t, cfg.Database.DSN(), "host=localhost port=5432")
}

func TestLoadOverridesFromEnv(t *testing.T) {
	cfg, err := LoadFromEnv(envMap(map[string]string{
		"LISTEN_PORT":           "8080",
		"LOG_LEVEL":             "DEBUG",
		"DATABASE_URL":          "postgres://u:p@db/processor",
		"MAX_CONCURRENT_JOBS":   "8",
		"PIPELINE_TIMEOUT":      "90",
		"JOB_RETENTION":         "24h",
		"MIN_TRAINING_ROWS":     "100",
		"CV_FOLDS":              "3",
		"MAX_PERFORMANCE_DROP":  "0.1",
		"CORRELATION_THRESHOLD": "0.9",
		"RANDOM_SEED":           "7",
		"NOTIFIERS":             "Kafka, sse",
		"KAFKA_BROKERS":         "k1:9092,k2:9092",
		"SUBMIT_RATE_LIMIT":     "5",
		"SUBMIT_RATE_WINDOW":    "30s",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://u:p@db/processor", cfg.Database.DSN())
	assert.Equal(t, 8, cfg.MaxConcurrentJobs)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.JobRetention)
	assert.Equal(t, 100, cfg.Pipeline.MinRows)
	assert.Equal(t, 3, cfg.Pipeline.Validation.Folds)
	assert.Equal(t, 0.1, cfg.Pipeline.Validation.Tolerance)
	assert.Equal(t, 0.9, cfg.Pipeline.Selection.CorrelationThreshold)
	assert.EqualValues(t, 7, cfg.Pipeline.Seed)
	assert.Equal(t, []string{"kafka", "sse"}, cfg.Notifiers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Enabled("kafka"))
	assert.False(t, cfg.Enabled("mqtt"))
	assert.True(t, cfg.RateLimit.Enabled())
	assert.Equal(t, 5, cfg.RateLimit.PerClient)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	cfg, err := LoadFromEnv(envMap(map[string]string{"MAX_CONCURRENT_JOBS": "many"}))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxConcurrentJobs)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown notifier":     {"NOTIFIERS": "pigeon"},
		"kafka without broker": {"NOTIFIERS": "kafka"},
		"mqtt without broker":  {"NOTIFIERS": "mqtt"},
		"redis without host":   {"NOTIFIERS": "redis"},
		"bad log level":        {"LOG_LEVEL": "verbose"},
		"zero concurrency":     {"MAX_CONCURRENT_JOBS": "0"},
		"single fold":          {"CV_FOLDS": "1"},
		"negative rate limit":  {"SUBMIT_RATE_LIMIT": "-1"},
		"sub-second window":    {"SUBMIT_RATE_WINDOW": "10ms"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}

func TestLoadPipelineDefaultsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
missing_values:
  strategy: median
outliers:
  detection_method: iqr
  iqr_multiplier: 3
scaling:
  method: minmax
timeout: 2m
`), 0o644))

	cfg, err := LoadFromEnv(envMap(map[string]string{
		"PIPELINE_DEFAULTS_FILE": path,
		"MIN_TRAINING_ROWS":      "60",
	}))
	require.NoError(t, err)
	assert.Equal(t, preprocess.ImputeMedian, cfg.Pipeline.MissingValues.Strategy)
	assert.Equal(t, preprocess.OutlierIQR, cfg.Pipeline.Outliers.Method)
	assert.Equal(t, 3.0, cfg.Pipeline.Outliers.IQRMultiplier)
	assert.Equal(t, preprocess.ScaleMinMax, cfg.Pipeline.Scaling.Method)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, 60, cfg.Pipeline.MinRows)
	assert.Equal(t, preprocess.DefaultOptions().Encoding, cfg.Pipeline.Encoding)

	_, err = LoadFromEnv(envMap(map[string]string{"PIPELINE_DEFAULTS_FILE": filepath.Join(t.TempDir(), "none.yaml")}))
	assert.Error(t, err)
}

func TestConfigService(t *testing.T) {
	cfg, err := LoadFromEnv(envMap(map[string]string{"DB_PASSWORD": "secret", "MAX_CONCURRENT_JOBS": "6"}))
	require.NoError(t, err)
	svc := NewConfigService(cfg)

	items := svc.GetAllSystemConfigs()
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].Key, items[i].Key)
	}
	for _, item := range items {
		assert.NotContains(t, item.Value, "secret")
	}

	item, err := svc.GetSystemConfig("max_concurrent_jobs")
	require.NoError(t, err)
	assert.Equal(t, "6", item.Value)

	_, err = svc.GetSystemConfig("DB_PASSWORD")
	assert.ErrorIs(t, err, ErrConfigKeyNotFound)
}
