package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/fire-radar/internal/config"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadAPIDefaults(t *testing.T) {
	clearEnv(t, "API_BIND_ADDR", "REFRESH_INTERVAL", "CACHE_TTL", "SOURCE_TIMEOUT", "SOURCES_FILE",
		"HTTP_USER_AGENT", "CORS_ALLOWED_ORIGINS", "SUBSCRIBERS_DB_PATH", "ALERTS_KAFKA_BROKERS",
		"ALERTS_KAFKA_TOPIC", "API_ARCHIVE_ENABLED", "ELASTICSEARCH_ADDR", "ELASTICSEARCH_INDEX",
		"API_PAGE_SIZE", "API_MAX_PAGE_SIZE")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:3000", cfg.BindAddr)
	require.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
	require.Equal(t, 20*time.Second, cfg.SourceTimeout)
	require.Empty(t, cfg.SourcesFile)
	require.Equal(t, "fire-radar/1.0", cfg.UserAgent)
	require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	require.Empty(t, cfg.SubscribersDBPath)
	require.False(t, cfg.AlertsStreamEnabled())
	require.Equal(t, "wildfire_alerts", cfg.AlertsKafkaTopic)
	require.False(t, cfg.ArchiveEnabled)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "wildfire-alerts", cfg.ElasticsearchIndex)
}

func TestLoadAPIOverrides(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("REFRESH_INTERVAL", "1m")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("SOURCES_FILE", " /etc/fire-radar/sources.yaml ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://radar.dz, http://localhost:5173")
	t.Setenv("SUBSCRIBERS_DB_PATH", "/data/subscribers.db")
	t.Setenv("ALERTS_KAFKA_BROKERS", "kafka-a:9092,kafka-b:9092")
	t.Setenv("ALERTS_KAFKA_TOPIC", "alerts")
	t.Setenv("API_ARCHIVE_ENABLED", "true")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, time.Minute, cfg.RefreshInterval)
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.Equal(t, 5*time.Second, cfg.SourceTimeout)
	require.Equal(t, "/etc/fire-radar/sources.yaml", cfg.SourcesFile)
	require.Equal(t, []string{"https://radar.dz", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "/data/subscribers.db", cfg.SubscribersDBPath)
	require.True(t, cfg.AlertsStreamEnabled())
	require.Equal(t, []string{"kafka-a:9092", "kafka-b:9092"}, cfg.AlertsKafkaBrokers)
	require.Equal(t, "alerts", cfg.AlertsKafkaTopic)
	require.True(t, cfg.ArchiveEnabled)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
}

func TestLoadAPIInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"negative interval": {"REFRESH_INTERVAL": "-1m"},
		"zero ttl":          {"CACHE_TTL": "0s"},
		"page over max":     {"API_PAGE_SIZE": "50", "API_MAX_PAGE_SIZE": "10"},
		"no origins":        {"CORS_ALLOWED_ORIGINS": " , "},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.LoadAPI()
			require.Error(t, err)
		})
	}
}

func TestLoadAPIBadDurationFallsBack(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "soon")
	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.RefreshInterval)
}

func TestLoadWorkerDefaults(t *testing.T) {
	clearEnv(t, "ELASTICSEARCH_ADDR", "ELASTICSEARCH_INDEX", "KAFKA_BROKERS", "ALERTS_KAFKA_TOPIC",
		"KAFKA_CONSUMER_GROUP", "WORKER_KEYWORD_LIMIT", "WORKER_KEYWORD_MIN_LEN",
		"WORKER_DEDUPE_CAPACITY", "WORKER_DEDUPE_TTL", "WORKER_BATCH_SIZE")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "wildfire-alerts", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "wildfire_alerts", cfg.KafkaTopic)
	require.Equal(t, "alert-archiver", cfg.KafkaConsumer)
	require.Equal(t, 8, cfg.KeywordLimit)
	require.Equal(t, 4, cfg.KeywordMinLength)
	require.Equal(t, 20000, cfg.DedupeCapacity)
	require.Equal(t, 24*time.Hour, cfg.DedupeTTL)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("ALERTS_KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_KEYWORD_LIMIT", "12")
	t.Setenv("WORKER_KEYWORD_MIN_LEN", "5")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 12, cfg.KeywordLimit)
	require.Equal(t, 5, cfg.KeywordMinLength)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
}

func TestLoadWorkerRejectsBadValues(t *testing.T) {
	t.Setenv("WORKER_KEYWORD_MIN_LEN", "-1")
	_, err := config.LoadWorker()
	require.Error(t, err)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}

func TestLoadRetentionDefaults(t *testing.T) {
	clearEnv(t, "RETENTION_CRON", "RETENTION_MAX_AGE", "RETENTION_BATCH_SIZE")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.Interval)
	require.Equal(t, 720*time.Hour, cfg.MaxAge)
	require.Equal(t, 500, cfg.BatchSize)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FIRE_RADAR_DOTENV_A=from-file\nFIRE_RADAR_DOTENV_B=from-file\n"), 0o600))

	t.Setenv("FIRE_RADAR_DOTENV_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("FIRE_RADAR_DOTENV_A") })

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	require.Equal(t, "from-file", os.Getenv("FIRE_RADAR_DOTENV_A"))
	require.Equal(t, "from-env", os.Getenv("FIRE_RADAR_DOTENV_B"))
}
