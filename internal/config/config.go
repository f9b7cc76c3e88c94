package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig Postgres connection settings (users table, optional)
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds a lib/pq connection string
func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

// RedisConfig backs the real-time document store and the ingestion event stream
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PipelineConfig external transformation steps
type PipelineConfig struct {
	ProcessingRoot string        // <root>/<home>/downloads receives uploads
	Python         string        // interpreter used for every step
	StepTimeout    time.Duration // per step, 0 disables
	OutputLimit    int           // bytes kept per stream per step
	PipPackages    []string      // dependency installation step
}

// MQTTConfig optional ingestion event publishing
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config cortex-admin (HTTP API)
type Config struct {
	HTTP struct {
		Addr          string
		MaxUploadSize int64
	}
	Log struct {
		Level  string
		Format string
	}
	Redis       RedisConfig
	StorePrefix string
	DBEnabled   bool
	Database    DatabaseConfig
	Pipeline    PipelineConfig
	Events      struct {
		Stream string
	}
	MQTT MQTTConfig
}

var defaultPipPackages = []string{"pdfplumber", "openai", "pandas", "python-dotenv", "openpyxl"}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.MaxUploadSize = int64(parseInt(getEnv("MAX_UPLOAD_MB", "256"), 256)) << 20

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.StorePrefix = getEnv("STORE_PREFIX", "rtdb:")

	// Users live in the document store unless Postgres is switched on.
	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "cortex")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "2"), 2)

	cfg.Pipeline.ProcessingRoot = getEnv("PROCESSING_ROOT", "./python")
	cfg.Pipeline.Python = getEnv("PIPELINE_PYTHON", "python3")
	cfg.Pipeline.StepTimeout = parseDuration(getEnv("PIPELINE_STEP_TIMEOUT", "10m"), 10*time.Minute)
	cfg.Pipeline.OutputLimit = parseInt(getEnv("PIPELINE_OUTPUT_LIMIT", "1048576"), 1<<20)
	cfg.Pipeline.PipPackages = parseList(getEnv("PIPELINE_PIP_PACKAGES", ""), defaultPipPackages)

	cfg.Events.Stream = getEnv("EVENTS_STREAM", "cortex:ingestion:events")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "cortex-admin")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "cortex/ingestion")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// parseList splits a comma separated value, falling back to def when nothing usable is left
func parseList(s string, def []string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
