package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Storage   StorageConfig
	Vision    VisionConfig
	Matcher   MatcherConfig
	Liveness  LivenessConfig
	Landmarks LandmarkConfig
	MQTT      MQTTConfig
	Log       LogConfig
	Web       WebConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

// StorageConfig covers the remote blob store and the local template cache.
type StorageConfig struct {
	Bucket        string
	Region        string        // defaults to us-east-1
	Endpoint      string        // S3-compatible endpoint (MinIO etc.), empty for AWS
	AccessKey     string
	SecretKey     string
	Prefix        string        // key prefix inside the bucket, defaults to "faces"
	URLExpiry     time.Duration // presigned GET lifetime
	RemoteTimeout time.Duration // bound for a single upload/presign/download
	TemplateDir   string        // local cache directory, defaults to local_db
}

type VisionConfig struct {
	MeshURL       string // face-mesh sidecar, defaults to http://localhost:8000
	Detector      string // cascade or dlib
	CascadePath   string
	DlibModelsDir string
}

type MatcherConfig struct {
	DistanceThreshold float64
	PresencePeriod    int // days
}

type LivenessConfig struct {
	BlinkEAR        float64       `yaml:"blink_ear"`
	SmileWidthRatio float64       `yaml:"smile_width_ratio"`
	SmirkLiftMargin float64       `yaml:"smirk_lift_margin"`
	IdleTimeout     time.Duration `yaml:"-"`
}

// LandmarkConfig holds face-mesh indices used by the geometry functions.
type LandmarkConfig struct {
	LeftEye    []int `yaml:"left_eye"`
	RightEye   []int `yaml:"right_eye"`
	MouthLeft  int   `yaml:"mouth_left"`
	MouthRight int   `yaml:"mouth_right"`
	FaceLeft   int   `yaml:"face_left"`
	FaceRight  int   `yaml:"face_right"`
	UpperLip   int   `yaml:"upper_lip"`
	LowerLip   int   `yaml:"lower_lip"`
}

type MQTTConfig struct {
	Broker   string // empty disables event publishing
	Topic    string
	ClientID string
	Username string
	Password string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

type defaults struct {
	Landmarks LandmarkConfig `yaml:"landmarks"`
	Liveness  LivenessConfig `yaml:"liveness"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a positive Go duration ("15s", "2m"), falling back to defaultVal.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Storage: StorageConfig{
			Bucket:        os.Getenv("S3_BUCKET"),
			Region:        envString("S3_REGION", "us-east-1"),
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			Prefix:        envString("S3_PREFIX", "faces"),
			URLExpiry:     envDuration("S3_URL_EXPIRY", constants.DefaultURLExpiry),
			RemoteTimeout: envDuration("REMOTE_TIMEOUT", constants.DefaultRemoteTimeout),
			TemplateDir:   envString("TEMPLATE_DIR", "local_db"),
		},
		Vision: VisionConfig{
			MeshURL:       envString("MESH_URL", "http://localhost:8000"),
			Detector:      envString("FACE_DETECTOR", "cascade"),
			CascadePath:   envString("CASCADE_PATH", "data/haarcascade_frontalface_default.xml"),
			DlibModelsDir: envString("DLIB_MODELS_DIR", "data"),
		},
		Matcher: MatcherConfig{
			DistanceThreshold: envFloat("MATCH_THRESHOLD", constants.DefaultDistanceThreshold),
			PresencePeriod:    envInt("PRESENCE_PERIOD_DAYS", constants.PresencePeriodDays),
		},
		Liveness: LivenessConfig{
			BlinkEAR:        envFloat("BLINK_EAR_THRESHOLD", d.Liveness.BlinkEAR),
			SmileWidthRatio: envFloat("SMILE_WIDTH_RATIO", d.Liveness.SmileWidthRatio),
			SmirkLiftMargin: envFloat("SMIRK_LIFT_MARGIN", d.Liveness.SmirkLiftMargin),
			IdleTimeout:     envDuration("IDLE_TIMEOUT", constants.IdleTimeout),
		},
		Landmarks: d.Landmarks,
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", "kiosk/attendance"),
			ClientID: os.Getenv("MQTT_CLIENT_ID"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 5000),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// Validate reports the settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}

// MissingError lists required environment variables that are unset.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	msg := "required environment variables not set:"
	for _, v := range e.Vars {
		msg += " " + v
	}
	return msg
}
