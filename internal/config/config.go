package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the bridge process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Twilio    TwilioConfig
	Backend   BackendConfig
	Relay     RelayConfig
	Retention RetentionConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable base URL of this process
	// (e.g. https://bridge.example.com). The inbound-call webhook derives
	// the wss:// media-stream URL from it.
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// Greeting is spoken by the platform while the media stream connects.
	// Optional; an empty greeting skips the <Say> verb.
	Greeting string
}

// BackendConfig describes the speech-capable AI realtime endpoint.
type BackendConfig struct {
	URL    string
	APIKey string
	Model  string
	Voice  string

	// HandshakeTimeout bounds the dial + session handshake.
	HandshakeTimeout time.Duration
}

// RelayConfig tunes per-call bridging behavior.
type RelayConfig struct {
	// IdleTimeout closes sessions with no media activity in either direction.
	IdleTimeout time.Duration

	// SweepInterval is how often the supervisor scans for idle sessions.
	SweepInterval time.Duration

	// AudioQueueSize bounds the outbound audio queue to the AI backend.
	// When full, the oldest frame is dropped.
	AudioQueueSize int

	// ClassifierURL is the optional HTTP endpoint that names a domain agent
	// from recent conversation text. Empty disables classification; the
	// default agent is always used.
	ClassifierURL string

	// ClassifierTimeout bounds the classifier call. Routing falls back to
	// the default agent on timeout.
	ClassifierTimeout time.Duration
}

// RetentionConfig controls the conversation-record retention sweep.
type RetentionConfig struct {
	// Window is the inactivity window after which records are deleted.
	Window time.Duration

	// Interval is how often the sweep runs.
	Interval time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	// Duration env vars are optional (defaults applied in Validate()), but a
	// malformed value is a config error, not a silent fallback.
	dur := func(key string) time.Duration {
		d, err := mustDuration(key)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_PUBLIC_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = dur("JWT_ACCESS_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.Greeting = strings.TrimSpace(os.Getenv("TWILIO_GREETING"))

	c.Backend.URL = strings.TrimSpace(os.Getenv("BACKEND_REALTIME_URL"))
	c.Backend.APIKey = os.Getenv("BACKEND_API_KEY")
	c.Backend.Model = strings.TrimSpace(os.Getenv("BACKEND_MODEL"))
	c.Backend.Voice = strings.TrimSpace(os.Getenv("BACKEND_VOICE"))
	c.Backend.HandshakeTimeout = dur("BACKEND_HANDSHAKE_TIMEOUT")

	c.Relay.IdleTimeout = dur("RELAY_IDLE_TIMEOUT")
	c.Relay.SweepInterval = dur("RELAY_SWEEP_INTERVAL")
	{
		v := strings.TrimSpace(os.Getenv("RELAY_AUDIO_QUEUE_SIZE"))
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				parseErrs = append(parseErrs, fmt.Errorf("RELAY_AUDIO_QUEUE_SIZE must be an integer, got %q", v))
			} else {
				c.Relay.AudioQueueSize = n
			}
		}
	}
	c.Relay.ClassifierURL = strings.TrimSpace(os.Getenv("CLASSIFIER_URL"))
	c.Relay.ClassifierTimeout = dur("CLASSIFIER_TIMEOUT")

	c.Retention.Window = dur("RETENTION_WINDOW")
	c.Retention.Interval = dur("RETENTION_SWEEP_INTERVAL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("APP_PUBLIC_BASE_URL is required"))
	} else if !strings.HasPrefix(c.App.PublicBaseURL, "http://") && !strings.HasPrefix(c.App.PublicBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("APP_PUBLIC_BASE_URL must be http(s), got %q", c.App.PublicBaseURL))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Backend.URL == "" {
		errs = append(errs, errors.New("BACKEND_REALTIME_URL is required"))
	} else if !strings.HasPrefix(c.Backend.URL, "ws://") && !strings.HasPrefix(c.Backend.URL, "wss://") {
		errs = append(errs, fmt.Errorf("BACKEND_REALTIME_URL must be ws(s), got %q", c.Backend.URL))
	}
	if c.Backend.APIKey == "" {
		errs = append(errs, errors.New("BACKEND_API_KEY is required"))
	}
	if c.Backend.Model == "" {
		errs = append(errs, errors.New("BACKEND_MODEL is required"))
	}
	if c.Backend.Voice == "" {
		c.Backend.Voice = "alloy"
	}
	if c.Backend.HandshakeTimeout <= 0 {
		c.Backend.HandshakeTimeout = 10 * time.Second
	}

	if c.Relay.IdleTimeout <= 0 {
		c.Relay.IdleTimeout = 5 * time.Minute
	}
	if c.Relay.SweepInterval <= 0 {
		c.Relay.SweepInterval = 30 * time.Second
	}
	if c.Relay.AudioQueueSize <= 0 {
		c.Relay.AudioQueueSize = 256
	}
	if c.Relay.ClassifierTimeout <= 0 {
		c.Relay.ClassifierTimeout = 2 * time.Second
	}

	if c.Retention.Window <= 0 {
		c.Retention.Window = 30 * 24 * time.Hour
	}
	if c.Retention.Interval <= 0 {
		c.Retention.Interval = 6 * time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// MediaStreamURL is the wss:// endpoint handed to the telephony platform
// in the inbound-call TwiML.
func (c Config) MediaStreamURL() string {
	u := c.App.PublicBaseURL
	if strings.HasPrefix(u, "https://") {
		u = "wss://" + strings.TrimPrefix(u, "https://")
	} else if strings.HasPrefix(u, "http://") {
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/media-stream"
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// mustDuration parses an optional duration env var. Empty means unset; the
// caller applies a default.
func mustDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s, 5m), got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
