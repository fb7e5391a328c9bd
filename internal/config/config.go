// Package config loads leadsync settings from the environment and an
// optional dotenv file.
//
// Process environment variables take precedence over the dotenv file, which
// takes precedence over the defaults below.
//
//	GOOGLE_CREDS_PATH            service account key (default ./service-account.json)
//	SHEET_ID                     spreadsheet ID (required)
//	SHEET_RANGE                  lead range (default Leads!A:F)
//	TRELLO_KEY, TRELLO_TOKEN     API credentials (required)
//	TRELLO_BOARD_ID              board to sync (required)
//	TRELLO_LIST_TODO_ID          list for status "new" (required)
//	TRELLO_LIST_IN_PROGRESS_ID   list for status "contacted" (required)
//	TRELLO_LIST_DONE_ID          list for status "qualified" (required)
//	TRELLO_LIST_LOST_ID          list for status "lost" (required)
//	LOG_LEVEL                    DEBUG, INFO, WARNING, ERROR or CRITICAL (default INFO)
//	ENABLE_FILE_LOGGING          also log to LOG_DIR/sync.log (default false)
//	LOG_DIR                      log directory (default ./logs)
//	RETRY_MAX_RETRIES            retries after the first attempt (default 3)
//	RETRY_BASE_DELAY             first retry delay (default 1s)
//	RETRY_BACKOFF_FACTOR         delay multiplier (default 2)
//	HTTP_TIMEOUT                 per-request timeout for the board API (default 10s)
//	LEADSYNC_OTEL_ENABLED        turn on tracing and metrics (default false)
//	LEADSYNC_OTEL_STDOUT         print spans and metrics to stdout (default false)
//	OTEL_EXPORTER_OTLP_ENDPOINT  OTLP/HTTP collector for metrics, e.g. http://localhost:4318
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT  overrides the endpoint above for metrics
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/steveyegge/leadsync/internal/types"
)

// DefaultEnvFile is the dotenv file read when no other is given.
const DefaultEnvFile = ".env"

// Keys.
const (
	KeyCredsPath      = "GOOGLE_CREDS_PATH"
	KeySheetID        = "SHEET_ID"
	KeySheetRange     = "SHEET_RANGE"
	KeyTrelloKey      = "TRELLO_KEY"
	KeyTrelloToken    = "TRELLO_TOKEN"
	KeyBoardID        = "TRELLO_BOARD_ID"
	KeyListTodo       = "TRELLO_LIST_TODO_ID"
	KeyListInProgress = "TRELLO_LIST_IN_PROGRESS_ID"
	KeyListDone       = "TRELLO_LIST_DONE_ID"
	KeyListLost       = "TRELLO_LIST_LOST_ID"
	KeyLogLevel       = "LOG_LEVEL"
	KeyFileLogging    = "ENABLE_FILE_LOGGING"
	KeyLogDir         = "LOG_DIR"
	KeyRetryMax       = "RETRY_MAX_RETRIES"
	KeyRetryBaseDelay = "RETRY_BASE_DELAY"
	KeyRetryFactor    = "RETRY_BACKOFF_FACTOR"
	KeyHTTPTimeout    = "HTTP_TIMEOUT"

	KeyOTelEnabled         = "LEADSYNC_OTEL_ENABLED"
	KeyOTelStdout          = "LEADSYNC_OTEL_STDOUT"
	KeyOTLPEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyOTLPMetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
)

const (
	defaultSheetRange  = "Leads!A:F"
	defaultCredsPath   = "./service-account.json"
	defaultLogDir      = "./logs"
	defaultLogLevel    = "INFO"
	defaultHTTPTimeout = 10 * time.Second
	defaultRetryBase   = time.Second
	defaultRetryFactor = 2.0
	defaultRetryMax    = 3
)

// Config holds every setting leadsync reads.
type Config struct {
	CredsPath  string
	SheetID    string
	SheetRange string

	TrelloKey   string
	TrelloToken string
	BoardID     string
	Lists       map[types.Status]string

	LogLevel    string
	FileLogging bool
	LogDir      string

	RetryMaxRetries int
	RetryBaseDelay  time.Duration
	RetryFactor     float64
	HTTPTimeout     time.Duration

	OTelEnabled  bool
	OTelStdout   bool
	OTLPEndpoint string

	// EnvFile is the dotenv file that was read, empty if none.
	EnvFile string
}

// Load reads configuration from envFile (if it exists) and the process
// environment. An empty envFile means DefaultEnvFile. A missing file is
// not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	v := viper.New()
	v.SetDefault(KeyCredsPath, defaultCredsPath)
	v.SetDefault(KeySheetRange, defaultSheetRange)
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyFileLogging, false)
	v.SetDefault(KeyLogDir, defaultLogDir)
	v.SetDefault(KeyRetryMax, defaultRetryMax)
	v.SetDefault(KeyRetryBaseDelay, defaultRetryBase.String())
	v.SetDefault(KeyRetryFactor, defaultRetryFactor)
	v.SetDefault(KeyHTTPTimeout, defaultHTTPTimeout.String())
	v.SetDefault(KeyOTelEnabled, false)
	v.SetDefault(KeyOTelStdout, false)
	v.AutomaticEnv()

	cfg := &Config{}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		cfg.EnvFile = envFile
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", envFile, err)
	}

	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg.CredsPath = str(KeyCredsPath)
	cfg.SheetID = str(KeySheetID)
	cfg.SheetRange = str(KeySheetRange)
	cfg.TrelloKey = str(KeyTrelloKey)
	cfg.TrelloToken = str(KeyTrelloToken)
	cfg.BoardID = str(KeyBoardID)
	cfg.Lists = map[types.Status]string{
		types.StatusNew:       str(KeyListTodo),
		types.StatusContacted: str(KeyListInProgress),
		types.StatusQualified: str(KeyListDone),
		types.StatusLost:      str(KeyListLost),
	}
	cfg.LogLevel = strings.ToUpper(str(KeyLogLevel))
	cfg.FileLogging = v.GetBool(KeyFileLogging)
	cfg.LogDir = str(KeyLogDir)
	cfg.RetryMaxRetries = v.GetInt(KeyRetryMax)
	cfg.RetryFactor = v.GetFloat64(KeyRetryFactor)
	cfg.OTelEnabled = v.GetBool(KeyOTelEnabled)
	cfg.OTelStdout = v.GetBool(KeyOTelStdout)
	cfg.OTLPEndpoint = str(KeyOTLPMetricsEndpoint)
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = str(KeyOTLPEndpoint)
	}

	var err error
	if cfg.RetryBaseDelay, err = parseDuration(str(KeyRetryBaseDelay)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyRetryBaseDelay, err)
	}
	if cfg.HTTPTimeout, err = parseDuration(str(KeyHTTPTimeout)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyHTTPTimeout, err)
	}
	return cfg, nil
}

// parseDuration accepts Go durations ("1500ms") or bare seconds ("1.5").
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// ValidationError lists required settings that are missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Missing, ", ")
}

// Validate checks that every required setting is present and the
// credentials file is readable. All missing settings are reported together.
func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{KeySheetID, c.SheetID},
		{KeyTrelloKey, c.TrelloKey},
		{KeyTrelloToken, c.TrelloToken},
		{KeyBoardID, c.BoardID},
		{KeyListTodo, c.Lists[types.StatusNew]},
		{KeyListInProgress, c.Lists[types.StatusContacted]},
		{KeyListDone, c.Lists[types.StatusQualified]},
		{KeyListLost, c.Lists[types.StatusLost]},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	if c.RetryMaxRetries < 0 {
		return fmt.Errorf("%s must not be negative", KeyRetryMax)
	}
	if c.RetryFactor < 1 {
		return fmt.Errorf("%s must be at least 1", KeyRetryFactor)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyHTTPTimeout)
	}

	f, err := os.Open(c.CredsPath)
	if err != nil {
		return fmt.Errorf("google credentials file not readable at %s: %w", c.CredsPath, err)
	}
	_ = f.Close()
	return nil
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}
