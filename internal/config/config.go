package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Jira         JiraConfig
	Gemini       GeminiConfig
	Quality      QualityConfig
	Transitions  TransitionConfig
	Queue        QueueConfig
	Scan         ScanConfig
	Webhook      WebhookConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the run archive.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the task queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines admin authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminUsername         string
	AdminPasswordHash     string
	BcryptCost            int
}

// JiraConfig holds ticket store connection values.
type JiraConfig struct {
	BaseURL        string
	Username       string
	APIToken       string
	TimeoutSeconds int
	ProjectKeys    []string
	ProcessTypes   []string

	// Field IDs the ticket store uses for the quality-relevant custom
	// fields. Empty means the field is not mapped on this instance.
	StepsField           string
	AffectedVersionField string
	CustomerImpactField  string
}

// GeminiConfig holds generative text service values.
type GeminiConfig struct {
	APIKey          string
	Model           string
	TimeoutSeconds  int
	Temperature     float64
	MaxOutputTokens int
}

// QualityConfig tunes the quality rule engine.
type QualityConfig struct {
	SummaryMinLength       int
	SummaryMaxLength       int
	DescriptionMinLength   int
	DescriptionMaxLength   int
	HighPriorityLevels     []string
	HighPriorityEnforceAll bool
	HighQualityMaxIssues   int
	MediumQualityMaxIssues int
	RulesVersion           string
}

// TransitionConfig maps resolver outcomes to workflow status names.
type TransitionConfig struct {
	UnderInvestigationStatus  string
	PendingCustomerStatus     string
	ReadyForDevStatus         string
	UnreproducibleIssueType   string
	MinScoreForInvestigation  int
	MaxIssuesForInvestigation int
	MinUnreproducibleDescLen  int
}

// QueueConfig tunes the priority scheduler.
type QueueConfig struct {
	WorkerCount        int
	MaxRetries         int
	RetryBaseDelaySec  int
	DedupWindowSeconds int
	ResultTTLSeconds   int
	RunTimeoutSeconds  int
	PollIntervalMillis int
	InFlightTTLSeconds int
}

// ScanConfig controls the periodic ticket scan.
type ScanConfig struct {
	Enabled        bool
	CronSpec       string
	LookbackHours  int
	RecencySeconds int
	MaxResults     int
}

// WebhookConfig controls webhook verification and gating.
type WebhookConfig struct {
	Secret          string
	VerifySignature bool
}

// NotificationConfig holds the optional operator webhook endpoint.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-triage-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 30),
			AdminUsername:         getEnv("AUTH_ADMIN_USERNAME", "admin"),
			AdminPasswordHash:     os.Getenv("AUTH_ADMIN_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Jira: JiraConfig{
			BaseURL:        strings.TrimRight(getEnv("JIRA_BASE_URL", ""), "/"),
			Username:       os.Getenv("JIRA_USERNAME"),
			APIToken:       os.Getenv("JIRA_API_TOKEN"),
			TimeoutSeconds: getEnvAsInt("JIRA_TIMEOUT_SECONDS", 30),
			ProjectKeys:    getEnvAsList("JIRA_PROJECT_KEYS", []string{"PS"}),
			ProcessTypes:   getEnvAsList("JIRA_PROCESS_ISSUE_TYPES", []string{"Bug", "Problem", "Support Request", "Unreproducible Bug"}),

			StepsField:           getEnv("JIRA_FIELD_STEPS_TO_REPRODUCE", ""),
			AffectedVersionField: getEnv("JIRA_FIELD_AFFECTED_VERSION", ""),
			CustomerImpactField:  getEnv("JIRA_FIELD_CUSTOMER_IMPACT", ""),
		},
		Gemini: GeminiConfig{
			APIKey:          os.Getenv("GEMINI_API_KEY"),
			Model:           getEnv("GEMINI_MODEL", "gemini-pro"),
			TimeoutSeconds:  getEnvAsInt("GEMINI_TIMEOUT_SECONDS", 30),
			Temperature:     getEnvAsFloat("GEMINI_TEMPERATURE", 0.3),
			MaxOutputTokens: getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 1024),
		},
		Quality: QualityConfig{
			SummaryMinLength:       getEnvAsInt("QUALITY_SUMMARY_MIN_LENGTH", 10),
			SummaryMaxLength:       getEnvAsInt("QUALITY_SUMMARY_MAX_LENGTH", 255),
			DescriptionMinLength:   getEnvAsInt("QUALITY_DESCRIPTION_MIN_LENGTH", 50),
			DescriptionMaxLength:   getEnvAsInt("QUALITY_DESCRIPTION_MAX_LENGTH", 32767),
			HighPriorityLevels:     getEnvAsList("QUALITY_HIGH_PRIORITY_LEVELS", []string{"Blocker", "P1"}),
			HighPriorityEnforceAll: getEnvAsBool("QUALITY_HIGH_PRIORITY_ENFORCE_ALL", true),
			HighQualityMaxIssues:   getEnvAsInt("QUALITY_HIGH_MAX_ISSUES", 1),
			MediumQualityMaxIssues: getEnvAsInt("QUALITY_MEDIUM_MAX_ISSUES", 3),
			RulesVersion:           getEnv("QUALITY_RULES_VERSION", "2.0"),
		},
		Transitions: TransitionConfig{
			UnderInvestigationStatus:  getEnv("TRANSITION_INVESTIGATION_STATUS", "Under Investigation"),
			PendingCustomerStatus:     getEnv("TRANSITION_PENDING_STATUS", "Pending Customer Info"),
			ReadyForDevStatus:         getEnv("TRANSITION_READY_FOR_DEV_STATUS", "Ready for Development"),
			UnreproducibleIssueType:   getEnv("TRANSITION_UNREPRODUCIBLE_TYPE", "Unreproducible Bug"),
			MinScoreForInvestigation:  getEnvAsInt("TRANSITION_MIN_SCORE", 50),
			MaxIssuesForInvestigation: getEnvAsInt("TRANSITION_MAX_ISSUES", 4),
			MinUnreproducibleDescLen:  getEnvAsInt("TRANSITION_UNREPRODUCIBLE_MIN_DESC", 10),
		},
		Queue: QueueConfig{
			WorkerCount:        getEnvAsInt("QUEUE_WORKER_COUNT", 4),
			MaxRetries:         getEnvAsInt("QUEUE_MAX_RETRIES", 3),
			RetryBaseDelaySec:  getEnvAsInt("QUEUE_RETRY_BASE_DELAY_SECONDS", 60),
			DedupWindowSeconds: getEnvAsInt("QUEUE_DEDUP_WINDOW_SECONDS", 300),
			ResultTTLSeconds:   getEnvAsInt("QUEUE_RESULT_TTL_SECONDS", 3600),
			RunTimeoutSeconds:  getEnvAsInt("QUEUE_RUN_TIMEOUT_SECONDS", 300),
			PollIntervalMillis: getEnvAsInt("QUEUE_POLL_INTERVAL_MILLIS", 500),
			InFlightTTLSeconds: getEnvAsInt("QUEUE_IN_FLIGHT_TTL_SECONDS", 600),
		},
		Scan: ScanConfig{
			Enabled:        getEnvAsBool("SCAN_ENABLED", false),
			CronSpec:       getEnv("SCAN_CRON_SPEC", "*/15 * * * *"),
			LookbackHours:  getEnvAsInt("SCAN_LOOKBACK_HOURS", 24),
			RecencySeconds: getEnvAsInt("SCAN_RECENCY_SECONDS", 1800),
			MaxResults:     getEnvAsInt("SCAN_MAX_RESULTS", 50),
		},
		Webhook: WebhookConfig{
			Secret:          os.Getenv("JIRA_WEBHOOK_SECRET"),
			VerifySignature: getEnvAsBool("WEBHOOK_VERIFY_SIGNATURE", true),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.Quality.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks threshold ordering so quality levels cannot invert.
func (q QualityConfig) Validate() error {
	if q.HighQualityMaxIssues < 0 || q.MediumQualityMaxIssues < 0 {
		return fmt.Errorf("quality thresholds must be non-negative")
	}
	if q.HighQualityMaxIssues >= q.MediumQualityMaxIssues {
		return fmt.Errorf("QUALITY_HIGH_MAX_ISSUES (%d) must be lower than QUALITY_MEDIUM_MAX_ISSUES (%d)",
			q.HighQualityMaxIssues, q.MediumQualityMaxIssues)
	}
	return nil
}

// IsHighPriority reports whether the priority name is in the configured high-priority set.
func (q QualityConfig) IsHighPriority(priority string) bool {
	for _, level := range q.HighPriorityLevels {
		if strings.EqualFold(level, priority) {
			return true
		}
	}
	return false
}

// ShouldProcessIssueType reports whether the bot handles the given issue
// type. An empty list processes every type.
func (j JiraConfig) ShouldProcessIssueType(issueType string) bool {
	if len(j.ProcessTypes) == 0 {
		return true
	}
	for _, t := range j.ProcessTypes {
		if strings.EqualFold(t, issueType) {
			return true
		}
	}
	return false
}

// ShouldProcessProject reports whether the project is configured for
// processing. An empty list accepts every project.
func (j JiraConfig) ShouldProcessProject(projectKey string) bool {
	if len(j.ProjectKeys) == 0 {
		return true
	}
	for _, k := range j.ProjectKeys {
		if strings.EqualFold(k, projectKey) {
			return true
		}
	}
	return false
}

// Timeout returns the ticket store request timeout.
func (j JiraConfig) Timeout() time.Duration {
	if j.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// Timeout returns the text generation request timeout.
func (g GeminiConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the seed delay for exponential backoff.
func (q QueueConfig) RetryBaseDelay() time.Duration {
	if q.RetryBaseDelaySec <= 0 {
		return time.Minute
	}
	return time.Duration(q.RetryBaseDelaySec) * time.Second
}

// DedupWindow returns the repeat-submission suppression window.
func (q QueueConfig) DedupWindow() time.Duration {
	return time.Duration(q.DedupWindowSeconds) * time.Second
}

// ResultTTL returns the task record retention window.
func (q QueueConfig) ResultTTL() time.Duration {
	if q.ResultTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(q.ResultTTLSeconds) * time.Second
}

// RunTimeout bounds a single orchestrator run.
func (q QueueConfig) RunTimeout() time.Duration {
	if q.RunTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(q.RunTimeoutSeconds) * time.Second
}

// PollInterval is the idle wait between queue polls.
func (q QueueConfig) PollInterval() time.Duration {
	if q.PollIntervalMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(q.PollIntervalMillis) * time.Millisecond
}

// InFlightTTL bounds how long an in-flight marker can outlive its run.
func (q QueueConfig) InFlightTTL() time.Duration {
	if q.InFlightTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(q.InFlightTTLSeconds) * time.Second
}

// Lookback returns the scan search window.
func (s ScanConfig) Lookback() time.Duration {
	if s.LookbackHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.LookbackHours) * time.Hour
}

// RecencyWindow returns how recently-updated tickets are skipped by the scan.
func (s ScanConfig) RecencyWindow() time.Duration {
	return time.Duration(s.RecencySeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
