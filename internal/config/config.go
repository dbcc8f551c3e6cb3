package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Cloudinary CloudinaryConfig
	Platform   PlatformConfig
	Analytics  AnalyticsConfig
	Editor     EditorConfig
	Feed       FeedConfig
	Logging    LoggingConfig
	Security   SecurityConfig
	Features   FeatureConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Environment     string
	Host            string
	PublicURL       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
	ServerName      string
}

// DatabaseConfig holds the PostgreSQL pool settings
type DatabaseConfig struct {
	URL                 string
	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	ConnMaxIdleTime     time.Duration
	SlowQueryThreshold  time.Duration
	EnableQueryLogging  bool
	HealthCheckInterval time.Duration
	MigrationsPath      string
	AutoMigrate         bool
	ConnectTimeout      time.Duration
	MaxStartupWait      time.Duration
}

// RedisConfig selects the cache and realtime backend. An empty URL keeps
// everything in process memory.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	DialTimeout  time.Duration
	MaxStartWait time.Duration
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	JWTExpiry          time.Duration
	BCryptCost         int
	MinPasswordLength  int
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// CloudinaryConfig holds object storage configuration
type CloudinaryConfig struct {
	CloudName      string
	APIKey         string
	APISecret      string
	UploadPreset   string
	RootFolder     string
	MaxImageSize   int64
	MaxVideoSize   int64
	AllowedFormats []string
}

// Enabled reports whether uploads can be served.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// PlatformConfig points at the hosted edge functions.
type PlatformConfig struct {
	FunctionsURL     string
	FunctionsKey     string
	FunctionsTimeout time.Duration
}

// AnalyticsConfig configures the optional Kafka mirror of analytics events.
type AnalyticsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	BatchTimeout time.Duration
}

// EditorConfig tunes editing sessions and the article renderer.
type EditorConfig struct {
	SessionTTL           time.Duration
	CodeCollapseLines    int
	ProgressInterval     time.Duration
	ProgressStep         int
	WordsPerMinute       int
	MaxBlocksPerDocument int
}

// FeedConfig tunes feed, trending and leaderboard scoring.
type FeedConfig struct {
	PageSize         int
	TrendingWindow   time.Duration
	CacheTTL         time.Duration
	RefreshSchedule  string
	LeaderboardLimit int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// SecurityConfig holds CORS and response header settings
type SecurityConfig struct {
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSMaxAge           time.Duration
	CORSAllowCredentials bool
	FrameOptions         string
	HSTSMaxAge           time.Duration
	ForceHTTPS           bool
	SwaggerUsername      string
	SwaggerPassword      string
}

// FeatureConfig holds feature flags
type FeatureConfig struct {
	EnableRegistration bool
	EnableGoogleAuth   bool
	EnableFileUploads  bool
	EnableComments     bool
	EnableSwagger      bool
	MaintenanceMode    bool
}

// Load reads configuration from the environment. Outside production a
// ".env.<GO_ENV>" file, or ".env", is loaded first.
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	}

	config := &Config{
		Server:     loadServerConfig(env),
		Database:   loadDatabaseConfig(env),
		Redis:      loadRedisConfig(),
		Auth:       loadAuthConfig(),
		Cloudinary: loadCloudinaryConfig(),
		Platform:   loadPlatformConfig(),
		Analytics:  loadAnalyticsConfig(),
		Editor:     loadEditorConfig(),
		Feed:       loadFeedConfig(),
		Logging:    loadLoggingConfig(env),
		Security:   loadSecurityConfig(env),
		Features:   loadFeatureConfig(env),
	}

	if err := config.ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	config := ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Environment:     env,
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		PublicURL:       strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:9000"), "/"),
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
		ServerName:      getEnv("SERVER_NAME", "Expertene"),
	}

	if env == "development" {
		config.GracefulTimeout = 10 * time.Second
	}

	return config
}

func loadDatabaseConfig(env string) DatabaseConfig {
	var defaultMaxOpen, defaultMaxIdle int
	var defaultConnLifetime time.Duration

	switch env {
	case "production":
		defaultMaxOpen = 50
		defaultMaxIdle = 20
		defaultConnLifetime = 15 * time.Minute
	case "staging":
		defaultMaxOpen = 25
		defaultMaxIdle = 10
		defaultConnLifetime = 10 * time.Minute
	default:
		defaultMaxOpen = 10
		defaultMaxIdle = 5
		defaultConnLifetime = 5 * time.Minute
	}

	return DatabaseConfig{
		URL:                 os.Getenv("DATABASE_URL"),
		MaxOpenConns:        getIntEnv("DB_MAX_OPEN_CONNS", defaultMaxOpen),
		MaxIdleConns:        getIntEnv("DB_MAX_IDLE_CONNS", defaultMaxIdle),
		ConnMaxLifetime:     getDurationEnv("DB_CONN_MAX_LIFETIME", defaultConnLifetime),
		ConnMaxIdleTime:     getDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		SlowQueryThreshold:  getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		EnableQueryLogging:  getBoolEnv("DB_ENABLE_QUERY_LOGGING", env == "development"),
		HealthCheckInterval: getDurationEnv("DB_HEALTH_CHECK_INTERVAL", 30*time.Second),
		MigrationsPath:      getEnv("DB_MIGRATIONS_PATH", "./migrations"),
		AutoMigrate:         getBoolEnv("DB_AUTO_MIGRATE", true),
		ConnectTimeout:      getDurationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
		MaxStartupWait:      getDurationEnv("DB_MAX_STARTUP_WAIT", 60*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:          getEnv("REDIS_URL", ""),
		KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "expertene:"),
		DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		MaxStartWait: getDurationEnv("REDIS_MAX_START_WAIT", 30*time.Second),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "expertene"),
		JWTExpiry:          getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		BCryptCost:         getIntEnv("BCRYPT_COST", 12),
		MinPasswordLength:  getIntEnv("MIN_PASSWORD_LENGTH", 8),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
	}
}

func loadCloudinaryConfig() CloudinaryConfig {
	return CloudinaryConfig{
		CloudName:      os.Getenv("CLOUDINARY_CLOUD_NAME"),
		APIKey:         os.Getenv("CLOUDINARY_API_KEY"),
		APISecret:      os.Getenv("CLOUDINARY_API_SECRET"),
		UploadPreset:   getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
		RootFolder:     getEnv("CLOUDINARY_ROOT_FOLDER", "expertene"),
		MaxImageSize:   getInt64Env("CLOUDINARY_MAX_IMAGE_SIZE", 10*1024*1024),
		MaxVideoSize:   getInt64Env("CLOUDINARY_MAX_VIDEO_SIZE", 100*1024*1024),
		AllowedFormats: splitList(getEnv("CLOUDINARY_ALLOWED_FORMATS", "jpg,jpeg,png,webp,gif,mp4,webm,ogg")),
	}
}

func loadPlatformConfig() PlatformConfig {
	return PlatformConfig{
		FunctionsURL:     strings.TrimRight(getEnv("FUNCTIONS_URL", ""), "/"),
		FunctionsKey:     getEnv("FUNCTIONS_KEY", ""),
		FunctionsTimeout: getDurationEnv("FUNCTIONS_TIMEOUT", 5*time.Second),
	}
}

func loadAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_ANALYTICS_TOPIC", "expertene.analytics"),
		BatchTimeout: getDurationEnv("KAFKA_BATCH_TIMEOUT", 50*time.Millisecond),
	}
}

func loadEditorConfig() EditorConfig {
	return EditorConfig{
		SessionTTL:           getDurationEnv("EDITOR_SESSION_TTL", 12*time.Hour),
		CodeCollapseLines:    getIntEnv("EDITOR_CODE_COLLAPSE_LINES", 30),
		ProgressInterval:     getDurationEnv("EDITOR_PROGRESS_INTERVAL", 200*time.Millisecond),
		ProgressStep:         getIntEnv("EDITOR_PROGRESS_STEP", 10),
		WordsPerMinute:       getIntEnv("EDITOR_WORDS_PER_MINUTE", 200),
		MaxBlocksPerDocument: getIntEnv("EDITOR_MAX_BLOCKS", 500),
	}
}

func loadFeedConfig() FeedConfig {
	return FeedConfig{
		PageSize:         getIntEnv("FEED_PAGE_SIZE", 20),
		TrendingWindow:   getDurationEnv("FEED_TRENDING_WINDOW", 14*24*time.Hour),
		CacheTTL:         getDurationEnv("FEED_CACHE_TTL", 5*time.Minute),
		RefreshSchedule:  getEnv("FEED_REFRESH_SCHEDULE", "@every 5m"),
		LeaderboardLimit: getIntEnv("FEED_LEADERBOARD_LIMIT", 50),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", getDefaultLogLevel(env)),
		Format: getEnv("LOG_FORMAT", getDefaultLogFormat(env)),
	}
}

func loadSecurityConfig(env string) SecurityConfig {
	return SecurityConfig{
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:9000")),
		CORSAllowedMethods:   splitList(getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
		CORSAllowedHeaders:   splitList(getEnv("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-ID")),
		CORSMaxAge:           getDurationEnv("CORS_MAX_AGE", 12*time.Hour),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		FrameOptions:         getEnv("FRAME_OPTIONS", "DENY"),
		HSTSMaxAge:           getDurationEnv("HSTS_MAX_AGE", 365*24*time.Hour),
		ForceHTTPS:           getBoolEnv("FORCE_HTTPS", env == "production"),
		SwaggerUsername:      getEnv("SWAGGER_USERNAME", ""),
		SwaggerPassword:      getEnv("SWAGGER_PASSWORD", ""),
	}
}

func loadFeatureConfig(env string) FeatureConfig {
	return FeatureConfig{
		EnableRegistration: getBoolEnv("FEATURE_REGISTRATION", true),
		EnableGoogleAuth:   getBoolEnv("FEATURE_GOOGLE_AUTH", false),
		EnableFileUploads:  getBoolEnv("FEATURE_FILE_UPLOADS", true),
		EnableComments:     getBoolEnv("FEATURE_COMMENTS", true),
		EnableSwagger:      getBoolEnv("FEATURE_SWAGGER", env != "production"),
		MaintenanceMode:    getBoolEnv("MAINTENANCE_MODE", false),
	}
}

// ValidateAll runs every section validator and the cross-section checks.
func (c *Config) ValidateAll() error {
	validators := []func() error{
		c.Server.Validate,
		c.Database.Validate,
		c.Auth.Validate,
		c.Editor.Validate,
		c.Security.Validate,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}

	if err := c.validateCrossConfig(); err != nil {
		return fmt.Errorf("cross-config validation failed: %w", err)
	}

	return nil
}

func (c *Config) validateCrossConfig() error {
	if c.Features.EnableGoogleAuth {
		if c.Auth.GoogleClientID == "" || c.Auth.GoogleClientSecret == "" {
			return fmt.Errorf("google oauth is enabled but credentials are missing")
		}
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set for production")
		}
		if strings.Contains(c.Database.URL, "sslmode=disable") {
			return fmt.Errorf("SSL must be enabled for database in production")
		}
	}

	return nil
}

// Validate checks the database section
func (d *DatabaseConfig) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := url.Parse(d.URL); err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("MaxOpenConns must be positive")
	}
	if d.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("MaxIdleConns cannot be greater than MaxOpenConns")
	}
	if d.ConnMaxLifetime <= 0 {
		return fmt.Errorf("ConnMaxLifetime must be positive")
	}
	if d.SlowQueryThreshold <= 0 {
		return fmt.Errorf("SlowQueryThreshold must be positive")
	}
	return nil
}

// Validate checks the auth section
func (a *AuthConfig) Validate() error {
	if a.BCryptCost < 4 || a.BCryptCost > 31 {
		return fmt.Errorf("BCryptCost must be between 4 and 31")
	}
	if a.MinPasswordLength < 6 {
		return fmt.Errorf("minimum password length must be at least 6")
	}
	if a.JWTExpiry <= 0 {
		return fmt.Errorf("JWTExpiry must be positive")
	}
	return nil
}

// Validate checks the server section
func (s *ServerConfig) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if s.ReadTimeout <= 0 {
		return fmt.Errorf("ReadTimeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("WriteTimeout must be positive")
	}
	return nil
}

// Validate checks the editor section
func (e *EditorConfig) Validate() error {
	if e.WordsPerMinute <= 0 {
		return fmt.Errorf("EDITOR_WORDS_PER_MINUTE must be positive")
	}
	if e.ProgressStep <= 0 || e.ProgressStep > 90 {
		return fmt.Errorf("EDITOR_PROGRESS_STEP must be between 1 and 90")
	}
	if e.SessionTTL < time.Minute {
		return fmt.Errorf("EDITOR_SESSION_TTL must be at least one minute")
	}
	return nil
}

// Validate checks the security section
func (s *SecurityConfig) Validate() error {
	if s.FrameOptions != "DENY" && s.FrameOptions != "SAMEORIGIN" {
		return fmt.Errorf("frame options must be DENY or SAMEORIGIN")
	}
	return nil
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether GO_ENV is development
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDefaultLogLevel(env string) string {
	if env == "production" {
		return "info"
	}
	return "debug"
}

func getDefaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "console"
}
