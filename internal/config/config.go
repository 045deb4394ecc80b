package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Tasks    TasksConfig    `mapstructure:"tasks"    validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int      `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string   `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	CORSAllowedOrigins     []string `mapstructure:"cors_allowed_origins"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// StorageConfig selects and tunes the task and attachment storage.
type StorageConfig struct {
	Driver             string `mapstructure:"driver"               validate:"required,oneof=file postgres"`
	DataDir            string `mapstructure:"data_dir"             validate:"required"`
	AttachmentDir      string `mapstructure:"attachment_dir"       validate:"required"`
	MaxUploadBytes     int64  `mapstructure:"max_upload_bytes"     validate:"gt=0"`
	LockTimeoutSeconds int    `mapstructure:"lock_timeout_seconds" validate:"gte=0"`
	// OrphanSweepMinutes of zero disables the periodic sweep; the startup
	// sweep always runs.
	OrphanSweepMinutes int `mapstructure:"orphan_sweep_minutes" validate:"gte=0"`
	// UploadConcurrency bounds parallel blob writes within one upload
	// batch. Zero writes every file of the batch at once.
	UploadConcurrency int `mapstructure:"upload_concurrency" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// It is only consulted when the storage driver is postgres.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// TasksConfig tunes task listing and authorization behavior.
type TasksConfig struct {
	// HideForbidden reports a task the caller may not access as not found
	// instead of forbidden.
	HideForbidden    bool `mapstructure:"hide_forbidden"`
	DefaultPageLimit int  `mapstructure:"default_page_limit" validate:"gt=0"`
	MaxPageLimit     int  `mapstructure:"max_page_limit"     validate:"gtefield=DefaultPageLimit"`
}
