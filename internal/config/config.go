package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"  validate:"required"`
	Validation ValidationConfig `mapstructure:"validation" validate:"required"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig holds the shared secret used to verify bearer tokens issued by
// the application's session layer.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes bounds tokens minted with the -issue-token flag.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lte=10080"`
}

// SchedulerConfig controls the background task engine.
type SchedulerConfig struct {
	// MaxConcurrent bounds the number of task bodies running at once.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0,lte=256"`

	// QueueSize caps the number of pending tasks. Zero means unbounded.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`

	// RetentionMinutes is how long a finished task stays queryable.
	RetentionMinutes int `mapstructure:"retention_minutes" validate:"required,gt=0"`

	// SweepSchedule is a cron expression (or descriptor such as "@every 1m")
	// controlling how often expired tasks are evicted.
	SweepSchedule string `mapstructure:"sweep_schedule" validate:"required"`
}

// ValidationConfig controls the batch validation pipeline.
type ValidationConfig struct {
	ChunkSize        int     `mapstructure:"chunk_size"        validate:"required,gt=0"`
	DefaultTolerance float64 `mapstructure:"default_tolerance" validate:"gte=0"`
	// RulesFile points at a YAML rule configuration. Empty uses built-in rules.
	RulesFile string `mapstructure:"rules_file"`
}

// SnapshotConfig selects where quality snapshots are appended.
type SnapshotConfig struct {
	Backend       string `mapstructure:"backend"        validate:"required,oneof=postgres mongo"`
	MongoURI      string `mapstructure:"mongo_uri"      validate:"required_if=Backend mongo"`
	MongoDatabase string `mapstructure:"mongo_database" validate:"required_if=Backend mongo"`
}
