package domain

// PipelineConfig holds every tunable the detection pipeline recognizes
// (spec.md §6). It is constructed once by the caller and threaded
// explicitly through the orchestrator down to each extractor — there is
// no package-level mutable default.
type PipelineConfig struct {
	FanInMinIn   int
	FanInMaxOut  int
	FanOutMinOut int
	FanOutMaxIn  int

	CycleLengthBound int
	CycleCap         int

	SmurfingWindowHours         int
	SmurfingMinCounterparties   int
	VelocityWindowHours         int
	VelocityThreshold           int

	ShellMaxDegree      int
	ShellMinChainDepth  int

	BetweennessSampleK              int
	BetweennessSampleThresholdNodes int
	BetweennessSeed                 uint64

	PageRankDamping float64
	PageRankTol     float64
	PageRankMaxIter int

	FlagThreshold float64
}

// DefaultPipelineConfig returns the configuration defaults listed in
// spec.md §6.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		FanInMinIn:   10,
		FanInMaxOut:  2,
		FanOutMinOut: 10,
		FanOutMaxIn:  2,

		CycleLengthBound: 5,
		CycleCap:         500,

		SmurfingWindowHours:       72,
		SmurfingMinCounterparties: 10,
		VelocityWindowHours:       24,
		VelocityThreshold:         10,

		ShellMaxDegree:     3,
		ShellMinChainDepth: 3,

		BetweennessSampleK:              200,
		BetweennessSampleThresholdNodes: 5000,
		BetweennessSeed:                 0xC0FFEE,

		PageRankDamping: 0.85,
		PageRankTol:     1e-6,
		PageRankMaxIter: 100,

		FlagThreshold: 40,
	}
}

// ServerConfig holds HTTP server settings (ambient: the thin outer
// service, not the core).
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
}

// RepositoryConfig holds configuration for the rule-overlay store.
type RepositoryConfig struct {
	Driver string // "sqlite" or "postgres"

	SQLitePath string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// CacheConfig holds configuration for the velocity cache.
type CacheConfig struct {
	Type string // "memory" or "redis"

	LocalMaxSize int
	LocalTTLSecs int

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	EnableTwoPhase bool
}

// EventBusConfig holds configuration for the event bus.
type EventBusConfig struct {
	Type string // "channel" or "nats"

	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// AppConfig is the complete service configuration: the pipeline
// parameters plus the ambient services wrapped around it.
type AppConfig struct {
	Server     ServerConfig
	Pipeline   PipelineConfig
	Repository RepositoryConfig
	Cache      CacheConfig
	EventBus   EventBusConfig
	Logging    LoggingConfig
}

// DefaultAppConfig returns the configuration for a single-node
// (sqlite + in-process channel bus + LRU cache) deployment.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Pipeline: DefaultPipelineConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./muleguard.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTLSecs: 300,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
