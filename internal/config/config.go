package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig              `yaml:"app" mapstructure:"app"`
	Database DatabaseConfig         `yaml:"database" mapstructure:"database"`
	Redis    RedisConfig            `yaml:"redis" mapstructure:"redis"`
	Kong     KongConfig             `yaml:"kong" mapstructure:"kong"`
	Chains   map[string]ChainConfig `yaml:"chains" mapstructure:"chains"`
	Solvers  SolversConfig          `yaml:"solvers" mapstructure:"solvers"`
	Sync     SyncConfig             `yaml:"sync" mapstructure:"sync"`
	Cleanup  CleanupConfig          `yaml:"cleanup" mapstructure:"cleanup"`
	Admin    AdminConfig            `yaml:"admin" mapstructure:"admin"`
}

type AppConfig struct {
	Environment string `yaml:"environment" mapstructure:"environment"`
	LogLevel    string `yaml:"log_level" mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // postgres, sqlite
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"db_name" mapstructure:"db_name"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	Path     string `yaml:"path" mapstructure:"path"` // sqlite file
	MaxConns int    `yaml:"max_conns" mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

type KongConfig struct {
	RESTURL        string `yaml:"rest_url" mapstructure:"rest_url"`
	GraphQLURL     string `yaml:"graphql_url" mapstructure:"graphql_url"`
	Origin         string `yaml:"origin" mapstructure:"origin"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	RequestsPerSec int    `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	UseGraphQL     bool   `yaml:"use_graphql" mapstructure:"use_graphql"`
}

// ChainConfig holds per-chain RPC and periphery contract addresses.
type ChainConfig struct {
	ID               uint64 `yaml:"id" mapstructure:"id"`
	RPCURL           string `yaml:"rpc_url" mapstructure:"rpc_url"`
	PartnerContract  string `yaml:"partner_contract" mapstructure:"partner_contract"`
	PartnerID        string `yaml:"partner_id" mapstructure:"partner_id"`
	StakingZap       string `yaml:"staking_zap" mapstructure:"staking_zap"`
	MigrationRouter  string `yaml:"migration_router" mapstructure:"migration_router"`
	CowswapSupported bool   `yaml:"cowswap_supported" mapstructure:"cowswap_supported"`
}

type SolversConfig struct {
	EnsoURL         string `yaml:"enso_url" mapstructure:"enso_url"`
	EnsoAPIKey      string `yaml:"enso_api_key" mapstructure:"enso_api_key"`
	CowURL          string `yaml:"cow_url" mapstructure:"cow_url"`
	SlippageBps     int    `yaml:"slippage_bps" mapstructure:"slippage_bps"`
	DefaultZap      string `yaml:"default_zap" mapstructure:"default_zap"` // enso, cowswap
	QuoteTimeoutSec int    `yaml:"quote_timeout_sec" mapstructure:"quote_timeout_sec"`
}

type SyncConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	Schedule         string `yaml:"schedule" mapstructure:"schedule"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	StaleAfterMin    int    `yaml:"stale_after_min" mapstructure:"stale_after_min"`
	BlockPollSeconds int    `yaml:"block_poll_seconds" mapstructure:"block_poll_seconds"`
}

type CleanupConfig struct {
	Schedule                  string `yaml:"schedule" mapstructure:"schedule"`
	VaultRetentionDays        int    `yaml:"vault_retention_days" mapstructure:"vault_retention_days"`
	NotificationRetentionDays int    `yaml:"notification_retention_days" mapstructure:"notification_retention_days"`
}

type AdminConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	JWTSecret      string   `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Username       string   `yaml:"username" mapstructure:"username"`
	PasswordHash   string   `yaml:"password_hash" mapstructure:"password_hash"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      int      `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per minute
}

func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Database.User = getEnv("DB_USER", config.Database.User)
	config.Database.Password = getEnv("DB_PASSWORD", config.Database.Password)
	config.Database.DBName = getEnv("DB_NAME", config.Database.DBName)
	config.Database.Port = getEnv("DB_PORT", config.Database.Port)
	config.Redis.Password = getEnv("REDIS_PASSWORD", config.Redis.Password)
	config.Solvers.EnsoAPIKey = getEnv("ENSO_API_KEY", config.Solvers.EnsoAPIKey)
	config.Admin.JWTSecret = getEnv("ADMIN_JWT_SECRET", config.Admin.JWTSecret)
	config.Admin.PasswordHash = getEnv("ADMIN_PASSWORD_HASH", config.Admin.PasswordHash)

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults fills every optional field left empty by the config file.
func (c *Config) ApplyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 20
	}
	if c.Kong.RESTURL == "" {
		c.Kong.RESTURL = "https://kong.yearn.fi/api/rest"
	}
	if c.Kong.GraphQLURL == "" {
		c.Kong.GraphQLURL = "https://kong.yearn.fi/api/gql"
	}
	if c.Kong.Origin == "" {
		c.Kong.Origin = "yearn"
	}
	if c.Kong.TimeoutSeconds == 0 {
		c.Kong.TimeoutSeconds = 30
	}
	if c.Kong.RequestsPerSec == 0 {
		c.Kong.RequestsPerSec = 10
	}
	if c.Solvers.EnsoURL == "" {
		c.Solvers.EnsoURL = "https://api.enso.finance/api/v1"
	}
	if c.Solvers.CowURL == "" {
		c.Solvers.CowURL = "https://api.cow.fi"
	}
	if c.Solvers.SlippageBps == 0 {
		c.Solvers.SlippageBps = 100
	}
	if c.Solvers.DefaultZap == "" {
		c.Solvers.DefaultZap = "enso"
	}
	if c.Solvers.QuoteTimeoutSec == 0 {
		c.Solvers.QuoteTimeoutSec = 15
	}
	if c.Sync.Schedule == "" {
		c.Sync.Schedule = "*/5 * * * *"
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = 8
	}
	if c.Sync.StaleAfterMin == 0 {
		c.Sync.StaleAfterMin = 60
	}
	if c.Sync.BlockPollSeconds == 0 {
		c.Sync.BlockPollSeconds = 12
	}
	if c.Cleanup.Schedule == "" {
		c.Cleanup.Schedule = "0 2 * * *"
	}
	if c.Cleanup.VaultRetentionDays == 0 {
		c.Cleanup.VaultRetentionDays = 14
	}
	if c.Cleanup.NotificationRetentionDays == 0 {
		c.Cleanup.NotificationRetentionDays = 90
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8080
	}
	if c.Admin.RateLimit == 0 {
		c.Admin.RateLimit = 120
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == "" {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database.db_name is required")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database.driver: %s", c.Database.Driver)
	}

	for name, chain := range c.Chains {
		if chain.ID == 0 {
			return fmt.Errorf("chains.%s.id is required", name)
		}
	}

	if c.Solvers.SlippageBps < 0 || c.Solvers.SlippageBps > 10000 {
		return fmt.Errorf("solvers.slippage_bps must be between 0 and 10000")
	}

	if c.Solvers.DefaultZap != "enso" && c.Solvers.DefaultZap != "cowswap" {
		return fmt.Errorf("solvers.default_zap must be enso or cowswap")
	}

	if c.App.Environment == "production" {
		if c.Redis.Host == "" {
			return fmt.Errorf("redis.host is required for production")
		}
		if c.Admin.JWTSecret == "" {
			return fmt.Errorf("admin.jwt_secret is required for production")
		}
	}

	return nil
}

// ChainByID returns the chain entry configured for chainID.
func (c *Config) ChainByID(chainID uint64) (ChainConfig, bool) {
	for _, chain := range c.Chains {
		if chain.ID == chainID {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

// ChainIDs lists the configured chain ids in ascending order.
func (c *Config) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Chains))
	for _, chain := range c.Chains {
		ids = append(ids, chain.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Config) SafeString() string {
	chains := make([]string, 0, len(c.Chains))
	for name, chain := range c.Chains {
		chains = append(chains, fmt.Sprintf("%s(%d)", name, chain.ID))
	}

	return fmt.Sprintf(`Config:
		Environment: %s
		Log Level: %s

		Database:
			Driver: %s
			Host: %s:%s
			User: %s
			Database: %s
			Password: %s

		Redis:
			Host: %s:%s
			Database: %d

		Kong:
			REST: %s
			GraphQL: %s (enabled: %t)
			Origin: %s

		Chains: %v

		Solvers:
			Enso: %s (key: %s)
			CoW: %s
			Slippage: %d bps
			Default Zap: %s

		Sync:
			Enabled: %t
			Schedule: %s
			Concurrency: %d

		Admin:
			Listen: %s:%d
			JWT Secret: %s
			Rate Limit: %d/min
		`,
		c.App.Environment,
		c.App.LogLevel,
		c.Database.Driver,
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.DBName,
		maskSecret(c.Database.Password),
		c.Redis.Host,
		c.Redis.Port,
		c.Redis.DB,
		c.Kong.RESTURL,
		c.Kong.GraphQLURL,
		c.Kong.UseGraphQL,
		c.Kong.Origin,
		chains,
		c.Solvers.EnsoURL,
		maskSecret(c.Solvers.EnsoAPIKey),
		c.Solvers.CowURL,
		c.Solvers.SlippageBps,
		c.Solvers.DefaultZap,
		c.Sync.Enabled,
		c.Sync.Schedule,
		c.Sync.Concurrency,
		c.Admin.Host,
		c.Admin.Port,
		maskSecret(c.Admin.JWTSecret),
		c.Admin.RateLimit,
	)
}

func getEnv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	return value
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}

	length := len(s)
	if length <= 8 {
		return strings.Repeat("*", length)
	}

	return s[:4] + "..." + s[length-4:]
}
