// Package config loads process settings from defaults, an optional YAML file
// and the environment, in increasing order of precedence.
//
// The data root and destination database are read from the unprefixed
// variables ROOT_DATA_PATH, DB_HOSTNAME, DB_PORT_NUM, DB_USERNAME and
// DB_PASSWORD. Everything else uses the USERSTATS_ prefix.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"userstats/internal/etlerr"
	"userstats/internal/storage"
)

// EnvPrefix prefixes every setting without a fixed variable name.
const EnvPrefix = "USERSTATS"

// Defaults used by the standalone run command when the database is not
// configured: the compose service name and the stock postgres credentials.
const (
	RunDefaultHost     = "user-experiment-stats"
	RunDefaultUsername = "postgres"
	RunDefaultPassword = "password"
)

// Sink kinds and metrics backends accepted by Validate.
var (
	SinkKinds       = []string{"postgres", "sqlite", "mssql"}
	MetricsBackends = []string{"none", "datadog", "prometheus"}
)

// Config is the effective process configuration.
type Config struct {
	DataRoot        string `mapstructure:"root_data_path" yaml:"root_data_path"`
	ExperimentsFile string `mapstructure:"experiments_file" yaml:"experiments_file"`
	CompoundsFile   string `mapstructure:"compounds_file" yaml:"compounds_file"`
	UsersFile       string `mapstructure:"users_file" yaml:"users_file"`

	InputEncoding    string        `mapstructure:"input_encoding" yaml:"input_encoding"`
	InputHTTPTimeout time.Duration `mapstructure:"input_http_timeout" yaml:"input_http_timeout"`
	S3Region         string        `mapstructure:"s3_region" yaml:"s3_region,omitempty"`
	S3Endpoint       string        `mapstructure:"s3_endpoint" yaml:"s3_endpoint,omitempty"`
	S3PathStyle      bool          `mapstructure:"s3_path_style" yaml:"s3_path_style"`

	SinkKind   string `mapstructure:"sink_kind" yaml:"sink_kind"`
	DBHost     string `mapstructure:"db_hostname" yaml:"db_hostname"`
	DBPort     int    `mapstructure:"db_port_num" yaml:"db_port_num"`
	DBUsername string `mapstructure:"db_username" yaml:"db_username"`
	DBPassword string `mapstructure:"db_password" yaml:"db_password"`
	DBName     string `mapstructure:"db_name" yaml:"db_name"`
	DBSchema   string `mapstructure:"db_schema" yaml:"db_schema"`
	DBTable    string `mapstructure:"db_table" yaml:"db_table"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	MetricsBackend string `mapstructure:"metrics_backend" yaml:"metrics_backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url,omitempty"`
	DatadogTags    string `mapstructure:"datadog_tags" yaml:"datadog_tags,omitempty"`

	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
}

// fixedEnv maps keys to the variable names inherited from the deployment.
var fixedEnv = map[string]string{
	"root_data_path": "ROOT_DATA_PATH",
	"db_hostname":    "DB_HOSTNAME",
	"db_port_num":    "DB_PORT_NUM",
	"db_username":    "DB_USERNAME",
	"db_password":    "DB_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root_data_path", "./data/")
	v.SetDefault("experiments_file", "user_experiments.csv")
	v.SetDefault("compounds_file", "compounds.csv")
	v.SetDefault("users_file", "users.csv")

	v.SetDefault("input_encoding", "utf-8")
	v.SetDefault("input_http_timeout", "30s")
	v.SetDefault("s3_region", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_path_style", false)

	v.SetDefault("sink_kind", "postgres")
	v.SetDefault("db_hostname", "")
	v.SetDefault("db_port_num", storage.DefaultPort)
	v.SetDefault("db_username", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", storage.DefaultDatabase)
	v.SetDefault("db_schema", storage.DefaultSchema)
	v.SetDefault("db_table", storage.DefaultTable)
	v.SetDefault("sqlite_path", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("metrics_backend", "none")
	v.SetDefault("pushgateway_url", "")
	v.SetDefault("datadog_tags", "")

	v.SetDefault("http_addr", ":5000")
}

// Load reads configuration. cfgFile is optional; when set it must exist.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, key := range v.AllKeys() {
		env, ok := fixedEnv[key]
		if !ok {
			env = EnvPrefix + "_" + strings.ToUpper(key)
		}
		if err := v.BindEnv(key, env); err != nil {
			return nil, etlerr.Config("bind env "+env, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, etlerr.Config("read config file", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, etlerr.Config("unmarshal config", err)
	}
	c.SinkKind = strings.ToLower(strings.TrimSpace(c.SinkKind))
	c.MetricsBackend = strings.ToLower(strings.TrimSpace(c.MetricsBackend))
	return &c, nil
}

// ApplyRunDefaults fills unset database credentials with the standalone
// defaults. The HTTP trigger never calls it; it requires explicit settings.
func (c *Config) ApplyRunDefaults() {
	if c.DBHost == "" {
		c.DBHost = RunDefaultHost
	}
	if c.DBUsername == "" {
		c.DBUsername = RunDefaultUsername
	}
	if c.DBPassword == "" {
		c.DBPassword = RunDefaultPassword
	}
}

// Validate reports every missing or invalid setting in one config error.
func (c *Config) Validate() error {
	var problems []string
	missing := func(name string) { problems = append(problems, name+" is required") }

	if strings.TrimSpace(c.DataRoot) == "" {
		missing("ROOT_DATA_PATH")
	}

	switch c.SinkKind {
	case "postgres", "mssql":
		if strings.TrimSpace(c.DBHost) == "" {
			missing("DB_HOSTNAME")
		}
		if c.DBPort <= 0 || c.DBPort > 65535 {
			problems = append(problems, fmt.Sprintf("DB_PORT_NUM must be in 1..65535, got %d", c.DBPort))
		}
		if strings.TrimSpace(c.DBUsername) == "" {
			missing("DB_USERNAME")
		}
	case "sqlite":
		if strings.TrimSpace(c.SQLitePath) == "" {
			missing(EnvPrefix + "_SQLITE_PATH")
		}
	default:
		problems = append(problems, fmt.Sprintf("%s_SINK_KIND must be one of %s, got %q",
			EnvPrefix, strings.Join(SinkKinds, "|"), c.SinkKind))
	}
	if strings.TrimSpace(c.DBTable) == "" {
		missing(EnvPrefix + "_DB_TABLE")
	}

	if !slices.Contains(MetricsBackends, c.MetricsBackend) {
		problems = append(problems, fmt.Sprintf("%s_METRICS_BACKEND must be one of %s, got %q",
			EnvPrefix, strings.Join(MetricsBackends, "|"), c.MetricsBackend))
	}
	if c.InputHTTPTimeout < 0 {
		problems = append(problems, EnvPrefix+"_INPUT_HTTP_TIMEOUT must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return etlerr.Config("validate", fmt.Errorf("%s", strings.Join(problems, "; ")))
}

// ConnParams returns the destination parameters for storage.BuildDSN.
func (c *Config) ConnParams() storage.ConnParams {
	return storage.ConnParams{
		Host:     c.DBHost,
		Port:     c.DBPort,
		Username: c.DBUsername,
		Password: c.DBPassword,
		Database: c.DBName,
		Path:     c.SQLitePath,
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.DBPassword != "" {
		out.DBPassword = "********"
	}
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()
	b, err := yaml.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return b, nil
}
