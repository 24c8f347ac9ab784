/*
Package config loads skill-advisor settings through viper.

Values come from, highest precedence first: command-line flags bound with
BindPFlag, SKILL_ADVISOR_* environment variables, the YAML config file
(~/.skill-advisor/config.yaml or ./config.yaml) and built-in defaults.

Example config.yaml:

	db_path: ~/.skill-advisor/history.db
	log_level: info
	catalog_dirs: [./.claude/skills]
	learning:
	  rate: 0.2
	  damping: 0.8
	  floor: 0.05
	pattern:
	  decay_constant: 3
	ranking:
	  auto_activate_threshold: 0.8
*/
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SKILL_ADVISOR_LEARNING_RATE.
const EnvPrefix = "SKILL_ADVISOR"

// Config is the resolved configuration.
type Config struct {
	DBPath      string   `mapstructure:"db_path" yaml:"db_path"`
	LogLevel    string   `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string   `mapstructure:"log_format" yaml:"log_format"`
	RulesFile   string   `mapstructure:"rules_file" yaml:"rules_file,omitempty"`
	AgentsFile  string   `mapstructure:"agents_file" yaml:"agents_file,omitempty"`
	CatalogDirs []string `mapstructure:"catalog_dirs" yaml:"catalog_dirs,omitempty"`

	Learning LearningConfig `mapstructure:"learning" yaml:"learning"`
	Pattern  PatternConfig  `mapstructure:"pattern" yaml:"pattern"`
	Ranking  RankingConfig  `mapstructure:"ranking" yaml:"ranking"`

	// Source is the config file that was read, empty if none.
	Source string `mapstructure:"-" yaml:"-"`
}

// LearningConfig tunes the feedback learner.
type LearningConfig struct {
	Rate    float64 `mapstructure:"rate" yaml:"rate"`
	Damping float64 `mapstructure:"damping" yaml:"damping"`
	Floor   float64 `mapstructure:"floor" yaml:"floor"`
}

// PatternConfig tunes the pattern matcher.
type PatternConfig struct {
	DecayConstant float64 `mapstructure:"decay_constant" yaml:"decay_constant"`
}

// RankingConfig tunes the fixed confidences and the auto-activate cut-off.
type RankingConfig struct {
	AutoActivateThreshold float64 `mapstructure:"auto_activate_threshold" yaml:"auto_activate_threshold"`
	RuleConfidence        float64 `mapstructure:"rule_confidence" yaml:"rule_confidence"`
	AgentConfidence       float64 `mapstructure:"agent_confidence" yaml:"agent_confidence"`
}

// Dir returns ~/.skill-advisor.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skill-advisor"), nil
}

// DefaultConfigPath returns ~/.skill-advisor/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	dbPath, err := storage.DefaultPath()
	if err != nil {
		dbPath = "history.db"
	}
	return &Config{
		DBPath:    dbPath,
		LogLevel:  "warn",
		LogFormat: "fmt",
		Learning: LearningConfig{
			Rate:    0.2,
			Damping: 0.8,
			Floor:   0.05,
		},
		Pattern: PatternConfig{DecayConstant: 3},
		Ranking: RankingConfig{
			AutoActivateThreshold: 0.8,
			RuleConfidence:        0.9,
			AgentConfidence:       0.7,
		},
	}
}

// SetDefaults registers every key with v so that environment overrides are
// visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("rules_file", "")
	v.SetDefault("agents_file", "")
	v.SetDefault("catalog_dirs", []string{})
	v.SetDefault("learning.rate", d.Learning.Rate)
	v.SetDefault("learning.damping", d.Learning.Damping)
	v.SetDefault("learning.floor", d.Learning.Floor)
	v.SetDefault("pattern.decay_constant", d.Pattern.DecayConstant)
	v.SetDefault("ranking.auto_activate_threshold", d.Ranking.AutoActivateThreshold)
	v.SetDefault("ranking.rule_confidence", d.Ranking.RuleConfidence)
	v.SetDefault("ranking.agent_confidence", d.Ranking.AgentConfidence)
}

// Init prepares v: defaults, environment and the config file. configFile
// selects an explicit file; when empty the default locations are searched
// and a missing file is fine.
func Init(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return &ConfigNotFoundError{
				Path: configFile,
				Hint: "Run 'skill-advisor config init --path " + configFile + "' to create it",
			}
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.skill-advisor")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if os.IsPermission(errors.Cause(err)) {
			return &PermissionError{
				Path: v.ConfigFileUsed(),
				Op:   "read",
				Fix:  permissionFix(v.ConfigFileUsed()),
			}
		}
		return &InvalidConfigError{
			Path:    v.ConfigFileUsed(),
			Message: err.Error(),
			Hint:    "Check the YAML syntax",
		}
	}
	return nil
}

// Load resolves the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    v.ConfigFileUsed(),
			Message: err.Error(),
		}
	}
	cfg.Source = v.ConfigFileUsed()
	cfg.DBPath = expandHome(cfg.DBPath)
	for i, d := range cfg.CatalogDirs {
		cfg.CatalogDirs[i] = expandHome(d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
