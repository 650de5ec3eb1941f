package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jangsa/recon/pkg/recon/internalerr"
)

// runConfig is the merged view of flags, RECON_* environment variables and
// an optional recon.yaml. Keys match the flag names.
type runConfig struct {
	Reference  string `mapstructure:"reference"`
	Sheet      string `mapstructure:"sheet"`
	Pool       string `mapstructure:"pool"`
	PoolFromDB bool   `mapstructure:"pool-from-db"`
	Prices     string `mapstructure:"prices"`
	Facilities string `mapstructure:"facilities"`
	Renumber   bool   `mapstructure:"renumber"`
	Limit      int    `mapstructure:"limit"`

	Rules     string `mapstructure:"rules"`
	Out       string `mapstructure:"out" validate:"required"`
	DB        string `mapstructure:"db"`
	Delimiter string `mapstructure:"delimiter" validate:"omitempty,len=1|eq=tab"`
	IDPrefix  string `mapstructure:"id-prefix" validate:"required,alphanum"`
	Workers   int    `mapstructure:"workers" validate:"gte=1,lte=256"`
	LogLevel  string `mapstructure:"log-level" validate:"oneof=trace debug info warn warning error"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=text json"`
}

var validate = validator.New()

// loadConfig reads .env (when present), the config file and the
// environment, binds flags and validates the result.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, configPath string) (*runConfig, error) {
	_ = godotenv.Load()

	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", internalerr.ErrInvalidConfig, configPath, err)
		}
	} else {
		v.SetConfigName("recon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
			}
		}
	}

	var cfg runConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// require checks that the named settings a command depends on are set.
func (c *runConfig) require(names ...string) error {
	values := map[string]string{
		"reference":  c.Reference,
		"pool":       c.Pool,
		"prices":     c.Prices,
		"facilities": c.Facilities,
		"db":         c.DB,
	}
	for _, name := range names {
		if err := validate.Var(values[name], "required"); err != nil {
			return fmt.Errorf("%w: --%s is required", internalerr.ErrInvalidConfig, name)
		}
	}
	return nil
}

// delimiter returns the configured price delimiter, 0 for the rule default.
func (c *runConfig) delimiter() rune {
	switch c.Delimiter {
	case "":
		return 0
	case "tab":
		return '\t'
	default:
		return []rune(c.Delimiter)[0]
	}
}
