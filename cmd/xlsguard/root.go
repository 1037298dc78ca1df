package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gopkg.inshopline.com/commons/xlsguard"
	"gopkg.inshopline.com/commons/xlsguard/internal/logging"
)

// config holds the settings resolved from flags, XLSGUARD_* variables and xlsguard.yaml.
type config struct {
	Output        string `mapstructure:"output"`
	MaxRecordSize int    `mapstructure:"max_record_size"`
	Verbose       bool   `mapstructure:"verbose"`
	Debug         bool   `mapstructure:"debug"`
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "xlsguard",
		Short: "Detect password protected Office documents",
		Long: `xlsguard inspects legacy binary Office documents (xls, doc), encrypted
OOXML packages and OpenDocument files, and reports whether they are
password protected without opening them in an Office application.

For RC4 protected workbooks the salt and verifier parameters needed to
check a candidate password are printed.`,
		Version:       "0.1.0-dev",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cfgFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./xlsguard.yaml or $HOME/.xlsguard/xlsguard.yaml)")
	flags.StringP("output", "o", "text", "output format (text, json, yaml)")
	flags.Int("max-record-size", xlsguard.DefaultMaxRecordSize, "largest logical BIFF record accepted, in bytes")
	flags.BoolP("verbose", "v", false, "enable verbose output")
	flags.Bool("debug", false, "enable debug output")

	for key, name := range map[string]string{
		"output":          "output",
		"max_record_size": "max-record-size",
		"verbose":         "verbose",
		"debug":           "debug",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(newCheckCmd(v))

	return rootCmd
}

func loadConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("xlsguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.xlsguard")
	}

	v.SetEnvPrefix("XLSGUARD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func resolveConfig(v *viper.Viper) (*config, error) {
	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	switch cfg.Output {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Output)
	}

	return &cfg, nil
}

func (c *config) logger() logging.Logger {
	return logging.Logger{Verbose: c.Verbose, Debug: c.Debug}
}
