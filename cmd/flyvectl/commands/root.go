package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"flyvemdm/cmd/flyvectl/api"
	"flyvemdm/cmd/flyvectl/output"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	yesFlag bool

	v       = viper.New()
	client  *api.Client
	printer output.Printer
)

var rootCmd = &cobra.Command{
	Use:           "flyvectl",
	Short:         "Manage Flyve MDM agents from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		format, err := output.Parse(v.GetString("output"))
		if err != nil {
			return err
		}
		client = api.New(v.GetString("server"), v.GetString("token"))
		printer = output.Printer{Format: format, Out: cmd.OutOrStdout()}
		return nil
	},
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".flyvectl.yaml"
	}
	return filepath.Join(dir, "flyvectl", "config.yaml")
}

// loadConfig merges, lowest first: defaults, the config file, FLYVECTL_*
// variables and flags.
func loadConfig() error {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("flyvectl")
	v.AutomaticEnv()
	v.SetDefault("server", "http://127.0.0.1:8080")
	v.SetDefault("output", "table")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return nil
}

// saveToken stores the token next to the server it was issued by.
func saveToken(token string) (string, error) {
	path := v.ConfigFileUsed()
	if path == "" {
		path = defaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	v.Set("token", token)
	if err := v.WriteConfigAs(path); err != nil {
		return "", err
	}
	return path, os.Chmod(path, 0o600)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/flyvectl/config.yaml)")
	pf.String("server", "", "backend URL")
	pf.String("token", "", "access token (default is the one saved by login)")
	pf.StringP("output", "o", "", "output format: table, json, yaml")
	pf.BoolVar(&yesFlag, "yes", false, "skip confirmation prompts")
	_ = v.BindPFlag("server", pf.Lookup("server"))
	_ = v.BindPFlag("token", pf.Lookup("token"))
	_ = v.BindPFlag("output", pf.Lookup("output"))
}
