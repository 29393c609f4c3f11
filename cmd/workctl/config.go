package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configPath returns the on-disk location of the settings file that the
// config subcommands read and write, mirroring the teacher's config.yaml.
func configPath() string {
	if p := viper.GetString("config-path"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "workctl.yaml"
	}
	return filepath.Join(home, ".workctl", "config.yaml")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get, set, or list persisted configuration values",
	Long: `Persisted settings live in ~/.workctl/config.yaml (override with
--config-path). Only the config subcommands read and write this file;
'workctl serve' and 'workctl migrate' take their settings from flags.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfigFile()
		if err != nil {
			return err
		}
		val, ok := v.GetString(args[0]), v.IsSet(args[0])
		if !ok {
			return fmt.Errorf("key %q is not set", args[0])
		}
		fmt.Println(val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfigFile()
		if err != nil {
			return err
		}
		v.Set(args[0], args[1])
		if err := saveConfigFile(v); err != nil {
			return err
		}
		if jsonOutput {
			fmt.Printf(`{"key":%q,"value":%q}`+"\n", args[0], args[1])
		} else {
			fmt.Printf("set %s = %s\n", args[0], args[1])
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfigFile()
		if err != nil {
			return err
		}
		keys := v.AllKeys()
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %v\n", k, v.Get(k))
		}
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().String("config-path", "", "Path of the persisted settings file (default ~/.workctl/config.yaml)")
	_ = viper.BindPFlag("config-path", configCmd.PersistentFlags().Lookup("config-path"))
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd)
}

// loadConfigFile reads configPath() into a dedicated Viper instance, distinct
// from the package-level viper used for env/flag binding, so config
// get/set/list never picks up WORKCTL_ environment overrides.
func loadConfigFile() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(configPath())
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return v, nil
}

func saveConfigFile(v *viper.Viper) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
