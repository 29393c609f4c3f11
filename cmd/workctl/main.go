// Command workctl runs the work-item orchestration engine as an MCP tool
// server, applies the relational schema to a fresh backend, and reads or
// writes persisted configuration values. Grounded on the teacher's cmd/bd
// root command: a single persistent-flag set shared by every subcommand,
// Viper-backed config with a WORKCTL_ environment prefix.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/workgraph/workctl/internal/store/dolt"
)

// version is stamped at release time via -ldflags; "dev" otherwise.
var version = "dev"

var (
	dbDriver string // "sqlite" or "dolt"
	dbPath   string // sqlite file path
	doltDSN  string // host:port/database for dolt

	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "workctl",
	Short: "Work-item orchestration engine: MCP tool server and maintenance commands",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", "sqlite", "Storage backend: sqlite or dolt")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "workctl.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&doltDSN, "dolt-dsn", "", "Dolt sql-server address as host:port/database")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (YAML)")

	rootCmd.AddCommand(serveCmd, migrateCmd, configCmd)
}

func initConfig() error {
	viper.SetEnvPrefix("WORKCTL")
	viper.AutomaticEnv()
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// parseDoltDSN accepts "user:pass@host:port/database" or the bare
// "host:port/database" form (defaulting user/pass to root/""), matching the
// shorthand operators pass on the CLI rather than the full DSN dolt's own
// driver expects.
func parseDoltDSN(s string) (dolt.Config, error) {
	cfg := dolt.Config{User: "root"}

	if at := strings.LastIndex(s, "@"); at != -1 {
		userpass := s[:at]
		s = s[at+1:]
		if colon := strings.Index(userpass, ":"); colon != -1 {
			cfg.User = userpass[:colon]
			cfg.Password = userpass[colon+1:]
		} else {
			cfg.User = userpass
		}
	}

	slash := strings.Index(s, "/")
	if slash == -1 {
		return dolt.Config{}, fmt.Errorf("invalid dolt DSN %q: expected host:port/database", s)
	}
	hostport := s[:slash]
	cfg.Database = s[slash+1:]
	if cfg.Database == "" {
		return dolt.Config{}, fmt.Errorf("invalid dolt DSN %q: missing database name", s)
	}

	colon := strings.LastIndex(hostport, ":")
	if colon == -1 {
		return dolt.Config{}, fmt.Errorf("invalid dolt DSN %q: expected host:port", s)
	}
	cfg.Host = hostport[:colon]
	port, err := strconv.Atoi(hostport[colon+1:])
	if err != nil {
		return dolt.Config{}, fmt.Errorf("invalid dolt DSN %q: bad port: %w", s, err)
	}
	cfg.Port = port
	return cfg, nil
}
