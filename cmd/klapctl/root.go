package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abhishek/klap/internal/config"
	"github.com/abhishek/klap/internal/journal"
	"github.com/abhishek/klap/internal/logging"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "klapctl",
	Short: "Talk to TP-Link/Tapo devices over KLAP or the legacy XOR protocol",
}

func init() {
	logging.Init(os.Stdout)

	flags := rootCmd.PersistentFlags()
	flags.String("host", "", "device host or IP")
	flags.Int("port", 0, "device port (defaults: 80 for klap, 9999 for legacy)")
	flags.Bool("legacy", false, "use the legacy XOR transport instead of KLAP")
	flags.String("variant", "v2", "klap auth-hash variant: v1 or v2")
	flags.String("username", "", "device account username")
	flags.String("password", "", "device account password")
	flags.Duration("timeout", 5*time.Second, "per-request timeout")
	flags.String("config", "", "path to a YAML config file")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	flags.String("journal", "", "if set, record protocol events to this sqlite file")

	cobra.OnInitialize(func() {
		configFile, _ := flags.GetString("config")
		if err := config.LoadEnv(""); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if err := config.BindViper(v, configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		v.BindPFlags(flags)

		logging.SetDebug(v.GetBool("debug"))
	})

	rootCmd.AddCommand(sendCmd, handshakeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolvedSettings gathers the layered configuration (flags > env >
// config file, all via viper) into a config.Settings.
func resolvedSettings() (config.Settings, error) {
	host := v.GetString("host")
	if host == "" {
		return config.Settings{}, fmt.Errorf("--host is required")
	}

	return config.Settings{
		Host:        host,
		Port:        v.GetInt("port"),
		Legacy:      v.GetBool("legacy"),
		Variant:     v.GetString("variant"),
		Creds:       config.ResolveCredentials(v),
		Timeout:     v.GetDuration("timeout"),
		JournalDB:   v.GetString("journal"),
		MetricsAddr: v.GetString("metrics-addr"),
		Debug:       v.GetBool("debug"),
	}, nil
}

func openJournal(path string) *journal.Journal {
	if path == "" {
		return nil
	}
	j, err := journal.Open(path)
	if err != nil {
		slog.Default().Warn("could not open journal, continuing without it", "error", err)
		return nil
	}
	return j
}
