// Command speakup is a terminal speaking partner: talk into the microphone,
// hear the tutor reply, and read tagged feedback on grammar, pronunciation
// and phrasing.
//
// Usage:
//
//	speakup talk [--backend gemini|gemini-ws|openai] [--voice NAME]
//	speakup config show
//	speakup config set <key> <value>
//	speakup version
//
// API keys are read from GEMINI_API_KEY / GOOGLE_API_KEY or OPENAI_API_KEY,
// optionally loaded from a .env file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"go.aimuz.me/speakup/config"
	"go.aimuz.me/speakup/internal/app"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	logLevel string
	envFile  string
)

var rootCmd = &cobra.Command{
	Use:           "speakup",
	Short:         "Practice speaking with a live AI tutor",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(logLevel); err != nil {
			return err
		}
		return config.LoadEnv(envFile)
	},
}

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Start a voice conversation",
	Long: `Start a voice conversation with the tutor.

Speak naturally; the tutor answers out loud and tags corrections with
[Grammar], [Pronunciation] or [Natural Phrasing]. Start talking while the
tutor is speaking to interrupt it.

Flags override the saved configuration for this run only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		overrides := map[string]string{
			"backend":      "backend",
			"voice":        "voice",
			"model":        "model",
			"metrics-addr": "metrics_addr",
		}
		for flag, key := range overrides {
			if !cmd.Flags().Changed(flag) {
				continue
			}
			v, _ := cmd.Flags().GetString(flag)
			if err := cfg.Set(key, v); err != nil {
				return fmt.Errorf("--%s: %w", flag, err)
			}
		}
		if noHotkeys, _ := cmd.Flags().GetBool("no-hotkeys"); noHotkeys {
			cfg.Hotkeys = false
		}

		svc, err := app.New(cfg, app.Options{})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("starting conversation", "version", version, "backend", cfg.Backend)
		return svc.Run(ctx)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage the saved configuration.

API keys are never stored; set GEMINI_API_KEY or OPENAI_API_KEY instead.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path, err := config.Path()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nKeys: " + strings.Join(config.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "speakup %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with API keys to load into the environment")

	talkCmd.Flags().String("backend", "", "conversation backend: gemini, gemini-ws, openai")
	talkCmd.Flags().String("voice", "", "assistant voice name")
	talkCmd.Flags().String("model", "", "model name")
	talkCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	talkCmd.Flags().Bool("no-hotkeys", false, "disable global hotkeys")

	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(talkCmd, configCmd, versionCmd)
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
