package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/hypernetix/hiveagent-go/pkg/hiveagent"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "HIVE_AGENT"

// cliApp carries the state shared by every command of one invocation
type cliApp struct {
	v      *viper.Viper
	logger hiveagent.Logger
}

func newRootCmd() *cobra.Command {
	a := &cliApp{
		v:      viper.New(),
		logger: hiveagent.NewLogger(hiveagent.LogLevelFromEnv(hiveagent.LogLevelInfo)),
	}

	root := &cobra.Command{
		Use:           "hive-agent",
		Short:         "Command line client for a Hive Agent server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.String("base-url", "", "Hive Agent base URL (discovered on the local network when empty)")
	flags.String("api-version", hiveagent.DefaultAPIVersion, "API version segment appended to the base URL")
	flags.Duration("timeout", hiveagent.DefaultTimeout, "Request timeout")
	flags.String("chat-path", hiveagent.ChatEndpoint, "Chat endpoint of the deployment (/chat or /api/chat)")
	flags.String("user", "cli-user", "User id for chat commands")
	flags.String("session", "", "Session id for chat commands (a new one is generated when empty)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.Bool("vv", false, "Enable trace logging")
	flags.Bool("json", false, "Print results as JSON")
	flags.String("config", "", "Config file (default $HOME/.hive-agent.yaml)")

	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.versionCmd(),
		a.statusCmd(),
		a.chatCmd(),
		a.mediaCmd(),
		a.historyCmd(),
		a.chatsCmd(),
		a.entryCmd(),
		a.dbCmd(),
		a.filesCmd(),
		a.toolsCmd(),
		a.promptsCmd(),
	)
	return root
}

// initConfig reads the optional config file and applies the log level flags
func (a *cliApp) initConfig() error {
	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".hive-agent")
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Using config file: %s", used)
	}

	switch {
	case a.v.GetBool("vv"):
		a.logger.SetLevel(hiveagent.LogLevelTrace)
	case a.v.GetBool("verbose"):
		a.logger.SetLevel(hiveagent.LogLevelDebug)
	}
	return nil
}

// baseURL returns the configured base URL or discovers a server when unset
func (a *cliApp) baseURL(ctx context.Context) (string, error) {
	if baseURL := a.v.GetString("base-url"); baseURL != "" {
		return baseURL, nil
	}
	a.logger.Debug("Base URL not set, attempting to discover Hive Agent server...")
	discovered, err := hiveagent.DiscoverHiveAgentServer(ctx, "", 0, a.v.GetString("api-version"), a.logger)
	if err != nil {
		return "", fmt.Errorf("could not discover Hive Agent server, try to set --base-url explicitly: %w", err)
	}
	a.logger.Debug("Discovered Hive Agent server at %s", discovered)
	return discovered, nil
}

func (a *cliApp) newClient(ctx context.Context) (*hiveagent.HiveAgentClient, error) {
	baseURL, err := a.baseURL(ctx)
	if err != nil {
		return nil, err
	}
	return hiveagent.NewHiveAgentClient(hiveagent.Config{
		BaseURL:  baseURL,
		Version:  a.v.GetString("api-version"),
		Timeout:  a.v.GetDuration("timeout"),
		ChatPath: a.v.GetString("chat-path"),
		Logger:   a.logger,
	}), nil
}

type clientRunFunc func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error

// withClient builds a client for the duration of one command
func (a *cliApp) withClient(fn clientRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := a.newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		return fn(cmd.Context(), cmd, client, args)
	}
}

// notify prints a status line unless JSON output was requested
func (a *cliApp) notify(format string, v ...any) {
	if a.v.GetBool("json") {
		return
	}
	ancli.PrintOK(fmt.Sprintf(format, v...) + "\n")
}

func (a *cliApp) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Hive Agent Go CLI version: %s\n", hiveagent.HiveAgentGoVersion)
			return nil
		},
	}
}

func (a *cliApp) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check if the Hive Agent service is running",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
			start := time.Now()
			if err := client.CheckHealth(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Hive Agent service status: NOT RUNNING @ %s\n", client.BaseURL())
				return err
			}
			if a.v.GetBool("json") {
				return printJSON(cmd, map[string]any{
					"status":     "running",
					"base_url":   client.BaseURL(),
					"latency_ms": time.Since(start).Milliseconds(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hive Agent service status: RUNNING @ %s\n", client.BaseURL())
			return nil
		}),
	}
}

func main() {
	// A missing .env file is fine, anything else is worth a warning
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		ancli.PrintWarn(fmt.Sprintf("failed to load .env file: %v\n", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		ancli.PrintErr(fmt.Sprintf("%v\n", err))
		stop()
		os.Exit(1)
	}
}
