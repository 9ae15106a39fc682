package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"messenger-service/internal/backendclient"
	"messenger-service/internal/logging"
	"messenger-service/internal/messenger"
	"messenger-service/internal/session"
)

// Flag and config keys shared between commands.
const (
	apiFlag      = "api"
	configFlag   = "config"
	logLevelFlag = "log-level"
	dsnFlag      = "dsn"
	timeoutFlag  = "timeout"

	tokenKey     = "token"
	expiresAtKey = "expires_at"
)

var rootCmd = &cobra.Command{
	Use:          "messengerctl",
	Short:        "Chat from the terminal and inspect the messenger database",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().String(apiFlag, "http://localhost:8083", "Base URL of the messenger API")
	viper.BindPFlag(apiFlag, rootCmd.PersistentFlags().Lookup(apiFlag))

	rootCmd.PersistentFlags().String(configFlag, "", "Config file (default $XDG_CONFIG_HOME/messengerctl/config.yaml)")
	viper.BindPFlag(configFlag, rootCmd.PersistentFlags().Lookup(configFlag))

	rootCmd.PersistentFlags().String(logLevelFlag, "warn", "Log level (debug, info, warn, error)")
	viper.BindPFlag(logLevelFlag, rootCmd.PersistentFlags().Lookup(logLevelFlag))

	rootCmd.PersistentFlags().Duration(timeoutFlag, 15*time.Second, "Timeout for a single command")
	viper.BindPFlag(timeoutFlag, rootCmd.PersistentFlags().Lookup(timeoutFlag))

	viper.SetEnvPrefix("MESSENGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func configPath() string {
	if p := viper.GetString(configFlag); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "messengerctl", "config.yaml")
}

func initConfig() error {
	viper.SetConfigFile(configPath())
	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath()); statErr == nil {
			return errors.Wrap(err, "read config")
		}
	}
	return nil
}

// saveToken persists the session token next to the other settings.
func saveToken(token string, expiresAt time.Time) error {
	viper.Set(tokenKey, token)
	if expiresAt.IsZero() {
		viper.Set(expiresAtKey, "")
	} else {
		viper.Set(expiresAtKey, expiresAt.Format(time.RFC3339))
	}
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	return errors.Wrap(viper.WriteConfigAs(path), "write config")
}

// storedToken returns the saved token unless it has expired.
func storedToken(now time.Time) (string, error) {
	token := viper.GetString(tokenKey)
	if token == "" {
		return "", errors.New("not signed in, run messengerctl signin first")
	}
	if raw := viper.GetString(expiresAtKey); raw != "" {
		exp, err := time.Parse(time.RFC3339, raw)
		if err == nil && now.After(exp) {
			return "", errors.New("session expired, run messengerctl signin again")
		}
	}
	return token, nil
}

func newLogger() *zap.Logger {
	logger, err := logging.New(viper.GetString(logLevelFlag), true)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), viper.GetDuration(timeoutFlag))
}

func newClient(logger *zap.Logger) (*backendclient.Client, error) {
	return backendclient.New(viper.GetString(apiFlag), backendclient.WithLogger(logger))
}

// signedIn restores the saved session and returns a provider for it.
func signedIn(ctx context.Context, client *backendclient.Client) (*session.Provider, error) {
	token, err := storedToken(time.Now())
	if err != nil {
		return nil, err
	}
	provider := session.NewProvider(client)
	if _, err := provider.Restore(ctx, token); err != nil {
		return nil, errors.Wrap(err, "restore session")
	}
	return provider, nil
}

// newEngine builds a sync engine for the saved session. Notifications are
// written to errOut.
func newEngine(ctx context.Context, errOut io.Writer, logger *zap.Logger, opts ...messenger.Option) (*messenger.Engine, error) {
	client, err := newClient(logger)
	if err != nil {
		return nil, err
	}
	provider, err := signedIn(ctx, client)
	if err != nil {
		return nil, err
	}
	opts = append([]messenger.Option{
		messenger.WithLogger(logger),
		messenger.WithNotifier(printNotifier(errOut)),
	}, opts...)
	return messenger.New(client, provider.Current().MessengerIdentity(), opts...)
}

func printNotifier(w io.Writer) messenger.Notifier {
	return messenger.NotifierFunc(func(n messenger.Notification) {
		fmt.Fprintf(w, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
	})
}
