package main

import (
	"context"
	"fmt"
	"strings"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tyrowin/roomrelay/internal/activity"
	"github.com/Tyrowin/roomrelay/internal/server"
)

// Configuration keys, shared by flags and config files. The environment form
// is ROOMRELAY_ plus the key upper-cased with dashes as underscores.
const (
	keyConfig               = "config"
	keyPort                 = "port"
	keyAllowedOrigins       = "allowed-origins"
	keyMaxMessageSize       = "max-message-size"
	keySendBuffer           = "send-buffer"
	keyFloodBurst           = "flood-burst"
	keyFloodInterval        = "flood-interval"
	keyStaticDir            = "static-dir"
	keyShutdownTimeout      = "shutdown-timeout"
	keyLogLevel             = "log-level"
	keyLogFormat            = "log-format"
	keyMinMessageInterval   = "min-message-interval"
	keyMaxMessagesPerMinute = "max-messages-per-minute"
	keyMaxJoinsPerHour      = "max-joins-per-hour"
)

const envPrefix = "ROOMRELAY"

func newRootCommand() *cobra.Command {
	cmd, _ := newCommand()
	return cmd
}

// newCommand builds the root command together with the viper instance its
// flags are bound to.
func newCommand() (*cobra.Command, *viper.Viper) {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "roomrelay",
		Short:         "WebRTC signaling relay with rooms, names and chat",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readConfigFile(v); err != nil {
				return err
			}
			cfg, logCfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, logCfg)
		},
	}

	defaults := server.NewConfig()
	flags := cmd.Flags()
	flags.String(keyConfig, "", "path to a YAML/JSON/TOML config file")
	flags.String(keyPort, defaults.Port, "listen address")
	flags.String(keyAllowedOrigins, strings.Join(defaults.AllowedOrigins, ","), "comma-separated WebSocket origins, * allows any")
	flags.Int64(keyMaxMessageSize, defaults.MaxMessageSize, "largest accepted WebSocket frame in bytes")
	flags.Int(keySendBuffer, defaults.SendBufferSize, "outbound frames buffered per connection before it is dropped")
	flags.Int(keyFloodBurst, defaults.RateLimit.Burst, "frames a connection may send per flood interval")
	flags.Duration(keyFloodInterval, defaults.RateLimit.RefillInterval, "flood guard refill interval")
	flags.String(keyStaticDir, "", "serve this directory at / instead of the built-in test page")
	flags.Duration(keyShutdownTimeout, defaults.ShutdownTimeout, "graceful shutdown deadline")
	flags.String(keyLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(keyLogFormat, logFormatText, "log format: text or json")
	flags.Duration(keyMinMessageInterval, defaults.Activity.MinMessageInterval, "minimum spacing between chat messages")
	flags.Int(keyMaxMessagesPerMinute, defaults.Activity.MaxMessagesPerMinute, "chat messages allowed per minute")
	flags.Int(keyMaxJoinsPerHour, defaults.Activity.MaxJoinsPerHour, "room joins allowed per hour")

	cobra.CheckErr(v.BindPFlags(flags))
	bindEnv(v)
	return cmd, v
}

// bindEnv maps ROOMRELAY_* variables onto the keys and keeps the plain
// SERVER_PORT and ALLOWED_ORIGINS names working.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	cobra.CheckErr(v.BindEnv(keyPort, envPrefix+"_PORT", "SERVER_PORT"))
	cobra.CheckErr(v.BindEnv(keyAllowedOrigins, envPrefix+"_ALLOWED_ORIGINS", "ALLOWED_ORIGINS"))
}

func readConfigFile(v *viper.Viper) error {
	path := v.GetString(keyConfig)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

// loadConfig resolves every key into the server and logger configuration.
func loadConfig(v *viper.Viper) (server.Config, logConfig, error) {
	origins, err := stringList(v.Get(keyAllowedOrigins))
	if err != nil {
		return server.Config{}, logConfig{}, fmt.Errorf("%s: %w", keyAllowedOrigins, err)
	}

	cfg := server.Config{
		Port:           v.GetString(keyPort),
		AllowedOrigins: origins,
		MaxMessageSize: v.GetInt64(keyMaxMessageSize),
		SendBufferSize: v.GetInt(keySendBuffer),
		RateLimit: server.RateLimitConfig{
			Burst:          v.GetInt(keyFloodBurst),
			RefillInterval: v.GetDuration(keyFloodInterval),
		},
		StaticDir:       v.GetString(keyStaticDir),
		ShutdownTimeout: v.GetDuration(keyShutdownTimeout),
		Activity: activity.Config{
			MinMessageInterval:   v.GetDuration(keyMinMessageInterval),
			MaxMessagesPerMinute: v.GetInt(keyMaxMessagesPerMinute),
			MaxJoinsPerHour:      v.GetInt(keyMaxJoinsPerHour),
		},
	}

	logCfg := logConfig{
		Level:  v.GetString(keyLogLevel),
		Format: v.GetString(keyLogFormat),
	}
	return cfg.Sanitize(), logCfg, nil
}

// stringList accepts a comma-separated string (flags, env) or a list (config
// files).
func stringList(raw any) ([]string, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return server.ParseOrigins(val), nil
	case []string:
		return server.ParseOrigins(strings.Join(val, ",")), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, s)
		}
		return server.ParseOrigins(strings.Join(out, ",")), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

func run(ctx context.Context, cfg server.Config, logCfg logConfig) error {
	logger, err := newLogger(logCfg, nil)
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger)
	logger.Info("starting room relay",
		"addr", cfg.Port,
		"origins", cfg.AllowedOrigins,
		"max_messages_per_minute", cfg.Activity.MaxMessagesPerMinute,
		"max_joins_per_hour", cfg.Activity.MaxJoinsPerHour,
	)

	startErr := make(chan error, 1)
	go func() { startErr <- srv.Start() }()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"relay": func(ctx context.Context) error {
			logger.Info("graceful shutdown initiated")
			return srv.Shutdown(ctx)
		},
	})

	select {
	case err := <-startErr:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", cfg.Port, err)
		}
		return exitError(<-wait)
	case code := <-wait:
		return exitError(code)
	}
}

func exitError(code int) error {
	if code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	return nil
}
