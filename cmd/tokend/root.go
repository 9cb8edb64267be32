package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v          *viper.Viper
	configFile string
	logger     zerolog.Logger
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v, logger: zerolog.Nop()}
	setDefaults(v)

	root := &cobra.Command{
		Use:   "tokend",
		Short: "Short-lived bearer token issuer",
		Long: `tokend issues HS256 bearer tokens for username/password credentials
stored in Redis and renews tokens for already-authenticated callers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			used, err := loadConfig(a.v, a.configFile)
			if err != nil {
				return err
			}
			if a.logger, err = newLogger(a.v); err != nil {
				return err
			}
			if used != "" {
				a.logger.Debug().Str("file", used).Msg("using config file")
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./tokend.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.Bool("no-color", false, "disable colored console output")
	flags.String("redis-addr", "localhost:6379", "Redis address")
	flags.String("redis-prefix", "tokend", "Redis key prefix")
	_ = v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(keyLogFormat, flags.Lookup("log-format"))
	_ = v.BindPFlag(keyLogNoColor, flags.Lookup("no-color"))
	_ = v.BindPFlag(keyRedisAddr, flags.Lookup("redis-addr"))
	_ = v.BindPFlag(keyRedisPrefix, flags.Lookup("redis-prefix"))

	root.AddCommand(
		newServeCmd(a),
		newHashPasswordCmd(a),
		newUserCmd(a),
		newLoadtestCmd(a),
		newBenchcheckCmd(a),
	)
	return root
}
