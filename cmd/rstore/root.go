package main

import (
	"log/slog"
	"os"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirkobrombin/go-rstore/v1/config"
)

var (
	v      = config.NewViper()
	cfg    config.Config
	client redis.UniversalClient

	rootCmd = &cobra.Command{
		Use:               "rstore",
		Short:             "Inspect and operate rstore data",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if client != nil {
				_ = client.Close()
			}
		},
	}
)

func init() {
	cobra.OnInitialize(func() { config.LoadEnvFiles(".env", ".env.local") })

	f := rootCmd.PersistentFlags()
	f.String("config", "", "Config file (yaml, toml or json)")
	f.String("host", "localhost", "Store host")
	f.Int("port", 6379, "Store port")
	f.Int("db", 0, "Database index")
	f.Bool("verbose", false, "Log debug messages")

	rootCmd.AddCommand(lockCmd, keysCmd, mapCmd)
}

// setup binds the command flags to viper and opens the client.
func setup(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(v, cmd); err != nil {
		return err
	}
	if v.GetBool("verbose") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}
	var err error
	if cfg, err = config.FromViper(v); err != nil {
		return err
	}
	client = cfg.NewClient()
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return v.BindPFlags(cmd.InheritedFlags())
}
