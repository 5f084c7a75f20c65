package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/imrenagi/go-drive-relay/config"
	"github.com/imrenagi/go-drive-relay/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const serviceName = "go-drive-relay"

type rootParams struct {
	envFile    string
	logConsole bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("relay exited with an error")
	}
}

func newRootCmd() *cobra.Command {
	var params rootParams
	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay files sent to a Telegram bot into cloud storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&params.envFile, "env-file", "", "env file to load before reading the environment (default .env)")
	rootCmd.PersistentFlags().BoolVar(&params.logConsole, "log-console", false, "human readable log output")

	botCmd := newBotCmd(&params)
	rootCmd.RunE = botCmd.RunE
	rootCmd.AddCommand(botCmd, newUploadCmd(&params), newServeCmd(&params))
	return rootCmd
}

// load reads the configuration and initializes the global logger from it.
func (p *rootParams) load(skip ...string) (config.Config, error) {
	cfg, err := config.Load(p.envFile, skip...)
	if err != nil {
		return config.Config{}, err
	}
	if err := server.InitializeLogger(cfg.LogLevel, p.logConsole); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
