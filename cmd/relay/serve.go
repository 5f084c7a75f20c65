package main

import (
	"github.com/imrenagi/go-drive-relay/server"
	"github.com/spf13/cobra"
)

func newServeCmd(params *rootParams) *cobra.Command {
	var tusDir string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run only the ops server, optionally hosting a tus receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := params.load("BotToken")
			if err != nil {
				return err
			}
			if tusDir != "" {
				cfg.TusServeDir = tusDir
			}
			srv := server.New(server.Opts{
				Addr:        cfg.HTTPAddr,
				ServiceName: serviceName,
				TusDir:      cfg.TusServeDir,
				TusMaxSize:  cfg.TusMaxSize,
			})
			return srv.Run(cmd.Context())
		},
	}
	serveCmd.Flags().StringVar(&tusDir, "tus-dir", "", "directory for the tus receiver at /files (overrides TUS_SERVE_DIR)")
	return serveCmd
}
