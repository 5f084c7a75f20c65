package main

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/imrenagi/go-drive-relay/config"
	"github.com/imrenagi/go-drive-relay/journal"
	"github.com/imrenagi/go-drive-relay/server"
	"github.com/imrenagi/go-drive-relay/telegram"
	"github.com/imrenagi/go-drive-relay/transfer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newBotCmd(params *rootParams) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot and the ops server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}
			return runBot(cmd.Context(), cfg)
		},
	}
}

func runBot(ctx context.Context, cfg config.Config) error {
	if cfg.OTLPEndpoint != "" {
		exporter, err := server.NewOTLPTraceExporter(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		traceShutdownFn, err := server.InitTraceProvider(ctx, serviceName, exporter)
		if err != nil {
			return err
		}
		defer func() {
			if err := traceShutdownFn(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown trace provider")
			}
		}()
	}

	uploader, cleanup, err := newUploader(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage backend %s: %w", cfg.StorageBackend, err)
	}
	defer cleanup()

	store, closeJournal, err := openJournal(cfg.JournalDir)
	if err != nil {
		return err
	}
	defer closeJournal()

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, instrumentedClient())
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Str("backend", cfg.StorageBackend).Msg("authorized")

	pipeline := transfer.NewPipeline(telegram.NewMessenger(api), uploader,
		transfer.WithDestination(cfg.DestinationFolderID),
		transfer.WithScratchDir(cfg.ScratchDir),
		transfer.WithChunkSize(cfg.ChunkSize),
		transfer.WithThrottler(transfer.NewThrottler(cfg.NotifyInterval, cfg.NotifyStep)),
	)
	bot := telegram.NewBot(api, pipeline,
		telegram.WithJournal(store),
		telegram.WithHTTPClient(instrumentedClient()))

	srv := server.New(server.Opts{
		Addr:        cfg.HTTPAddr,
		ServiceName: serviceName,
		TusDir:      cfg.TusServeDir,
		TusMaxSize:  cfg.TusMaxSize,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

// openJournal keeps results in badger when dir is set, in memory otherwise.
func openJournal(dir string) (journal.Store, func(), error) {
	if dir == "" {
		return journal.NewMemory(), func() {}, nil
	}
	db, err := journal.OpenBadger(dir)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close journal")
		}
	}
	return journal.NewBadger(db), closeFn, nil
}
