package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/imrenagi/go-drive-relay/storage"
	"github.com/imrenagi/go-drive-relay/transfer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newUploadCmd(params *rootParams) *cobra.Command {
	var name string
	uploadCmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a local file through the configured storage backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := params.load("BotToken")
			if err != nil {
				return err
			}
			uploader, cleanup, err := newUploader(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("storage backend %s: %w", cfg.StorageBackend, err)
			}
			defer cleanup()

			uploaded, err := uploadFile(cmd.Context(), uploader, args[0], name, cfg.DestinationFolderID, cfg.ChunkSize)
			if err != nil {
				f := transfer.Classify(err)
				return errors.New(f.Message(cfg.DestinationFolderID))
			}
			fmt.Fprintln(cmd.OutOrStdout(), uploaded.Link)
			return nil
		},
	}
	uploadCmd.Flags().StringVar(&name, "name", "", "object name (default: the file's base name)")
	return uploadCmd
}

// uploadFile sends path chunk by chunk and logs every acknowledged chunk.
func uploadFile(ctx context.Context, uploader storage.Uploader, path, name, parentID string, chunkSize int64) (*storage.Uploaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(path)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("size", fi.Size()).Str("content_type", mt.String()).Msg("File size in bytes")

	session, err := uploader.CreateUpload(ctx, storage.Object{
		Name:        name,
		ContentType: mt.String(),
		Size:        fi.Size(),
		Content:     f,
		ChunkSize:   chunkSize,
	}, parentID)
	if err != nil {
		return nil, err
	}

	for {
		progress, uploaded, err := session.SendNextChunk(ctx)
		if err != nil {
			if aerr := session.Abort(context.WithoutCancel(ctx)); aerr != nil {
				log.Warn().Err(aerr).Msg("unable to abort upload session")
			}
			return nil, err
		}
		if uploaded != nil {
			log.Info().Str("id", uploaded.ID).Str("name", uploaded.Name).Msg("File upload complete")
			return uploaded, nil
		}
		log.Debug().
			Int64("offset", progress.Sent).
			Int("percent", transfer.Percent(progress.Sent, progress.Total)).
			Msg("chunk acknowledged")
	}
}
