package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"photosync/internal/assets"
	"photosync/internal/config"
	"photosync/internal/fileutil"
)

var importMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var category string
	var copyIntoData bool

	cmd := &cobra.Command{
		Use:   "import <file...>",
		Short: "Add media files to the upload queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *assets.Store) error {
				for _, arg := range args {
					absPath, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve path: %w", err)
					}

					info, err := os.Stat(absPath)
					if err != nil {
						if errors.Is(err, os.ErrNotExist) {
							return fmt.Errorf("file does not exist: %s", absPath)
						}
						return fmt.Errorf("inspect file: %w", err)
					}
					if info.IsDir() {
						return fmt.Errorf("%s is a directory", absPath)
					}

					ext := strings.ToLower(filepath.Ext(info.Name()))
					mimeType, ok := importMimeTypes[ext]
					if !ok {
						return fmt.Errorf("unsupported file extension %q", ext)
					}

					if copyIntoData {
						mediaDir := filepath.Join(cfg.Paths.DataDir, "media")
						if err := os.MkdirAll(mediaDir, 0o755); err != nil {
							return fmt.Errorf("create media directory: %w", err)
						}
						target := filepath.Join(mediaDir, info.Name())
						if err := fileutil.CopyFileVerified(absPath, target); err != nil {
							return fmt.Errorf("copy %s: %w", info.Name(), err)
						}
						absPath = target
					}

					asset, err := store.New(cmd.Context(), assets.NewAssetParams{
						Filename:  info.Name(),
						MimeType:  mimeType,
						URI:       absPath,
						SizeBytes: info.Size(),
						Category:  category,
					})
					if err != nil {
						return fmt.Errorf("queue %s: %w", info.Name(), err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as asset #%d\n", info.Name(), asset.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Category label stored with the asset")
	cmd.Flags().BoolVar(&copyIntoData, "copy", false, "Copy files into the data directory before queueing")
	return cmd
}
