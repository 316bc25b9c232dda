// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/citation"
	"github.com/jeranaias/citechat/internal/config"
	"github.com/jeranaias/citechat/internal/util"
)

func newFilesCommand(a *app) *cobra.Command {
	files := &cobra.Command{
		Use:   "files",
		Short: "Work with documents the assistant cites",
	}

	var outDir string
	get := &cobra.Command{
		Use:   "get <fileId>",
		Short: "Download a document by file id",
		Long: `Downloads a document from the relay's files endpoint. The file is saved
under the name the relay reports; an existing file is never overwritten.`,
		Example: `  citechat files get file-abc123
  citechat files get file-abc123 -o ./docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := outDir
			if dir == "" {
				dir = a.cfg.Files.DownloadDir
			}
			return a.runFilesGet(cmd.Context(), args[0], dir)
		},
	}
	get.Flags().StringVarP(&outDir, "output", "o", "", "Directory to save into (default files.download_dir)")

	files.AddCommand(get)
	return files
}

func (a *app) runFilesGet(ctx context.Context, fileID, dir string) error {
	st := &stack{
		client:  newClient(a.cfg, a.log),
		catalog: citation.NewCatalog(a.cfg.Files.Names),
	}

	path, err := saveFile(ctx, st, fileID, a.cfg.Files.Names[fileID], dir)
	if err != nil {
		return err
	}
	a.log.Info("file saved", zap.String("file_id", fileID), zap.String("path", path))
	fmt.Fprintln(a.streams.Out, path)
	return nil
}

// saveFile downloads fileID into dir and returns the written path. The
// relay's filename wins over fallbackName, which wins over the id. A name
// the relay reports is recorded in the catalog.
func saveFile(ctx context.Context, st *stack, fileID, fallbackName, dir string) (string, error) {
	f, err := st.client.DownloadFile(ctx, fileID)
	if err != nil {
		return "", err
	}

	name := f.Name
	if name == "" || name == "download" {
		name = fallbackName
	} else {
		st.catalog.Learn(fileID, name)
	}
	name = util.SafeFilename(name, fileID)

	if dir == "" {
		dir = config.Default().Files.DownloadDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	return util.WriteUniqueFile(dir, name, f.Data, 0644)
}
