package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seanwevans/fhir-department/internal/queue"
)

var documentExtensions = map[string]struct{}{
	".pdf":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".tif":  {},
	".tiff": {},
	".txt":  {},
}

func validateDocumentPath(arg string) (string, error) {
	absPath, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file does not exist: %s", absPath)
		}
		return "", fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", absPath)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := documentExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported file extension %q", ext)
	}
	return absPath, nil
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Add documents to the intake queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			// Prefer the daemon so the inbox watcher and the manual path
			// share duplicate detection. Fall back to the store when the
			// daemon is down.
			client, dialErr := ctx.dialClient()
			if dialErr == nil {
				defer client.Close()
				for _, arg := range args {
					absPath, err := validateDocumentPath(arg)
					if err != nil {
						return err
					}
					resp, err := client.AddDocument(absPath)
					if err != nil {
						return err
					}
					if resp == nil {
						return errors.New("empty response from daemon")
					}
					fmt.Fprintf(out, "Queued document as item #%d (%s)\n", resp.Item.ID, filepath.Base(absPath))
				}
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, arg := range args {
				absPath, err := validateDocumentPath(arg)
				if err != nil {
					return err
				}
				item, err := store.NewDocument(cmd.Context(), absPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued document as item #%d (%s)\n", item.ID, filepath.Base(absPath))
			}
			return nil
		},
	}
}
