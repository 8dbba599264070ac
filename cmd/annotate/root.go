package main

import (
	"fmt"
	"os"

	"clinical-annotator/models"

	"github.com/spf13/cobra"
)

// newRootCmd builds the annotate command tree
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "annotate",
		Short: "Inspect clinical annotation files",
		Long: `annotate works on the JSON files used by the annotation server.

It validates uploads before they are handed out, previews the highlighted
note text, and reports per-annotator progress.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newValidateCmd(), newHighlightCmd(), newProgressCmd())
	return root
}

func loadDocument(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := models.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
