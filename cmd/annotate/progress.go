package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	var annotator string

	cmd := &cobra.Command{
		Use:   "progress FILE",
		Short: "Report how many notes an annotator has completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			annotator = strings.TrimSpace(annotator)
			if annotator == "" {
				return fmt.Errorf("--annotator must not be blank")
			}

			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			completed := doc.CompletedNoteIDs(annotator)
			fmt.Fprintf(out, "%s: %d/%d notes annotated\n", annotator, len(completed), len(doc.Notes))
			for _, note := range doc.Notes {
				mark := "[ ]"
				if note.IsAnnotatedBy(annotator) {
					mark = "[x]"
				}
				fmt.Fprintf(out, "%s %s\n", mark, note.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&annotator, "annotator", "", "annotator id")
	_ = cmd.MarkFlagRequired("annotator")
	return cmd
}
