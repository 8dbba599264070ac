package main

import (
	"fmt"

	"clinical-annotator/highlight"

	"github.com/spf13/cobra"
)

func newHighlightCmd() *cobra.Command {
	var noteID string

	cmd := &cobra.Command{
		Use:   "highlight FILE",
		Short: "Print the highlighted HTML of one note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			note, ok := doc.FindNote(noteID)
			if !ok {
				return fmt.Errorf("note %q not found in %s", noteID, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), highlight.Highlight(note.Text, doc.Keywords, note.Evidence))
			return nil
		},
	}

	cmd.Flags().StringVar(&noteID, "note", "", "id of the note to render")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}
