package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kbukum/dictation/clinical"
	"github.com/kbukum/dictation/oneshot"
)

type transcribeOptions struct {
	encounterID int64
	author      string
	noteType    string
}

// newTranscribeCmd runs one recording through the upload pipeline, the same
// path POST /api/v1/transcriptions takes.
func newTranscribeCmd(opts *rootOptions) *cobra.Command {
	var topts transcribeOptions
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe a recording and save it as a clinical note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noteType, err := clinical.ParseNoteType(topts.noteType)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts.configFile, opts.envFile)
			if err != nil {
				return err
			}
			app, inf, err := newApp(cfg)
			if err != nil {
				return err
			}

			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				store := clinical.NewStore(inf.db.DB(), app.Logger)
				author, err := store.ResolveUser(ctx, topts.author)
				if err != nil {
					return fmt.Errorf("author %q: %w", topts.author, err)
				}

				transcriber, err := fileProvider(ctx, cfg, app.Logger)
				if err != nil {
					return err
				}
				if c, ok := transcriber.(io.Closer); ok {
					defer c.Close()
				}

				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				res, err := newPipeline(cfg, inf, transcriber, store, app.Logger).Process(ctx, oneshot.Request{
					EncounterID: topts.encounterID,
					AuthorID:    author.UserID,
					NoteType:    noteType,
					Filename:    filepath.Base(args[0]),
					Audio:       f,
				})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
		},
	}
	cmd.Flags().Int64Var(&topts.encounterID, "encounter", 0, "encounter id the note belongs to")
	cmd.Flags().StringVar(&topts.author, "author", "", "username of the note author")
	cmd.Flags().StringVar(&topts.noteType, "note-type", string(clinical.NoteDoctorDictation), "note type")
	_ = cmd.MarkFlagRequired("encounter")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}
