package cli

import (
	"context"

	"github.com/sitevar/sitevar/internal/store"
	"github.com/sitevar/sitevar/internal/transcribe"
)

// transcribeNotes hands freshly saved voice notes to the transcription
// worker and drains it before the command returns. Without a configured
// transcriber command this is a no-op; transcription failures are
// recorded on the note and never fail the capture.
func transcribeNotes(ctx context.Context, cfg Config, st *store.Store, formatter *OutputFormatter, noteIDs []string) {
	if cfg.TranscribeCmd == "" || len(noteIDs) == 0 {
		return
	}
	tr, err := transcribe.NewCommandTranscriber(cfg.TranscribeCmd)
	if err != nil {
		formatter.VerboseLog("transcriber disabled: %v", err)
		return
	}
	w := transcribe.NewWorker(st, tr, nil)
	for _, id := range noteIDs {
		if err := w.Enqueue(ctx, id); err != nil {
			formatter.VerboseLog("transcription enqueue failed: %v", err)
		}
	}
	w.Drain(ctx)
}
