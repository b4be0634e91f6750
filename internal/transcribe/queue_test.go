package transcribe

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitevar/sitevar/internal/evidence"
	"github.com/sitevar/sitevar/internal/record"
	"github.com/sitevar/sitevar/internal/store"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	paths []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, localPath)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedVoiceNote(t *testing.T, st *store.Store, localPath string) record.VoiceNote {
	t.Helper()
	ctx := context.Background()

	p := record.Project{Name: "Riverside Tower", Client: "Acme", ReferenceCode: "RT-01"}
	require.NoError(t, st.CreateProject(ctx, &p))

	c := record.Claim{
		ProjectID:  p.ID,
		Title:      "Verbal instruction on level 3",
		Source:     record.SourceVerbalDirection,
		CapturedAt: time.Now().UTC(),
	}
	note := record.VoiceNote{
		LocalPath:   localPath,
		Digest:      evidence.DigestBytes([]byte("audio")),
		CapturedAt:  time.Now().UTC(),
		DurationSec: 42.5,
	}
	require.NoError(t, st.CreateClaim(ctx, &c, nil, []record.VoiceNote{note}, nil, "alice"))

	notes, err := st.ListVoiceNotesForClaim(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	return notes[0]
}

func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func noteStatus(t *testing.T, st *store.Store, id string) record.TranscriptionStatus {
	t.Helper()
	note, err := st.GetVoiceNote(context.Background(), id)
	require.NoError(t, err)
	return note.TranscriptionStatus
}

func TestWorker_TranscribesToComplete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tr := &fakeTranscriber{text: "move the duct run to grid line C"}
	w := NewWorker(st, tr, nil)
	startWorker(t, w)

	note := seedVoiceNote(t, st, "/recordings/site-note.m4a")
	require.NoError(t, w.Enqueue(ctx, note.ID))

	assert.Eventually(t, func() bool {
		return noteStatus(t, st, note.ID) == record.TranscriptionComplete
	}, 2*time.Second, 10*time.Millisecond)

	got, err := st.GetVoiceNote(ctx, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Transcription)
	assert.Equal(t, "move the duct run to grid line C", *got.Transcription)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, []string{note.LocalPath}, tr.paths)
}

func TestWorker_FailureMarksFailedAndDoesNotPropagate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tr := &fakeTranscriber{err: errors.New("unintelligible audio")}
	w := NewWorker(st, tr, nil)
	startWorker(t, w)

	note := seedVoiceNote(t, st, "/recordings/bad-audio.m4a")
	// Enqueue succeeds even though the transcription will fail.
	require.NoError(t, w.Enqueue(ctx, note.ID))

	assert.Eventually(t, func() bool {
		return noteStatus(t, st, note.ID) == record.TranscriptionFailed
	}, 2*time.Second, 10*time.Millisecond)

	got, err := st.GetVoiceNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Transcription)
}

func TestWorker_NoRetranscription(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tr := &fakeTranscriber{text: "once only"}
	w := NewWorker(st, tr, nil)
	startWorker(t, w)

	note := seedVoiceNote(t, st, "/recordings/once.m4a")
	require.NoError(t, w.Enqueue(ctx, note.ID))
	assert.Eventually(t, func() bool {
		return noteStatus(t, st, note.ID) == record.TranscriptionComplete
	}, 2*time.Second, 10*time.Millisecond)

	err := w.Enqueue(ctx, note.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTranscriptionState)
}

func TestWorker_EnqueueUnknownNote(t *testing.T) {
	st := newTestStore(t)
	w := NewWorker(st, &fakeTranscriber{}, nil)
	startWorker(t, w)

	err := w.Enqueue(context.Background(), "no-such-id")
	require.Error(t, err)
}

func TestWorker_ProcessesInOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tr := &fakeTranscriber{text: "ok"}
	w := NewWorker(st, tr, nil)
	startWorker(t, w)

	first := seedVoiceNote(t, st, "/recordings/first.m4a")
	second := seedVoiceNote(t, st, "/recordings/second.m4a")
	require.NoError(t, w.Enqueue(ctx, first.ID))
	require.NoError(t, w.Enqueue(ctx, second.ID))

	assert.Eventually(t, func() bool {
		return noteStatus(t, st, first.ID) == record.TranscriptionComplete &&
			noteStatus(t, st, second.ID) == record.TranscriptionComplete
	}, 2*time.Second, 10*time.Millisecond)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, []string{first.LocalPath, second.LocalPath}, tr.paths)
}
