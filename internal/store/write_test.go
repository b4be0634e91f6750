package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/sitevar/sitevar/internal/record"
)

func TestCreateProject_FillsDefaults(t *testing.T) {
	s := createTestStore(t)

	p := createTestProject(t, s, "Site A")

	if p.ID == "" {
		t.Error("expected generated ID")
	}
	if !p.Active {
		t.Error("new project should be active")
	}
	if p.SyncStatus != record.SyncPending {
		t.Errorf("sync status = %q, expected pending", p.SyncStatus)
	}

	got, err := s.GetProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProject() failed: %v", err)
	}
	if got.Name != "Site A" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestCreateProject_RequiresName(t *testing.T) {
	s := createTestStore(t)

	err := s.CreateProject(context.Background(), &record.Project{Client: "x"})
	if err == nil {
		t.Error("expected error for empty name")
	}
}

func TestArchiveProject_SoftDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")

	if err := s.ArchiveProject(ctx, p.ID); err != nil {
		t.Fatalf("ArchiveProject() failed: %v", err)
	}

	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("archived project should still exist: %v", err)
	}
	if got.Active {
		t.Error("archived project should be inactive")
	}

	active, err := s.ListProjects(ctx, false)
	if err != nil {
		t.Fatalf("ListProjects() failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active listing has %d projects, expected 0", len(active))
	}

	all, err := s.ListProjects(ctx, true)
	if err != nil {
		t.Fatalf("ListProjects(archived) failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("full listing has %d projects, expected 1", len(all))
	}
}

func TestCreateClaim_CompoundWrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")

	c := createTestClaim(t, s, p.ID, "Extra excavation",
		[]record.Photo{testPhoto("p1"), testPhoto("p2")},
		[]record.VoiceNote{testVoiceNote("v1")})

	if c.Seq != 1 {
		t.Errorf("seq = %d, expected 1", c.Seq)
	}
	if c.Code != "VO-001" {
		t.Errorf("code = %q, expected VO-001", c.Code)
	}
	if c.Status != record.StatusCaptured {
		t.Errorf("status = %q, expected captured", c.Status)
	}
	if c.EvidenceHash == "" {
		t.Error("evidence hash should be set")
	}

	hydrated, err := s.GetHydratedClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetHydratedClaim() failed: %v", err)
	}
	if len(hydrated.Photos) != 2 {
		t.Errorf("photos = %d, expected 2", len(hydrated.Photos))
	}
	if len(hydrated.VoiceNotes) != 1 {
		t.Errorf("voice notes = %d, expected 1", len(hydrated.VoiceNotes))
	}
	if len(hydrated.History) != 1 {
		t.Fatalf("history = %d rows, expected 1", len(hydrated.History))
	}
	initial := hydrated.History[0]
	if initial.From != nil {
		t.Errorf("initial audit row From = %v, expected nil", *initial.From)
	}
	if initial.To != record.StatusCaptured {
		t.Errorf("initial audit row To = %q, expected captured", initial.To)
	}
}

func TestCreateClaim_EvidenceHashStableAcrossReload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")

	c := createTestClaim(t, s, p.ID, "Claim", []record.Photo{testPhoto("p1")}, nil)

	reloaded, err := s.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if reloaded.EvidenceHash != c.EvidenceHash {
		t.Errorf("evidence hash changed across reload: %q != %q", reloaded.EvidenceHash, c.EvidenceHash)
	}
}

func TestCreateClaim_MissingProjectRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := record.Claim{
		ProjectID: "does-not-exist",
		Title:     "Orphan",
		Source:    record.SourceOther,
	}
	err := s.CreateClaim(ctx, &c, []record.Photo{testPhoto("p1")}, nil, nil, "tester")
	if err == nil {
		t.Fatal("expected foreign key error")
	}

	// Nothing may be partially committed.
	for _, table := range []string{"claims", "photos", "status_changes"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s has %d rows after failed create, expected 0", table, n)
		}
	}
}

func TestCreateClaim_RejectsNegativeValue(t *testing.T) {
	s := createTestStore(t)
	p := createTestProject(t, s, "Site A")

	c := record.Claim{
		ProjectID:      p.ID,
		Title:          "Bad value",
		Source:         record.SourceOther,
		EstimatedValue: -100,
	}
	err := s.CreateClaim(context.Background(), &c, nil, nil, nil, "tester")
	if err == nil {
		t.Error("expected error for negative estimated value")
	}
}

func TestCreateClaim_RejectsInvalidSource(t *testing.T) {
	s := createTestStore(t)
	p := createTestProject(t, s, "Site A")

	c := record.Claim{
		ProjectID: p.ID,
		Title:     "Bad source",
		Source:    record.InstructionSource("carrier pigeon"),
	}
	err := s.CreateClaim(context.Background(), &c, nil, nil, nil, "tester")
	if err == nil {
		t.Error("expected error for invalid instruction source")
	}
}

func TestCreateClaim_SequencesPerProject(t *testing.T) {
	s := createTestStore(t)
	pa := createTestProject(t, s, "Site A")
	pb := createTestProject(t, s, "Site B")

	ca1 := createTestClaim(t, s, pa.ID, "A1", nil, nil)
	ca2 := createTestClaim(t, s, pa.ID, "A2", nil, nil)
	cb1 := createTestClaim(t, s, pb.ID, "B1", nil, nil)

	if ca1.Seq != 1 || ca2.Seq != 2 {
		t.Errorf("project A sequences = %d, %d; expected 1, 2", ca1.Seq, ca2.Seq)
	}
	if cb1.Seq != 1 {
		t.Errorf("project B first sequence = %d, expected 1", cb1.Seq)
	}
}

func TestCreateClaim_ConcurrentSequenceIntegrity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")

	const n = 50
	var wg sync.WaitGroup
	seqs := make([]int64, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := record.Claim{
				ProjectID: p.ID,
				Title:     "Concurrent",
				Source:    record.SourceOther,
			}
			errs[i] = s.CreateClaim(ctx, &c, nil, nil, nil, "tester")
			seqs[i] = c.Seq
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent create %d failed: %v", i, err)
		}
	}

	sorted := make([]int64, n)
	copy(sorted, seqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, seq := range sorted {
		if seq != int64(i+1) {
			t.Fatalf("sequence set has gap or duplicate at position %d: got %d, expected %d (all: %v)",
				i, seq, i+1, sorted)
		}
	}
}

func TestAddPhoto_RefreshesEvidenceHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", []record.Photo{testPhoto("p1")}, nil)

	if err := s.MarkSynced(ctx, KindClaim, c.ID, SyncGuard{}); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	photo := testPhoto("p2")
	photo.ClaimID = c.ID
	if err := s.AddPhoto(ctx, &photo); err != nil {
		t.Fatalf("AddPhoto() failed: %v", err)
	}

	got, err := s.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if got.EvidenceHash == c.EvidenceHash {
		t.Error("evidence hash should change when an artifact is added")
	}
	if got.SyncStatus != record.SyncPending {
		t.Errorf("claim sync status = %q after edit, expected pending", got.SyncStatus)
	}
}

func TestUpdateClaim_RejectsNegativeValue(t *testing.T) {
	s := createTestStore(t)
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, nil)

	bad := int64(-1)
	err := s.UpdateClaim(context.Background(), c.ID, ClaimUpdate{EstimatedValue: &bad})
	if err == nil {
		t.Error("expected error for negative value")
	}
}

func TestUpdateClaim_ResetsSyncStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, nil)

	if err := s.MarkSynced(ctx, KindClaim, c.ID, SyncGuard{}); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	notes := "chased up site engineer"
	if err := s.UpdateClaim(ctx, c.ID, ClaimUpdate{Notes: &notes}); err != nil {
		t.Fatalf("UpdateClaim() failed: %v", err)
	}

	got, err := s.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if got.SyncStatus != record.SyncPending {
		t.Errorf("sync status = %q, expected pending", got.SyncStatus)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Errorf("notes = %v", got.Notes)
	}
	if !got.UpdatedAt.After(c.UpdatedAt) {
		t.Error("updated_at should advance on edit")
	}
}

func TestMarkSynced_GuardKeepsEditedClaimPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, nil)
	snapshot := c.UpdatedAt

	// An edit lands after the push phase read its snapshot.
	title := "Edited while pushing"
	if err := s.UpdateClaim(ctx, c.ID, ClaimUpdate{Title: &title}); err != nil {
		t.Fatalf("UpdateClaim() failed: %v", err)
	}

	if err := s.MarkSynced(ctx, KindClaim, c.ID, SyncGuard{UpdatedAt: snapshot}); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	got, err := s.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if got.SyncStatus != record.SyncPending {
		t.Errorf("sync status = %q, expected pending to survive a stale mark", got.SyncStatus)
	}

	// With a matching snapshot the mark goes through.
	if err := s.MarkSynced(ctx, KindClaim, c.ID, SyncGuard{UpdatedAt: got.UpdatedAt}); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	got, err = s.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if got.SyncStatus != record.SyncSynced {
		t.Errorf("sync status = %q, expected synced", got.SyncStatus)
	}
}

func TestMarkSynced_GuardKeepsTranscribedNotePending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, []record.VoiceNote{testVoiceNote("v1")})

	notes, err := s.ListVoiceNotesForClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListVoiceNotesForClaim() failed: %v", err)
	}
	v := notes[0]

	// Transcription starts while the note's capture state is in flight.
	if err := s.SetTranscription(ctx, v.ID, record.TranscriptionPending, nil); err != nil {
		t.Fatalf("SetTranscription() failed: %v", err)
	}

	if err := s.MarkSynced(ctx, KindVoiceNote, v.ID, SyncGuard{Transcription: v.TranscriptionStatus}); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	got, err := s.GetVoiceNote(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVoiceNote() failed: %v", err)
	}
	if got.SyncStatus != record.SyncPending {
		t.Errorf("sync status = %q, expected pending to survive a stale mark", got.SyncStatus)
	}
}

func TestSetClaimStatus_CompareAndSet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, nil)

	_, err := s.SetClaimStatus(ctx, c.ID, record.StatusCaptured, record.StatusSubmitted, "pm", nil)
	if err != nil {
		t.Fatalf("SetClaimStatus() failed: %v", err)
	}

	// Stale prior state must not apply.
	_, err = s.SetClaimStatus(ctx, c.ID, record.StatusCaptured, record.StatusSubmitted, "pm", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("stale CAS error = %v, expected ErrNotFound", err)
	}

	history, err := s.ListStatusChanges(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListStatusChanges() failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history rows = %d, expected 2 (initial + one transition)", len(history))
	}
}

func TestSetTranscription_OneShot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, []record.VoiceNote{testVoiceNote("v1")})

	notes, err := s.ListVoiceNotesForClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListVoiceNotesForClaim() failed: %v", err)
	}
	vn := notes[0]
	if vn.TranscriptionStatus != record.TranscriptionNone {
		t.Fatalf("initial transcription status = %q", vn.TranscriptionStatus)
	}

	// none -> complete skips pending: rejected.
	text := "remove rock, approx three cubic meters"
	err = s.SetTranscription(ctx, vn.ID, record.TranscriptionComplete, &text)
	if !errors.Is(err, ErrTranscriptionState) {
		t.Errorf("none->complete error = %v, expected ErrTranscriptionState", err)
	}

	if err := s.SetTranscription(ctx, vn.ID, record.TranscriptionPending, nil); err != nil {
		t.Fatalf("none->pending failed: %v", err)
	}
	if err := s.SetTranscription(ctx, vn.ID, record.TranscriptionComplete, &text); err != nil {
		t.Fatalf("pending->complete failed: %v", err)
	}

	// No re-transcription.
	err = s.SetTranscription(ctx, vn.ID, record.TranscriptionPending, nil)
	if !errors.Is(err, ErrTranscriptionState) {
		t.Errorf("complete->pending error = %v, expected ErrTranscriptionState", err)
	}

	got, err := s.GetVoiceNote(ctx, vn.ID)
	if err != nil {
		t.Fatalf("GetVoiceNote() failed: %v", err)
	}
	if got.Transcription == nil || *got.Transcription != text {
		t.Errorf("transcription = %v", got.Transcription)
	}
	if got.SyncStatus != record.SyncPending {
		t.Errorf("voice note sync status = %q after transcription, expected pending", got.SyncStatus)
	}
}

func TestPendingCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	createTestClaim(t, s, p.ID, "Claim", []record.Photo{testPhoto("p1")}, nil)

	// project + claim + photo + initial status row
	n, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if n != 4 {
		t.Errorf("pending count = %d, expected 4", n)
	}

	if err := s.MarkSynced(ctx, KindProject, p.ID, SyncGuard{}); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	n, err = s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("pending count = %d after project sync, expected 3", n)
	}
}

func TestCascadeDelete_RemovesDependents(t *testing.T) {
	s := createTestStore(t)
	p := createTestProject(t, s, "Site A")
	createTestClaim(t, s, p.ID, "Claim", []record.Photo{testPhoto("p1")}, []record.VoiceNote{testVoiceNote("v1")})

	if _, err := s.db.Exec("DELETE FROM projects WHERE id = ?", p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	for _, table := range []string{"claims", "photos", "voice_notes", "status_changes"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s has %d rows after cascade delete, expected 0", table, n)
		}
	}
}

func TestUpsertRemoteClaim_MarksSynced(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, nil)

	remote := c
	remote.Title = "Claim (remote edit)"
	if err := s.UpsertRemoteClaim(ctx, remote); err != nil {
		t.Fatalf("UpsertRemoteClaim() failed: %v", err)
	}

	got, err := s.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if got.Title != "Claim (remote edit)" {
		t.Errorf("title = %q", got.Title)
	}
	if got.SyncStatus != record.SyncSynced {
		t.Errorf("sync status = %q after remote upsert, expected synced", got.SyncStatus)
	}
}

func TestInsertRemotePhotoIfAbsent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "Site A")
	c := createTestClaim(t, s, p.ID, "Claim", nil, nil)

	photo := testPhoto("p1")
	photo.ID = NewID()
	photo.ClaimID = c.ID

	inserted, err := s.InsertRemotePhotoIfAbsent(ctx, photo)
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if !inserted {
		t.Error("first insert should report inserted=true")
	}

	inserted, err = s.InsertRemotePhotoIfAbsent(ctx, photo)
	if err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if inserted {
		t.Error("second insert should be a no-op")
	}
}
