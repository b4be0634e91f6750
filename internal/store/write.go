package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/sitevar/sitevar/internal/evidence"
	"github.com/sitevar/sitevar/internal/record"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrTranscriptionState is returned when a transcription update does not
// follow the one-shot none -> pending -> complete|failed state machine.
var ErrTranscriptionState = errors.New("invalid transcription state change")

// Kind identifies one of the persisted tables for sync bookkeeping.
type Kind string

const (
	KindProject      Kind = "project"
	KindClaim        Kind = "claim"
	KindPhoto        Kind = "photo"
	KindVoiceNote    Kind = "voice_note"
	KindAttachment   Kind = "attachment"
	KindStatusChange Kind = "status_change"
)

// tableFor maps a kind to its table name. Kinds are a closed set; an
// unknown kind is a programming error.
func tableFor(k Kind) (string, error) {
	switch k {
	case KindProject:
		return "projects", nil
	case KindClaim:
		return "claims", nil
	case KindPhoto:
		return "photos", nil
	case KindVoiceNote:
		return "voice_notes", nil
	case KindAttachment:
		return "attachments", nil
	case KindStatusChange:
		return "status_changes", nil
	}
	return "", fmt.Errorf("unknown kind %q", k)
}

// NewID generates a UUIDv7 entity identifier (time-ordered).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// newAuditID generates a ULID for status-change audit entries.
// ULIDs sort lexicographically by creation time, which keeps the audit
// trail ordered even when timestamps collide.
func newAuditID() string {
	return ulid.Make().String()
}

// CreateProject inserts a new project. Missing ID and timestamps are
// filled in; sync status is set to pending.
func (s *Store) CreateProject(ctx context.Context, p *record.Project) error {
	if p.Name == "" {
		return fmt.Errorf("create project: name is required")
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Active = true
	p.SyncStatus = record.SyncPending

	lat, lon, acc := locToCols(p.Location)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects
		(id, name, client, reference_code, address, lat, lon, accuracy_m, active, created_at, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
	`, p.ID, p.Name, p.Client, p.ReferenceCode, nullStr(p.Address),
		lat, lon, acc, timeToDB(p.CreatedAt), timeToDB(p.UpdatedAt), p.SyncStatus)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// UpdateProject updates a project's mutable fields, bumps updated_at and
// resets sync status to pending.
func (s *Store) UpdateProject(ctx context.Context, p *record.Project) error {
	p.UpdatedAt = time.Now().UTC()
	p.SyncStatus = record.SyncPending

	lat, lon, acc := locToCols(p.Location)
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, client = ?, reference_code = ?, address = ?,
		    lat = ?, lon = ?, accuracy_m = ?, updated_at = ?, sync_status = ?
		WHERE id = ?
	`, p.Name, p.Client, p.ReferenceCode, nullStr(p.Address),
		lat, lon, acc, timeToDB(p.UpdatedAt), p.SyncStatus, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res, "update project")
}

// ArchiveProject soft-deletes a project. Archived projects keep their
// claims; nothing is hard-deleted in the canonical flow.
func (s *Store) ArchiveProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET active = 0, updated_at = ?, sync_status = ?
		WHERE id = ?
	`, timeToDB(time.Now().UTC()), record.SyncPending, id)
	if err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	return requireRow(res, "archive project")
}

// CreateClaim atomically inserts a claim, its initial evidence artifacts,
// the initial status-change row, and the computed evidence hash. A failure
// at any step rolls the whole operation back - no partially-created claim
// is ever observable.
//
// The per-project sequence number is computed as max+1 inside the same
// transaction that consumes it, so concurrent creations cannot collide
// (backstopped by the UNIQUE(project_id, seq) constraint).
func (s *Store) CreateClaim(ctx context.Context, c *record.Claim,
	photos []record.Photo, voiceNotes []record.VoiceNote, attachments []record.Attachment,
	actor string) error {

	if c.Title == "" {
		return fmt.Errorf("create claim: title is required")
	}
	if !c.Source.Valid() {
		return fmt.Errorf("create claim: invalid instruction source %q", c.Source)
	}
	if c.EstimatedValue < 0 {
		return fmt.Errorf("create claim: estimated value must be non-negative, got %d", c.EstimatedValue)
	}
	if actor == "" {
		return fmt.Errorf("create claim: actor is required")
	}

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.CapturedAt.IsZero() {
		c.CapturedAt = now
	}
	c.Status = record.StatusCaptured
	c.CreatedAt = now
	c.UpdatedAt = now
	c.SyncStatus = record.SyncPending

	digests := make([]string, 0, len(photos)+len(voiceNotes)+len(attachments))
	for _, p := range photos {
		digests = append(digests, p.Digest)
	}
	for _, v := range voiceNotes {
		digests = append(digests, v.Digest)
	}
	for _, a := range attachments {
		digests = append(digests, a.Digest)
	}
	c.EvidenceHash = evidence.EvidenceHash(digests, c.CapturedAt, c.Location)

	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("create claim: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Sequence assignment and insert must share one transaction.
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM claims WHERE project_id = ?
	`, c.ProjectID).Scan(&c.Seq); err != nil {
		return fmt.Errorf("create claim: next sequence: %w", err)
	}
	c.Code = record.ClaimCode(c.Seq)

	lat, lon, acc := locToCols(c.Location)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO claims
		(id, project_id, seq, code, title, description, source, instructed_by, reference_doc,
		 estimated_value, status, captured_at, lat, lon, accuracy_m, evidence_hash, notes,
		 created_at, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProjectID, c.Seq, c.Code, c.Title, c.Description, c.Source,
		nullStr(c.InstructedBy), nullStr(c.ReferenceDoc), c.EstimatedValue, c.Status,
		timeToDB(c.CapturedAt), lat, lon, acc, c.EvidenceHash, nullStr(c.Notes),
		timeToDB(c.CreatedAt), timeToDB(c.UpdatedAt), c.SyncStatus)
	if err != nil {
		return fmt.Errorf("create claim: insert: %w", err)
	}

	for i := range photos {
		photos[i].ClaimID = c.ID
		if err := insertPhotoTx(ctx, tx, &photos[i]); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
	}
	for i := range voiceNotes {
		voiceNotes[i].ClaimID = c.ID
		if err := insertVoiceNoteTx(ctx, tx, &voiceNotes[i]); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
	}
	for i := range attachments {
		attachments[i].ClaimID = c.ID
		if err := insertAttachmentTx(ctx, tx, &attachments[i]); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
	}

	// Initial audit entry: NULL -> captured.
	if err := insertStatusChangeTx(ctx, tx, &record.StatusChange{
		ClaimID: c.ID,
		From:    nil,
		To:      record.StatusCaptured,
		Actor:   actor,
		At:      now,
	}); err != nil {
		return fmt.Errorf("create claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create claim: commit: %w", err)
	}
	return nil
}

func insertPhotoTx(ctx context.Context, tx *sql.Tx, p *record.Photo) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.CapturedAt.IsZero() {
		p.CapturedAt = time.Now().UTC()
	}
	p.SyncStatus = record.SyncPending

	lat, lon, acc := locToCols(p.Location)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO photos
		(id, claim_id, local_path, remote_key, digest, captured_at, lat, lon, accuracy_m, width, height, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.ClaimID, p.LocalPath, nullStr(p.RemoteKey), p.Digest,
		timeToDB(p.CapturedAt), lat, lon, acc, p.Width, p.Height, p.SyncStatus)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

func insertVoiceNoteTx(ctx context.Context, tx *sql.Tx, v *record.VoiceNote) error {
	if v.ID == "" {
		v.ID = NewID()
	}
	if v.CapturedAt.IsZero() {
		v.CapturedAt = time.Now().UTC()
	}
	if v.TranscriptionStatus == "" {
		v.TranscriptionStatus = record.TranscriptionNone
	}
	v.SyncStatus = record.SyncPending

	lat, lon, acc := locToCols(v.Location)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO voice_notes
		(id, claim_id, local_path, remote_key, digest, captured_at, lat, lon, accuracy_m,
		 duration_sec, transcription, transcription_status, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ClaimID, v.LocalPath, nullStr(v.RemoteKey), v.Digest,
		timeToDB(v.CapturedAt), lat, lon, acc, v.DurationSec,
		nullStr(v.Transcription), v.TranscriptionStatus, v.SyncStatus)
	if err != nil {
		return fmt.Errorf("insert voice note: %w", err)
	}
	return nil
}

func insertAttachmentTx(ctx context.Context, tx *sql.Tx, a *record.Attachment) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CapturedAt.IsZero() {
		a.CapturedAt = time.Now().UTC()
	}
	a.SyncStatus = record.SyncPending

	_, err := tx.ExecContext(ctx, `
		INSERT INTO attachments
		(id, claim_id, local_path, remote_key, digest, captured_at, file_name, file_size, mime_type, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ClaimID, a.LocalPath, nullStr(a.RemoteKey), a.Digest,
		timeToDB(a.CapturedAt), a.FileName, a.FileSize, a.MIMEType, a.SyncStatus)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func insertStatusChangeTx(ctx context.Context, tx *sql.Tx, sc *record.StatusChange) error {
	if sc.ID == "" {
		sc.ID = newAuditID()
	}
	if sc.At.IsZero() {
		sc.At = time.Now().UTC()
	}
	sc.SyncStatus = record.SyncPending

	var from any
	if sc.From != nil {
		from = string(*sc.From)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO status_changes
		(id, claim_id, from_status, to_status, actor, at, note, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sc.ID, sc.ClaimID, from, sc.To, sc.Actor, timeToDB(sc.At), nullStr(sc.Note), sc.SyncStatus)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

// AddPhoto appends a photo to an existing claim and refreshes the claim's
// evidence hash in the same transaction.
func (s *Store) AddPhoto(ctx context.Context, p *record.Photo) error {
	return s.addArtifact(ctx, p.ClaimID, "add photo", func(tx *sql.Tx) error {
		return insertPhotoTx(ctx, tx, p)
	})
}

// AddVoiceNote appends a voice note to an existing claim and refreshes the
// claim's evidence hash in the same transaction.
func (s *Store) AddVoiceNote(ctx context.Context, v *record.VoiceNote) error {
	return s.addArtifact(ctx, v.ClaimID, "add voice note", func(tx *sql.Tx) error {
		return insertVoiceNoteTx(ctx, tx, v)
	})
}

// AddAttachment appends a document attachment to an existing claim and
// refreshes the claim's evidence hash in the same transaction.
func (s *Store) AddAttachment(ctx context.Context, a *record.Attachment) error {
	return s.addArtifact(ctx, a.ClaimID, "add attachment", func(tx *sql.Tx) error {
		return insertAttachmentTx(ctx, tx, a)
	})
}

func (s *Store) addArtifact(ctx context.Context, claimID, op string, insert func(*sql.Tx) error) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	if err := insert(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := refreshEvidenceHashTx(ctx, tx, claimID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// refreshEvidenceHashTx recomputes a claim's evidence hash from all its
// artifact digests, bumps updated_at and resets sync status to pending.
func refreshEvidenceHashTx(ctx context.Context, tx *sql.Tx, claimID string) error {
	var capturedAt string
	var lat, lon, acc sql.NullFloat64
	err := tx.QueryRowContext(ctx, `
		SELECT captured_at, lat, lon, accuracy_m FROM claims WHERE id = ?
	`, claimID).Scan(&capturedAt, &lat, &lon, &acc)
	if err == sql.ErrNoRows {
		return fmt.Errorf("refresh evidence hash: claim %s: %w", claimID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("refresh evidence hash: %w", err)
	}

	captured, err := timeFromDB(capturedAt)
	if err != nil {
		return fmt.Errorf("refresh evidence hash: %w", err)
	}

	var digests []string
	for _, q := range []string{
		`SELECT digest FROM photos WHERE claim_id = ?`,
		`SELECT digest FROM voice_notes WHERE claim_id = ?`,
		`SELECT digest FROM attachments WHERE claim_id = ?`,
	} {
		rows, err := tx.QueryContext(ctx, q, claimID)
		if err != nil {
			return fmt.Errorf("refresh evidence hash: %w", err)
		}
		for rows.Next() {
			var d string
			if err := rows.Scan(&d); err != nil {
				rows.Close()
				return fmt.Errorf("refresh evidence hash: %w", err)
			}
			digests = append(digests, d)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("refresh evidence hash: %w", err)
		}
		rows.Close()
	}

	hash := evidence.EvidenceHash(digests, captured, locFromCols(lat, lon, acc))
	_, err = tx.ExecContext(ctx, `
		UPDATE claims SET evidence_hash = ?, updated_at = ?, sync_status = ? WHERE id = ?
	`, hash, timeToDB(time.Now().UTC()), record.SyncPending, claimID)
	if err != nil {
		return fmt.Errorf("refresh evidence hash: update: %w", err)
	}
	return nil
}

// ClaimUpdate describes an edit to a claim's mutable detail fields.
// Nil fields are left untouched.
type ClaimUpdate struct {
	Title          *string
	Description    *string
	Notes          *string
	EstimatedValue *int64
}

// UpdateClaim applies a detail edit, bumps updated_at and resets sync
// status to pending. Status is not touched here; use the lifecycle engine.
func (s *Store) UpdateClaim(ctx context.Context, id string, upd ClaimUpdate) error {
	if upd.EstimatedValue != nil && *upd.EstimatedValue < 0 {
		return fmt.Errorf("update claim: estimated value must be non-negative, got %d", *upd.EstimatedValue)
	}

	set := "updated_at = ?, sync_status = ?"
	args := []any{timeToDB(time.Now().UTC()), record.SyncPending}
	if upd.Title != nil {
		set += ", title = ?"
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		set += ", description = ?"
		args = append(args, *upd.Description)
	}
	if upd.Notes != nil {
		set += ", notes = ?"
		args = append(args, *upd.Notes)
	}
	if upd.EstimatedValue != nil {
		set += ", estimated_value = ?"
		args = append(args, *upd.EstimatedValue)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE claims SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	return requireRow(res, "update claim")
}

// SetClaimStatus performs the compare-and-set status update used by the
// lifecycle engine: the status column only changes if the claim is still
// in the expected prior state, and exactly one audit row is appended in
// the same transaction. Returns ErrNotFound if the claim vanished or its
// status moved under us.
func (s *Store) SetClaimStatus(ctx context.Context, claimID string,
	from, to record.ClaimStatus, actor string, note *string) (record.StatusChange, error) {

	tx, err := s.begin(ctx)
	if err != nil {
		return record.StatusChange{}, fmt.Errorf("set claim status: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE claims SET status = ?, updated_at = ?, sync_status = ?
		WHERE id = ? AND status = ?
	`, to, timeToDB(now), record.SyncPending, claimID, from)
	if err != nil {
		return record.StatusChange{}, fmt.Errorf("set claim status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return record.StatusChange{}, fmt.Errorf("set claim status: rows affected: %w", err)
	}
	if n == 0 {
		return record.StatusChange{}, fmt.Errorf("set claim status: claim %s not in status %q: %w", claimID, from, ErrNotFound)
	}

	change := record.StatusChange{
		ClaimID: claimID,
		From:    &from,
		To:      to,
		Actor:   actor,
		At:      now,
		Note:    note,
	}
	if err := insertStatusChangeTx(ctx, tx, &change); err != nil {
		return record.StatusChange{}, fmt.Errorf("set claim status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return record.StatusChange{}, fmt.Errorf("set claim status: commit: %w", err)
	}
	return change, nil
}

// SetTranscription advances a voice note's one-shot transcription state
// machine. Allowed: none -> pending, pending -> complete (with text),
// pending -> failed. Anything else returns ErrTranscriptionState.
func (s *Store) SetTranscription(ctx context.Context, voiceNoteID string,
	to record.TranscriptionStatus, text *string) error {

	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("set transcription: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `
		SELECT transcription_status FROM voice_notes WHERE id = ?
	`, voiceNoteID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("set transcription: voice note %s: %w", voiceNoteID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("set transcription: %w", err)
	}

	from := record.TranscriptionStatus(current)
	valid := (from == record.TranscriptionNone && to == record.TranscriptionPending) ||
		(from == record.TranscriptionPending &&
			(to == record.TranscriptionComplete || to == record.TranscriptionFailed))
	if !valid {
		return fmt.Errorf("set transcription: %q -> %q: %w", from, to, ErrTranscriptionState)
	}
	if to == record.TranscriptionComplete && text == nil {
		return fmt.Errorf("set transcription: complete requires text: %w", ErrTranscriptionState)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE voice_notes SET transcription = ?, transcription_status = ?, sync_status = ?
		WHERE id = ?
	`, nullStr(text), to, record.SyncPending, voiceNoteID)
	if err != nil {
		return fmt.Errorf("set transcription: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set transcription: commit: %w", err)
	}
	return nil
}

// SyncGuard pins MarkSynced to the row snapshot the push phase read.
// A row edited after that snapshot fails the guard and keeps its pending
// status, so the edit is pushed on a later pass. The zero value marks
// unconditionally; use it only for append-only kinds.
type SyncGuard struct {
	// UpdatedAt guards projects and claims.
	UpdatedAt time.Time
	// Transcription guards voice notes, whose transcription fields can
	// change after capture.
	Transcription record.TranscriptionStatus
}

// MarkSynced records a successful remote upsert for one row. With a
// non-zero guard, a row that changed since the push phase read it is
// left alone and no error is returned.
func (s *Store) MarkSynced(ctx context.Context, kind Kind, id string, g SyncGuard) error {
	table, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	where := "id = ?"
	args := []any{record.SyncSynced, id}
	guarded := false
	if !g.UpdatedAt.IsZero() {
		where += " AND updated_at = ?"
		args = append(args, timeToDB(g.UpdatedAt))
		guarded = true
	}
	if g.Transcription != "" {
		where += " AND transcription_status = ?"
		args = append(args, g.Transcription)
		guarded = true
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET sync_status = ? WHERE %s", table, where), args...)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if guarded {
		return nil
	}
	return requireRow(res, "mark synced")
}

// MarkSyncFailed records a failed remote upsert. The row remains eligible
// for retry on the next reconciliation pass.
func (s *Store) MarkSyncFailed(ctx context.Context, kind Kind, id string) error {
	return s.setSyncStatus(ctx, kind, id, record.SyncFailed)
}

func (s *Store) setSyncStatus(ctx context.Context, kind Kind, id string, st record.SyncStatus) error {
	table, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET sync_status = ? WHERE id = ?", table), st, id)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	return requireRow(res, "set sync status")
}

// SetRemoteKey records the object-storage key assigned to an uploaded
// artifact binary. Valid only for artifact kinds.
func (s *Store) SetRemoteKey(ctx context.Context, kind Kind, id, key string) error {
	switch kind {
	case KindPhoto, KindVoiceNote, KindAttachment:
	default:
		return fmt.Errorf("set remote key: kind %q has no binary", kind)
	}
	table, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("set remote key: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET remote_key = ? WHERE id = ?", table), key, id)
	if err != nil {
		return fmt.Errorf("set remote key: %w", err)
	}
	return requireRow(res, "set remote key")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
