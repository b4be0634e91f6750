package store

import (
	"context"
	"fmt"

	"github.com/sitevar/sitevar/internal/record"
)

// Pull-phase writers. These are the only writes that do NOT reset
// sync_status to pending: a row arriving from the remote is by definition
// already synced. The reconciler decides WHETHER to apply a remote row
// (pending-skip, freshness comparison); these methods just apply it.

// UpsertRemoteProject inserts or replaces a project with remote state.
func (s *Store) UpsertRemoteProject(ctx context.Context, p record.Project) error {
	lat, lon, acc := locToCols(p.Location)
	active := 0
	if p.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects
		(id, name, client, reference_code, address, lat, lon, accuracy_m, active, created_at, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			client = excluded.client,
			reference_code = excluded.reference_code,
			address = excluded.address,
			lat = excluded.lat,
			lon = excluded.lon,
			accuracy_m = excluded.accuracy_m,
			active = excluded.active,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status
	`, p.ID, p.Name, p.Client, p.ReferenceCode, nullStr(p.Address),
		lat, lon, acc, active, timeToDB(p.CreatedAt), timeToDB(p.UpdatedAt), record.SyncSynced)
	if err != nil {
		return fmt.Errorf("upsert remote project: %w", err)
	}
	return nil
}

// UpsertRemoteClaim inserts or replaces a claim with remote state.
// Last-write-wins is per-row: the whole remote row replaces the local one.
func (s *Store) UpsertRemoteClaim(ctx context.Context, c record.Claim) error {
	lat, lon, acc := locToCols(c.Location)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO claims
		(id, project_id, seq, code, title, description, source, instructed_by, reference_doc,
		 estimated_value, status, captured_at, lat, lon, accuracy_m, evidence_hash, notes,
		 created_at, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			source = excluded.source,
			instructed_by = excluded.instructed_by,
			reference_doc = excluded.reference_doc,
			estimated_value = excluded.estimated_value,
			status = excluded.status,
			captured_at = excluded.captured_at,
			lat = excluded.lat,
			lon = excluded.lon,
			accuracy_m = excluded.accuracy_m,
			evidence_hash = excluded.evidence_hash,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status
	`, c.ID, c.ProjectID, c.Seq, c.Code, c.Title, c.Description, c.Source,
		nullStr(c.InstructedBy), nullStr(c.ReferenceDoc), c.EstimatedValue, c.Status,
		timeToDB(c.CapturedAt), lat, lon, acc, c.EvidenceHash, nullStr(c.Notes),
		timeToDB(c.CreatedAt), timeToDB(c.UpdatedAt), record.SyncSynced)
	if err != nil {
		return fmt.Errorf("upsert remote claim: %w", err)
	}
	return nil
}

// InsertRemotePhotoIfAbsent applies a pulled photo. Artifacts are
// immutable, so a locally-present copy is assumed identical and the
// insert is a no-op. Reports whether a row was actually inserted.
func (s *Store) InsertRemotePhotoIfAbsent(ctx context.Context, p record.Photo) (bool, error) {
	lat, lon, acc := locToCols(p.Location)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO photos
		(id, claim_id, local_path, remote_key, digest, captured_at, lat, lon, accuracy_m, width, height, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, p.ID, p.ClaimID, p.LocalPath, nullStr(p.RemoteKey), p.Digest,
		timeToDB(p.CapturedAt), lat, lon, acc, p.Width, p.Height, record.SyncSynced)
	if err != nil {
		return false, fmt.Errorf("insert remote photo: %w", err)
	}
	return oneRow(res)
}

// InsertRemoteVoiceNoteIfAbsent applies a pulled voice note, insert-if-absent.
func (s *Store) InsertRemoteVoiceNoteIfAbsent(ctx context.Context, v record.VoiceNote) (bool, error) {
	lat, lon, acc := locToCols(v.Location)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO voice_notes
		(id, claim_id, local_path, remote_key, digest, captured_at, lat, lon, accuracy_m,
		 duration_sec, transcription, transcription_status, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, v.ID, v.ClaimID, v.LocalPath, nullStr(v.RemoteKey), v.Digest,
		timeToDB(v.CapturedAt), lat, lon, acc, v.DurationSec,
		nullStr(v.Transcription), v.TranscriptionStatus, record.SyncSynced)
	if err != nil {
		return false, fmt.Errorf("insert remote voice note: %w", err)
	}
	return oneRow(res)
}

// InsertRemoteAttachmentIfAbsent applies a pulled attachment, insert-if-absent.
func (s *Store) InsertRemoteAttachmentIfAbsent(ctx context.Context, a record.Attachment) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments
		(id, claim_id, local_path, remote_key, digest, captured_at, file_name, file_size, mime_type, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, a.ID, a.ClaimID, a.LocalPath, nullStr(a.RemoteKey), a.Digest,
		timeToDB(a.CapturedAt), a.FileName, a.FileSize, a.MIMEType, record.SyncSynced)
	if err != nil {
		return false, fmt.Errorf("insert remote attachment: %w", err)
	}
	return oneRow(res)
}

// InsertRemoteStatusChangeIfAbsent applies a pulled audit entry.
// The audit trail is append-only; existing rows are never touched.
func (s *Store) InsertRemoteStatusChangeIfAbsent(ctx context.Context, sc record.StatusChange) (bool, error) {
	var from any
	if sc.From != nil {
		from = string(*sc.From)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO status_changes
		(id, claim_id, from_status, to_status, actor, at, note, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sc.ID, sc.ClaimID, from, sc.To, sc.Actor, timeToDB(sc.At), nullStr(sc.Note), record.SyncSynced)
	if err != nil {
		return false, fmt.Errorf("insert remote status change: %w", err)
	}
	return oneRow(res)
}

func oneRow(res interface{ RowsAffected() (int64, error) }) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
