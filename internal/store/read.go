package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sitevar/sitevar/internal/record"
)

const (
	projectCols = `id, name, client, reference_code, address, lat, lon, accuracy_m, active, created_at, updated_at, sync_status`

	claimCols = `id, project_id, seq, code, title, description, source, instructed_by, reference_doc,
		estimated_value, status, captured_at, lat, lon, accuracy_m, evidence_hash, notes,
		created_at, updated_at, sync_status`

	photoCols = `id, claim_id, local_path, remote_key, digest, captured_at, lat, lon, accuracy_m, width, height, sync_status`

	voiceNoteCols = `id, claim_id, local_path, remote_key, digest, captured_at, lat, lon, accuracy_m,
		duration_sec, transcription, transcription_status, sync_status`

	attachmentCols = `id, claim_id, local_path, remote_key, digest, captured_at, file_name, file_size, mime_type, sync_status`

	statusChangeCols = `id, claim_id, from_status, to_status, actor, at, note, sync_status`
)

// HydratedClaim is a claim with all owned evidence and its full audit
// trail, as consumed by export collaborators.
type HydratedClaim struct {
	Claim       record.Claim
	Photos      []record.Photo
	VoiceNotes  []record.VoiceNote
	Attachments []record.Attachment
	History     []record.StatusChange
}

// GetProject returns one project, or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (record.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return record.Project{}, fmt.Errorf("get project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return record.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects ordered by creation time.
// Archived projects are excluded unless includeArchived is set.
func (s *Store) ListProjects(ctx context.Context, includeArchived bool) ([]record.Project, error) {
	q := `SELECT ` + projectCols + ` FROM projects`
	if !includeArchived {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []record.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// GetClaim returns one claim row, or ErrNotFound.
func (s *Store) GetClaim(ctx context.Context, id string) (record.Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimCols+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return record.Claim{}, fmt.Errorf("get claim %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return record.Claim{}, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// ListClaimsForProject returns a project's claims in sequence order.
func (s *Store) ListClaimsForProject(ctx context.Context, projectID string) ([]record.Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimCols+` FROM claims WHERE project_id = ? ORDER BY seq ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := []record.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// GetVoiceNote returns one voice note, or ErrNotFound.
func (s *Store) GetVoiceNote(ctx context.Context, id string) (record.VoiceNote, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+voiceNoteCols+` FROM voice_notes WHERE id = ?`, id)
	v, err := scanVoiceNote(row)
	if err == sql.ErrNoRows {
		return record.VoiceNote{}, fmt.Errorf("get voice note %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return record.VoiceNote{}, fmt.Errorf("get voice note: %w", err)
	}
	return v, nil
}

// ListPhotosForClaim returns a claim's photos in capture order.
func (s *Store) ListPhotosForClaim(ctx context.Context, claimID string) ([]record.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoCols+` FROM photos WHERE claim_id = ? ORDER BY captured_at ASC, id ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := []record.Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("list photos: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

// ListVoiceNotesForClaim returns a claim's voice notes in capture order.
func (s *Store) ListVoiceNotesForClaim(ctx context.Context, claimID string) ([]record.VoiceNote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voiceNoteCols+` FROM voice_notes WHERE claim_id = ? ORDER BY captured_at ASC, id ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list voice notes: %w", err)
	}
	defer rows.Close()

	notes := []record.VoiceNote{}
	for rows.Next() {
		v, err := scanVoiceNote(rows)
		if err != nil {
			return nil, fmt.Errorf("list voice notes: %w", err)
		}
		notes = append(notes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list voice notes: %w", err)
	}
	return notes, nil
}

// ListAttachmentsForClaim returns a claim's attachments in capture order.
func (s *Store) ListAttachmentsForClaim(ctx context.Context, claimID string) ([]record.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attachmentCols+` FROM attachments WHERE claim_id = ? ORDER BY captured_at ASC, id ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	atts := []record.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("list attachments: %w", err)
		}
		atts = append(atts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return atts, nil
}

// ListStatusChanges returns a claim's audit trail in chronological order.
// ULID audit IDs break ties deterministically.
func (s *Store) ListStatusChanges(ctx context.Context, claimID string) ([]record.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statusChangeCols+` FROM status_changes WHERE claim_id = ? ORDER BY at ASC, id ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	changes := []record.StatusChange{}
	for rows.Next() {
		sc, err := scanStatusChange(rows)
		if err != nil {
			return nil, fmt.Errorf("list status changes: %w", err)
		}
		changes = append(changes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	return changes, nil
}

// GetHydratedClaim returns a claim with all owned artifacts and its audit
// trail. Reads are point-in-time consistent: SQLite's snapshot isolation
// plus the single-connection pool guarantee no in-flight write is visible.
func (s *Store) GetHydratedClaim(ctx context.Context, id string) (HydratedClaim, error) {
	c, err := s.GetClaim(ctx, id)
	if err != nil {
		return HydratedClaim{}, err
	}
	photos, err := s.ListPhotosForClaim(ctx, id)
	if err != nil {
		return HydratedClaim{}, err
	}
	notes, err := s.ListVoiceNotesForClaim(ctx, id)
	if err != nil {
		return HydratedClaim{}, err
	}
	atts, err := s.ListAttachmentsForClaim(ctx, id)
	if err != nil {
		return HydratedClaim{}, err
	}
	history, err := s.ListStatusChanges(ctx, id)
	if err != nil {
		return HydratedClaim{}, err
	}
	return HydratedClaim{
		Claim:       c,
		Photos:      photos,
		VoiceNotes:  notes,
		Attachments: atts,
		History:     history,
	}, nil
}

// ListClaimIDs returns the ids of every claim in the store. The pull
// phase uses this to scope artifact listings to claims it knows about.
func (s *Store) ListClaimIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM claims ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list claim ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list claim ids: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PendingCount returns the number of rows awaiting reconciliation across
// all tables. This backs the user-visible pending indicator.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	total := 0
	for _, table := range []string{"projects", "claims", "photos", "voice_notes", "attachments", "status_changes"} {
		var n int
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sync_status = ?", table),
			record.SyncPending).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("pending count: %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// Pending listings below feed the reconciler's push phase in dependency
// order. Rows marked failed are retried too; only synced rows are skipped.

func (s *Store) ListUnsyncedProjects(ctx context.Context) ([]record.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectCols+` FROM projects WHERE sync_status != ? ORDER BY created_at ASC, id ASC`,
		record.SyncSynced)
	if err != nil {
		return nil, fmt.Errorf("list unsynced projects: %w", err)
	}
	defer rows.Close()

	var out []record.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("list unsynced projects: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListUnsyncedClaims(ctx context.Context) ([]record.Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimCols+` FROM claims WHERE sync_status != ? ORDER BY created_at ASC, id ASC`,
		record.SyncSynced)
	if err != nil {
		return nil, fmt.Errorf("list unsynced claims: %w", err)
	}
	defer rows.Close()

	var out []record.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("list unsynced claims: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListUnsyncedPhotos(ctx context.Context) ([]record.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoCols+` FROM photos WHERE sync_status != ? ORDER BY captured_at ASC, id ASC`,
		record.SyncSynced)
	if err != nil {
		return nil, fmt.Errorf("list unsynced photos: %w", err)
	}
	defer rows.Close()

	var out []record.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("list unsynced photos: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListUnsyncedVoiceNotes(ctx context.Context) ([]record.VoiceNote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voiceNoteCols+` FROM voice_notes WHERE sync_status != ? ORDER BY captured_at ASC, id ASC`,
		record.SyncSynced)
	if err != nil {
		return nil, fmt.Errorf("list unsynced voice notes: %w", err)
	}
	defer rows.Close()

	var out []record.VoiceNote
	for rows.Next() {
		v, err := scanVoiceNote(rows)
		if err != nil {
			return nil, fmt.Errorf("list unsynced voice notes: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) ListUnsyncedAttachments(ctx context.Context) ([]record.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attachmentCols+` FROM attachments WHERE sync_status != ? ORDER BY captured_at ASC, id ASC`,
		record.SyncSynced)
	if err != nil {
		return nil, fmt.Errorf("list unsynced attachments: %w", err)
	}
	defer rows.Close()

	var out []record.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("list unsynced attachments: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListUnsyncedStatusChanges(ctx context.Context) ([]record.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statusChangeCols+` FROM status_changes WHERE sync_status != ? ORDER BY at ASC, id ASC`,
		record.SyncSynced)
	if err != nil {
		return nil, fmt.Errorf("list unsynced status changes: %w", err)
	}
	defer rows.Close()

	var out []record.StatusChange
	for rows.Next() {
		sc, err := scanStatusChange(rows)
		if err != nil {
			return nil, fmt.Errorf("list unsynced status changes: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
