// Package reconcile implements the push-then-pull synchronization pass
// between the local store and the remote backend.
//
// Push walks pending rows in dependency order (projects, claims, photos,
// voice notes, attachments, status changes) so parents always reach the
// remote before their children. Pull applies remote rows under a
// last-write-wins policy, except that rows with un-pushed local edits are
// never overwritten. A failed row never aborts the pass; it is marked
// failed and retried next time.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/sitevar/sitevar/internal/record"
	"github.com/sitevar/sitevar/internal/remote"
	"github.com/sitevar/sitevar/internal/store"
)

// Backend is the remote relational store. Upserts are idempotent by row
// identifier; repeating one is harmless. Listings are scoped to the
// authenticated owner.
type Backend interface {
	UpsertProject(ctx context.Context, owner string, p record.Project) error
	UpsertClaim(ctx context.Context, owner string, c record.Claim) error
	UpsertPhoto(ctx context.Context, owner string, p record.Photo) error
	UpsertVoiceNote(ctx context.Context, owner string, v record.VoiceNote) error
	UpsertAttachment(ctx context.Context, owner string, a record.Attachment) error
	UpsertStatusChange(ctx context.Context, owner string, sc record.StatusChange) error

	ListProjects(ctx context.Context, owner string) ([]record.Project, error)
	ListClaims(ctx context.Context, owner string) ([]record.Claim, error)
	ListPhotosForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.Photo, error)
	ListVoiceNotesForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.VoiceNote, error)
	ListAttachmentsForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.Attachment, error)
	ListStatusChangesForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.StatusChange, error)
}

// BlobStore uploads artifact binaries.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	// Pushed is the number of local rows successfully upserted remotely.
	Pushed int
	// Pulled is the number of local rows created or updated from remote.
	Pulled int
	// Success is false when the pass did not run (offline) or left rows
	// behind in the failed state.
	Success bool
	// Reason explains a Success=false result.
	Reason string
}

// Reconciler runs reconciliation passes. Concurrent triggers collapse
// into a single in-flight pass; every caller receives that pass's result.
type Reconciler struct {
	store   *store.Store
	backend Backend
	blobs   BlobStore
	owner   string
	online  func() bool
	log     *slog.Logger

	group singleflight.Group
}

// New creates a reconciler for the given owner. online reports current
// connectivity; when it returns false a pass is skipped without error.
func New(st *store.Store, backend Backend, blobs BlobStore, owner string, online func() bool, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:   st,
		backend: backend,
		blobs:   blobs,
		owner:   owner,
		online:  online,
		log:     log,
	}
}

// Reconcile runs one push-then-pull pass. If a pass is already in flight
// the call joins it instead of starting another. A SyncResult with
// Success=false and a nil error means the pass was skipped or completed
// with row-level failures; a non-nil error means the pass itself aborted
// (store unreachable, context canceled) and unpushed rows stay pending.
func (r *Reconciler) Reconcile(ctx context.Context) (SyncResult, error) {
	v, err, _ := r.group.Do("reconcile", func() (any, error) {
		return r.run(ctx)
	})
	if res, ok := v.(SyncResult); ok {
		return res, err
	}
	return SyncResult{}, err
}

func (r *Reconciler) run(ctx context.Context) (SyncResult, error) {
	if !r.online() {
		r.log.Info("reconcile skipped", "reason", "no connectivity")
		return SyncResult{Success: false, Reason: "no connectivity"}, nil
	}

	var res SyncResult

	pushed, pushFailed, err := r.push(ctx)
	res.Pushed = pushed
	if err != nil {
		return res, fmt.Errorf("reconcile: push: %w", err)
	}

	pulled, pullFailed, err := r.pull(ctx)
	res.Pulled = pulled
	if err != nil {
		return res, fmt.Errorf("reconcile: pull: %w", err)
	}

	if pushFailed > 0 || pullFailed > 0 {
		var reasons []string
		if pushFailed > 0 {
			reasons = append(reasons, fmt.Sprintf("%d rows failed to push", pushFailed))
		}
		if pullFailed > 0 {
			reasons = append(reasons, fmt.Sprintf("%d rows failed to pull", pullFailed))
		}
		res.Reason = strings.Join(reasons, ", ")
		r.log.Warn("reconcile finished with failures",
			"pushed", res.Pushed, "pulled", res.Pulled,
			"push_failed", pushFailed, "pull_failed", pullFailed)
		return res, nil
	}
	res.Success = true
	r.log.Info("reconcile finished", "pushed", res.Pushed, "pulled", res.Pulled)
	return res, nil
}

// push walks pending rows in dependency order. Row-level upsert failures
// mark the row failed and continue; store errors abort the pass.
func (r *Reconciler) push(ctx context.Context) (pushed, failed int, err error) {
	type step struct {
		name string
		run  func(context.Context) (int, int, error)
	}
	steps := []step{
		{"projects", r.pushProjects},
		{"claims", r.pushClaims},
		{"photos", r.pushPhotos},
		{"voice notes", r.pushVoiceNotes},
		{"attachments", r.pushAttachments},
		{"status changes", r.pushStatusChanges},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return pushed, failed, err
		}
		n, f, err := s.run(ctx)
		pushed += n
		failed += f
		if err != nil {
			return pushed, failed, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return pushed, failed, nil
}

// pushRow upserts one row remotely and records the outcome locally.
// Returns true when the row was pushed. The guard keeps a row edited
// during the push pending, so the edit reaches the remote next pass.
func (r *Reconciler) pushRow(ctx context.Context, kind store.Kind, id string, guard store.SyncGuard, upsert func() error) (bool, error) {
	if err := upsert(); err != nil {
		r.log.Warn("push failed", "kind", kind, "id", id, "error", err)
		if merr := r.store.MarkSyncFailed(ctx, kind, id); merr != nil {
			return false, merr
		}
		return false, nil
	}
	if err := r.store.MarkSynced(ctx, kind, id, guard); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Reconciler) pushProjects(ctx context.Context) (pushed, failed int, err error) {
	rows, err := r.store.ListUnsyncedProjects(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range rows {
		ok, err := r.pushRow(ctx, store.KindProject, p.ID, store.SyncGuard{UpdatedAt: p.UpdatedAt}, func() error {
			return r.backend.UpsertProject(ctx, r.owner, p)
		})
		if err != nil {
			return pushed, failed, err
		}
		if ok {
			pushed++
		} else {
			failed++
		}
	}
	return pushed, failed, nil
}

func (r *Reconciler) pushClaims(ctx context.Context) (pushed, failed int, err error) {
	rows, err := r.store.ListUnsyncedClaims(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range rows {
		ok, err := r.pushRow(ctx, store.KindClaim, c.ID, store.SyncGuard{UpdatedAt: c.UpdatedAt}, func() error {
			return r.backend.UpsertClaim(ctx, r.owner, c)
		})
		if err != nil {
			return pushed, failed, err
		}
		if ok {
			pushed++
		} else {
			failed++
		}
	}
	return pushed, failed, nil
}

// uploadBlob uploads an artifact binary if it has no remote key yet and
// returns the key to record in the pushed metadata. A missing local file
// is logged and tolerated: the metadata still syncs so the record is
// visible remotely even when the binary is gone.
func (r *Reconciler) uploadBlob(ctx context.Context, kind store.Kind, keyKind, id, localPath string, remoteKey *string, contentType string) (*string, error) {
	if remoteKey != nil {
		return remoteKey, nil
	}
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Warn("artifact file missing, pushing metadata only",
				"kind", kind, "id", id, "path", localPath)
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := remote.ObjectKey(r.owner, keyKind, id, filepath.Ext(localPath))
	if err := r.blobs.Put(ctx, key, f, contentType); err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := r.store.SetRemoteKey(ctx, kind, id, key); err != nil {
		return nil, err
	}
	return &key, nil
}

func mediaType(localPath string) string {
	return mime.TypeByExtension(filepath.Ext(localPath))
}

func (r *Reconciler) pushPhotos(ctx context.Context) (pushed, failed int, err error) {
	rows, err := r.store.ListUnsyncedPhotos(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range rows {
		p := p
		ok, err := r.pushRow(ctx, store.KindPhoto, p.ID, store.SyncGuard{}, func() error {
			key, err := r.uploadBlob(ctx, store.KindPhoto, remote.KindPhoto,
				p.ID, p.LocalPath, p.RemoteKey, mediaType(p.LocalPath))
			if err != nil {
				return err
			}
			p.RemoteKey = key
			return r.backend.UpsertPhoto(ctx, r.owner, p)
		})
		if err != nil {
			return pushed, failed, err
		}
		if ok {
			pushed++
		} else {
			failed++
		}
	}
	return pushed, failed, nil
}

func (r *Reconciler) pushVoiceNotes(ctx context.Context) (pushed, failed int, err error) {
	rows, err := r.store.ListUnsyncedVoiceNotes(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, v := range rows {
		v := v
		ok, err := r.pushRow(ctx, store.KindVoiceNote, v.ID, store.SyncGuard{Transcription: v.TranscriptionStatus}, func() error {
			key, err := r.uploadBlob(ctx, store.KindVoiceNote, remote.KindVoiceNote,
				v.ID, v.LocalPath, v.RemoteKey, mediaType(v.LocalPath))
			if err != nil {
				return err
			}
			v.RemoteKey = key
			return r.backend.UpsertVoiceNote(ctx, r.owner, v)
		})
		if err != nil {
			return pushed, failed, err
		}
		if ok {
			pushed++
		} else {
			failed++
		}
	}
	return pushed, failed, nil
}

func (r *Reconciler) pushAttachments(ctx context.Context) (pushed, failed int, err error) {
	rows, err := r.store.ListUnsyncedAttachments(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, a := range rows {
		a := a
		ok, err := r.pushRow(ctx, store.KindAttachment, a.ID, store.SyncGuard{}, func() error {
			contentType := a.MIMEType
			if contentType == "" {
				contentType = mediaType(a.LocalPath)
			}
			key, err := r.uploadBlob(ctx, store.KindAttachment, remote.KindAttachment,
				a.ID, a.LocalPath, a.RemoteKey, contentType)
			if err != nil {
				return err
			}
			a.RemoteKey = key
			return r.backend.UpsertAttachment(ctx, r.owner, a)
		})
		if err != nil {
			return pushed, failed, err
		}
		if ok {
			pushed++
		} else {
			failed++
		}
	}
	return pushed, failed, nil
}

func (r *Reconciler) pushStatusChanges(ctx context.Context) (pushed, failed int, err error) {
	rows, err := r.store.ListUnsyncedStatusChanges(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, sc := range rows {
		ok, err := r.pushRow(ctx, store.KindStatusChange, sc.ID, store.SyncGuard{}, func() error {
			return r.backend.UpsertStatusChange(ctx, r.owner, sc)
		})
		if err != nil {
			return pushed, failed, err
		}
		if ok {
			pushed++
		} else {
			failed++
		}
	}
	return pushed, failed, nil
}

// pull applies remote state in the same dependency order as push. Mutable
// rows (projects, claims) follow last-write-wins on updated_at, but a row
// whose local copy has un-pushed edits is always skipped so local work is
// never lost. Append-only rows are inserted if absent.
//
// Like push, pull isolates row failures: a remote row that cannot be
// applied locally is logged, counted and skipped, so one bad row never
// blocks the rows behind it. Backend listing failures abort the phase.
func (r *Reconciler) pull(ctx context.Context) (pulled, failed int, err error) {
	n, f, err := r.pullProjects(ctx)
	pulled += n
	failed += f
	if err != nil {
		return pulled, failed, fmt.Errorf("projects: %w", err)
	}
	n, f, err = r.pullClaims(ctx)
	pulled += n
	failed += f
	if err != nil {
		return pulled, failed, fmt.Errorf("claims: %w", err)
	}

	// Artifact and audit pulls are scoped to claims present locally,
	// which at this point includes everything just pulled.
	claimIDs, err := r.store.ListClaimIDs(ctx)
	if err != nil {
		return pulled, failed, err
	}
	n, f, err = r.pullPhotos(ctx, claimIDs)
	pulled += n
	failed += f
	if err != nil {
		return pulled, failed, fmt.Errorf("photos: %w", err)
	}
	n, f, err = r.pullVoiceNotes(ctx, claimIDs)
	pulled += n
	failed += f
	if err != nil {
		return pulled, failed, fmt.Errorf("voice notes: %w", err)
	}
	n, f, err = r.pullAttachments(ctx, claimIDs)
	pulled += n
	failed += f
	if err != nil {
		return pulled, failed, fmt.Errorf("attachments: %w", err)
	}
	n, f, err = r.pullStatusChanges(ctx, claimIDs)
	pulled += n
	failed += f
	if err != nil {
		return pulled, failed, fmt.Errorf("status changes: %w", err)
	}
	return pulled, failed, nil
}

func (r *Reconciler) pullProjects(ctx context.Context) (pulled, failed int, err error) {
	remotes, err := r.backend.ListProjects(ctx, r.owner)
	if err != nil {
		return 0, 0, err
	}
	for _, rp := range remotes {
		local, err := r.store.GetProject(ctx, rp.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return pulled, failed, err
		case local.SyncStatus != record.SyncSynced:
			// Un-pushed local edits win over the remote copy.
			continue
		case !local.UpdatedAt.Before(rp.UpdatedAt):
			continue
		}
		if err := r.store.UpsertRemoteProject(ctx, rp); err != nil {
			r.log.Warn("pull failed", "kind", store.KindProject, "id", rp.ID, "error", err)
			failed++
			continue
		}
		pulled++
	}
	return pulled, failed, nil
}

func (r *Reconciler) pullClaims(ctx context.Context) (pulled, failed int, err error) {
	remotes, err := r.backend.ListClaims(ctx, r.owner)
	if err != nil {
		return 0, 0, err
	}
	for _, rc := range remotes {
		local, err := r.store.GetClaim(ctx, rc.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return pulled, failed, err
		case local.SyncStatus != record.SyncSynced:
			continue
		case !local.UpdatedAt.Before(rc.UpdatedAt):
			continue
		}
		if err := r.store.UpsertRemoteClaim(ctx, rc); err != nil {
			r.log.Warn("pull failed", "kind", store.KindClaim, "id", rc.ID, "error", err)
			failed++
			continue
		}
		pulled++
	}
	return pulled, failed, nil
}

func (r *Reconciler) pullPhotos(ctx context.Context, claimIDs []string) (pulled, failed int, err error) {
	remotes, err := r.backend.ListPhotosForClaims(ctx, r.owner, claimIDs)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range remotes {
		inserted, err := r.store.InsertRemotePhotoIfAbsent(ctx, p)
		if err != nil {
			r.log.Warn("pull failed", "kind", store.KindPhoto, "id", p.ID, "error", err)
			failed++
			continue
		}
		if inserted {
			pulled++
		}
	}
	return pulled, failed, nil
}

func (r *Reconciler) pullVoiceNotes(ctx context.Context, claimIDs []string) (pulled, failed int, err error) {
	remotes, err := r.backend.ListVoiceNotesForClaims(ctx, r.owner, claimIDs)
	if err != nil {
		return 0, 0, err
	}
	for _, v := range remotes {
		inserted, err := r.store.InsertRemoteVoiceNoteIfAbsent(ctx, v)
		if err != nil {
			r.log.Warn("pull failed", "kind", store.KindVoiceNote, "id", v.ID, "error", err)
			failed++
			continue
		}
		if inserted {
			pulled++
		}
	}
	return pulled, failed, nil
}

func (r *Reconciler) pullAttachments(ctx context.Context, claimIDs []string) (pulled, failed int, err error) {
	remotes, err := r.backend.ListAttachmentsForClaims(ctx, r.owner, claimIDs)
	if err != nil {
		return 0, 0, err
	}
	for _, a := range remotes {
		inserted, err := r.store.InsertRemoteAttachmentIfAbsent(ctx, a)
		if err != nil {
			r.log.Warn("pull failed", "kind", store.KindAttachment, "id", a.ID, "error", err)
			failed++
			continue
		}
		if inserted {
			pulled++
		}
	}
	return pulled, failed, nil
}

func (r *Reconciler) pullStatusChanges(ctx context.Context, claimIDs []string) (pulled, failed int, err error) {
	remotes, err := r.backend.ListStatusChangesForClaims(ctx, r.owner, claimIDs)
	if err != nil {
		return 0, 0, err
	}
	for _, sc := range remotes {
		inserted, err := r.store.InsertRemoteStatusChangeIfAbsent(ctx, sc)
		if err != nil {
			r.log.Warn("pull failed", "kind", store.KindStatusChange, "id", sc.ID, "error", err)
			failed++
			continue
		}
		if inserted {
			pulled++
		}
	}
	return pulled, failed, nil
}
