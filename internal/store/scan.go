package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sitevar/sitevar/internal/record"
)

// Timestamps are persisted as RFC 3339 UTC text with nanosecond precision.
const timeFormat = time.RFC3339Nano

func timeToDB(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func timeFromDB(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullStr converts an optional field to its driver value.
func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// locToCols splits an optional GeoPoint into its lat/lon/accuracy columns.
func locToCols(loc *record.GeoPoint) (lat, lon, acc any) {
	if loc == nil {
		return nil, nil, nil
	}
	return loc.Lat, loc.Lon, loc.AccuracyM
}

// locFromCols reassembles an optional GeoPoint. A point is present only
// when both coordinates are non-null.
func locFromCols(lat, lon, acc sql.NullFloat64) *record.GeoPoint {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &record.GeoPoint{Lat: lat.Float64, Lon: lon.Float64, AccuracyM: acc.Float64}
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(sc rowScanner) (record.Project, error) {
	var (
		p             record.Project
		address       sql.NullString
		lat, lon, acc sql.NullFloat64
		active        int
		created, upd  string
		sync          string
	)
	err := sc.Scan(&p.ID, &p.Name, &p.Client, &p.ReferenceCode, &address,
		&lat, &lon, &acc, &active, &created, &upd, &sync)
	if err != nil {
		return record.Project{}, err
	}
	p.Address = strPtr(address)
	p.Location = locFromCols(lat, lon, acc)
	p.Active = active != 0
	p.SyncStatus = record.SyncStatus(sync)
	if p.CreatedAt, err = timeFromDB(created); err != nil {
		return record.Project{}, err
	}
	if p.UpdatedAt, err = timeFromDB(upd); err != nil {
		return record.Project{}, err
	}
	return p, nil
}

func scanClaim(sc rowScanner) (record.Claim, error) {
	var (
		c                     record.Claim
		instructedBy, refDoc  sql.NullString
		notes                 sql.NullString
		lat, lon, acc         sql.NullFloat64
		captured, created, up string
		source, status, sync  string
	)
	err := sc.Scan(&c.ID, &c.ProjectID, &c.Seq, &c.Code, &c.Title, &c.Description,
		&source, &instructedBy, &refDoc, &c.EstimatedValue, &status,
		&captured, &lat, &lon, &acc, &c.EvidenceHash, &notes,
		&created, &up, &sync)
	if err != nil {
		return record.Claim{}, err
	}
	c.Source = record.InstructionSource(source)
	c.InstructedBy = strPtr(instructedBy)
	c.ReferenceDoc = strPtr(refDoc)
	c.Status = record.ClaimStatus(status)
	c.Location = locFromCols(lat, lon, acc)
	c.Notes = strPtr(notes)
	c.SyncStatus = record.SyncStatus(sync)
	if c.CapturedAt, err = timeFromDB(captured); err != nil {
		return record.Claim{}, err
	}
	if c.CreatedAt, err = timeFromDB(created); err != nil {
		return record.Claim{}, err
	}
	if c.UpdatedAt, err = timeFromDB(up); err != nil {
		return record.Claim{}, err
	}
	return c, nil
}

func scanPhoto(sc rowScanner) (record.Photo, error) {
	var (
		p             record.Photo
		remoteKey     sql.NullString
		lat, lon, acc sql.NullFloat64
		captured      string
		sync          string
	)
	err := sc.Scan(&p.ID, &p.ClaimID, &p.LocalPath, &remoteKey, &p.Digest,
		&captured, &lat, &lon, &acc, &p.Width, &p.Height, &sync)
	if err != nil {
		return record.Photo{}, err
	}
	p.RemoteKey = strPtr(remoteKey)
	p.Location = locFromCols(lat, lon, acc)
	p.SyncStatus = record.SyncStatus(sync)
	if p.CapturedAt, err = timeFromDB(captured); err != nil {
		return record.Photo{}, err
	}
	return p, nil
}

func scanVoiceNote(sc rowScanner) (record.VoiceNote, error) {
	var (
		v                 record.VoiceNote
		remoteKey, transc sql.NullString
		lat, lon, acc     sql.NullFloat64
		captured          string
		trStatus, sync    string
	)
	err := sc.Scan(&v.ID, &v.ClaimID, &v.LocalPath, &remoteKey, &v.Digest,
		&captured, &lat, &lon, &acc, &v.DurationSec, &transc, &trStatus, &sync)
	if err != nil {
		return record.VoiceNote{}, err
	}
	v.RemoteKey = strPtr(remoteKey)
	v.Location = locFromCols(lat, lon, acc)
	v.Transcription = strPtr(transc)
	v.TranscriptionStatus = record.TranscriptionStatus(trStatus)
	v.SyncStatus = record.SyncStatus(sync)
	if v.CapturedAt, err = timeFromDB(captured); err != nil {
		return record.VoiceNote{}, err
	}
	return v, nil
}

func scanAttachment(sc rowScanner) (record.Attachment, error) {
	var (
		a         record.Attachment
		remoteKey sql.NullString
		captured  string
		sync      string
	)
	err := sc.Scan(&a.ID, &a.ClaimID, &a.LocalPath, &remoteKey, &a.Digest,
		&captured, &a.FileName, &a.FileSize, &a.MIMEType, &sync)
	if err != nil {
		return record.Attachment{}, err
	}
	a.RemoteKey = strPtr(remoteKey)
	a.SyncStatus = record.SyncStatus(sync)
	if a.CapturedAt, err = timeFromDB(captured); err != nil {
		return record.Attachment{}, err
	}
	return a, nil
}

func scanStatusChange(sc rowScanner) (record.StatusChange, error) {
	var (
		sch        record.StatusChange
		from, note sql.NullString
		at         string
		to, sync   string
	)
	err := sc.Scan(&sch.ID, &sch.ClaimID, &from, &to, &sch.Actor, &at, &note, &sync)
	if err != nil {
		return record.StatusChange{}, err
	}
	if from.Valid {
		fs := record.ClaimStatus(from.String)
		sch.From = &fs
	}
	sch.To = record.ClaimStatus(to)
	sch.Note = strPtr(note)
	sch.SyncStatus = record.SyncStatus(sync)
	if sch.At, err = timeFromDB(at); err != nil {
		return record.StatusChange{}, err
	}
	return sch, nil
}
