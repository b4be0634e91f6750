// Package export renders a claim and its evidence bundle as JSON for
// submission outside the system (email to a quantity surveyor, upload to
// a contract portal). Output is deterministic for a given claim so that
// re-exports of unchanged claims are byte-identical.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sitevar/sitevar/internal/record"
	"github.com/sitevar/sitevar/internal/store"
)

type location struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	AccuracyM float64 `json:"accuracy_m"`
}

type projectSummary struct {
	Name          string `json:"name"`
	Client        string `json:"client"`
	ReferenceCode string `json:"reference_code"`
}

type claimDetail struct {
	Code           string    `json:"code"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Source         string    `json:"source"`
	InstructedBy   *string   `json:"instructed_by,omitempty"`
	ReferenceDoc   *string   `json:"reference_doc,omitempty"`
	EstimatedValue string    `json:"estimated_value"`
	Status         string    `json:"status"`
	CapturedAt     string    `json:"captured_at"`
	Location       *location `json:"location,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
}

type photoEntry struct {
	ID         string    `json:"id"`
	Digest     string    `json:"digest"`
	CapturedAt string    `json:"captured_at"`
	Location   *location `json:"location,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
}

type voiceNoteEntry struct {
	ID            string  `json:"id"`
	Digest        string  `json:"digest"`
	CapturedAt    string  `json:"captured_at"`
	DurationSec   float64 `json:"duration_sec"`
	Transcription *string `json:"transcription,omitempty"`
}

type attachmentEntry struct {
	ID         string `json:"id"`
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	MIMEType   string `json:"mime_type"`
	Digest     string `json:"digest"`
	CapturedAt string `json:"captured_at"`
}

type evidenceSection struct {
	Hash        string            `json:"hash"`
	Photos      []photoEntry      `json:"photos,omitempty"`
	VoiceNotes  []voiceNoteEntry  `json:"voice_notes,omitempty"`
	Attachments []attachmentEntry `json:"attachments,omitempty"`
}

type historyEntry struct {
	From  *string `json:"from,omitempty"`
	To    string  `json:"to"`
	Actor string  `json:"actor"`
	At    string  `json:"at"`
	Note  *string `json:"note,omitempty"`
}

// Bundle is the exported document.
type Bundle struct {
	GeneratedAt string          `json:"generated_at"`
	Project     projectSummary  `json:"project"`
	Claim       claimDetail     `json:"claim"`
	Evidence    evidenceSection `json:"evidence"`
	History     []historyEntry  `json:"history"`
}

// FormatMoney renders minor currency units as a decimal string,
// e.g. 125000 -> "1250.00".
func FormatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseMoney parses a decimal string into minor currency units,
// e.g. "1250.00" -> 125000. At most two decimal places are accepted.
func ParseMoney(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	minor := units*100 + cents
	if neg {
		minor = -minor
	}
	return minor, nil
}

func exportTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func exportLoc(loc *record.GeoPoint) *location {
	if loc == nil {
		return nil
	}
	return &location{Lat: loc.Lat, Lon: loc.Lon, AccuracyM: loc.AccuracyM}
}

// Render builds the export bundle for one claim and marshals it as
// indented JSON. Artifact and history ordering follows the store's
// listing order (capture time, then id), so output is stable.
func Render(project record.Project, hc store.HydratedClaim, generatedAt time.Time) ([]byte, error) {
	b := Bundle{
		GeneratedAt: exportTime(generatedAt),
		Project: projectSummary{
			Name:          project.Name,
			Client:        project.Client,
			ReferenceCode: project.ReferenceCode,
		},
		Claim: claimDetail{
			Code:           hc.Claim.Code,
			Title:          hc.Claim.Title,
			Description:    hc.Claim.Description,
			Source:         string(hc.Claim.Source),
			InstructedBy:   hc.Claim.InstructedBy,
			ReferenceDoc:   hc.Claim.ReferenceDoc,
			EstimatedValue: FormatMoney(hc.Claim.EstimatedValue),
			Status:         string(hc.Claim.Status),
			CapturedAt:     exportTime(hc.Claim.CapturedAt),
			Location:       exportLoc(hc.Claim.Location),
			Notes:          hc.Claim.Notes,
		},
		Evidence: evidenceSection{Hash: hc.Claim.EvidenceHash},
	}

	for _, p := range hc.Photos {
		b.Evidence.Photos = append(b.Evidence.Photos, photoEntry{
			ID:         p.ID,
			Digest:     p.Digest,
			CapturedAt: exportTime(p.CapturedAt),
			Location:   exportLoc(p.Location),
			Width:      p.Width,
			Height:     p.Height,
		})
	}
	for _, v := range hc.VoiceNotes {
		b.Evidence.VoiceNotes = append(b.Evidence.VoiceNotes, voiceNoteEntry{
			ID:            v.ID,
			Digest:        v.Digest,
			CapturedAt:    exportTime(v.CapturedAt),
			DurationSec:   v.DurationSec,
			Transcription: v.Transcription,
		})
	}
	for _, a := range hc.Attachments {
		b.Evidence.Attachments = append(b.Evidence.Attachments, attachmentEntry{
			ID:         a.ID,
			FileName:   a.FileName,
			FileSize:   a.FileSize,
			MIMEType:   a.MIMEType,
			Digest:     a.Digest,
			CapturedAt: exportTime(a.CapturedAt),
		})
	}
	for _, sc := range hc.History {
		entry := historyEntry{
			To:    string(sc.To),
			Actor: sc.Actor,
			At:    exportTime(sc.At),
			Note:  sc.Note,
		}
		if sc.From != nil {
			from := string(*sc.From)
			entry.From = &from
		}
		b.History = append(b.History, entry)
	}

	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}
	return append(out, '\n'), nil
}
