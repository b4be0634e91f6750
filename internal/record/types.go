// Package record defines the entity types persisted by the local store
// and exchanged with the remote backend.
package record

import (
	"fmt"
	"time"
)

// SyncStatus governs a row's eligibility for reconciliation.
// Every local write outside of reconciliation resets it to SyncPending.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// ClaimStatus is the lifecycle state of a claim. Transitions are enforced
// by the lifecycle package; nothing else should mutate a claim's status.
type ClaimStatus string

const (
	StatusCaptured  ClaimStatus = "captured"
	StatusSubmitted ClaimStatus = "submitted"
	StatusApproved  ClaimStatus = "approved"
	StatusPaid      ClaimStatus = "paid"
	StatusDisputed  ClaimStatus = "disputed"
)

// Valid reports whether s is a known claim status.
func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusCaptured, StatusSubmitted, StatusApproved, StatusPaid, StatusDisputed:
		return true
	}
	return false
}

// InstructionSource categorizes where the instruction behind a claim came from.
type InstructionSource string

const (
	SourceSiteInstruction InstructionSource = "site_instruction"
	SourceVerbalDirection InstructionSource = "verbal_direction"
	SourceRFIResponse     InstructionSource = "rfi_response"
	SourceDrawingRevision InstructionSource = "drawing_revision"
	SourceLatentCondition InstructionSource = "latent_condition"
	SourceDelayClaim      InstructionSource = "delay_claim"
	SourceEmail           InstructionSource = "email"
	SourceOther           InstructionSource = "other"
)

// Valid reports whether s is a known instruction source.
func (s InstructionSource) Valid() bool {
	switch s {
	case SourceSiteInstruction, SourceVerbalDirection, SourceRFIResponse,
		SourceDrawingRevision, SourceLatentCondition, SourceDelayClaim,
		SourceEmail, SourceOther:
		return true
	}
	return false
}

// TranscriptionStatus tracks the one-shot transcription state machine of a
// voice note: none -> pending -> complete|failed. No re-transcription.
type TranscriptionStatus string

const (
	TranscriptionNone     TranscriptionStatus = "none"
	TranscriptionPending  TranscriptionStatus = "pending"
	TranscriptionComplete TranscriptionStatus = "complete"
	TranscriptionFailed   TranscriptionStatus = "failed"
)

// Role identifies an actor's authorization level for lifecycle transitions.
type Role string

const (
	// RoleField is the restricted on-site role. Field actors may only
	// submit captured claims.
	RoleField Role = "field"
	// RoleManager may perform any valid transition.
	RoleManager Role = "manager"
)

// GeoPoint is a captured GPS fix. AccuracyM is the reported horizontal
// accuracy in meters (0 when the platform did not provide one).
type GeoPoint struct {
	Lat       float64
	Lon       float64
	AccuracyM float64
}

// Project is a contract or worksite. Projects are archived (Active=false)
// rather than deleted in the canonical flow.
type Project struct {
	ID            string
	Name          string
	Client        string
	ReferenceCode string
	Address       *string
	Location      *GeoPoint
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SyncStatus    SyncStatus
}

// Claim is a single change-order (variation) record.
//
// EstimatedValue is in minor currency units (cents) and is never negative.
// Seq is unique and contiguous per project at assignment time; Code is
// derived from it. EvidenceHash is the composite digest over the claim's
// artifacts plus its capture timestamp and coordinates.
type Claim struct {
	ID             string
	ProjectID      string
	Seq            int64
	Code           string
	Title          string
	Description    string
	Source         InstructionSource
	InstructedBy   *string
	ReferenceDoc   *string
	EstimatedValue int64
	Status         ClaimStatus
	CapturedAt     time.Time
	Location       *GeoPoint
	EvidenceHash   string
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SyncStatus     SyncStatus
}

// Photo is a captured photograph owned by exactly one claim.
// Immutable after creation.
type Photo struct {
	ID         string
	ClaimID    string
	LocalPath  string
	RemoteKey  *string
	Digest     string
	CapturedAt time.Time
	Location   *GeoPoint
	Width      int
	Height     int
	SyncStatus SyncStatus
}

// VoiceNote is a captured voice recording owned by exactly one claim.
// Immutable after creation except for the transcription fields.
type VoiceNote struct {
	ID                  string
	ClaimID             string
	LocalPath           string
	RemoteKey           *string
	Digest              string
	CapturedAt          time.Time
	Location            *GeoPoint
	DurationSec         float64
	Transcription       *string
	TranscriptionStatus TranscriptionStatus
	SyncStatus          SyncStatus
}

// Attachment is a document file owned by exactly one claim.
// Immutable after creation.
type Attachment struct {
	ID         string
	ClaimID    string
	LocalPath  string
	RemoteKey  *string
	Digest     string
	CapturedAt time.Time
	FileName   string
	FileSize   int64
	MIMEType   string
	SyncStatus SyncStatus
}

// StatusChange is one append-only audit trail entry. From is nil for the
// initial entry written at claim creation. Rows are never updated or deleted.
type StatusChange struct {
	ID         string
	ClaimID    string
	From       *ClaimStatus
	To         ClaimStatus
	Actor      string
	At         time.Time
	Note       *string
	SyncStatus SyncStatus
}

// ClaimCode derives the human-readable claim code from a per-project
// sequence number, e.g. seq 7 -> "VO-007".
func ClaimCode(seq int64) string {
	return fmt.Sprintf("VO-%03d", seq)
}
