package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sitevar/sitevar/internal/record"
)

// dynamoAPI is the subset of the DynamoDB client the backend needs.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Dynamo is the remote relational store: one single-table design with
// PK "OWNER#<owner>" and SK "<kind>#<id>". PutItem gives the
// upsert-by-identifier semantics the reconciler relies on. Rows carry the
// client-assigned updated_at; edits made offline keep their edit time, so
// last-write-wins compares when changes were made, not when they synced.
// The tradeoff: resolution trusts device clocks, and a device with a
// skewed clock can win or lose conflicts it should not. A server-stamped
// timestamp would remove the skew but would also make every offline edit
// lose to whichever device synced last.
type Dynamo struct {
	db    dynamoAPI
	table string
}

// NewDynamo creates a remote backend on the given table.
func NewDynamo(client *dynamodb.Client, table string) *Dynamo {
	return &Dynamo{db: client, table: table}
}

const wireTimeFormat = time.RFC3339Nano

func ownerPK(owner string) string { return "OWNER#" + owner }

func wireTime(t time.Time) string { return t.UTC().Format(wireTimeFormat) }

func parseWireTime(s string) (time.Time, error) {
	t, err := time.Parse(wireTimeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse remote timestamp %q: %w", s, err)
	}
	return t, nil
}

type geoItem struct {
	Lat       float64 `dynamodbav:"lat"`
	Lon       float64 `dynamodbav:"lon"`
	AccuracyM float64 `dynamodbav:"accuracy_m"`
}

func geoToItem(loc *record.GeoPoint) *geoItem {
	if loc == nil {
		return nil
	}
	return &geoItem{Lat: loc.Lat, Lon: loc.Lon, AccuracyM: loc.AccuracyM}
}

func geoFromItem(g *geoItem) *record.GeoPoint {
	if g == nil {
		return nil
	}
	return &record.GeoPoint{Lat: g.Lat, Lon: g.Lon, AccuracyM: g.AccuracyM}
}

type projectItem struct {
	PK            string   `dynamodbav:"PK"`
	SK            string   `dynamodbav:"SK"`
	ID            string   `dynamodbav:"id"`
	Name          string   `dynamodbav:"name"`
	Client        string   `dynamodbav:"client"`
	ReferenceCode string   `dynamodbav:"reference_code"`
	Address       *string  `dynamodbav:"address,omitempty"`
	Location      *geoItem `dynamodbav:"location,omitempty"`
	Active        bool     `dynamodbav:"active"`
	CreatedAt     string   `dynamodbav:"created_at"`
	UpdatedAt     string   `dynamodbav:"updated_at"`
}

type claimItem struct {
	PK             string   `dynamodbav:"PK"`
	SK             string   `dynamodbav:"SK"`
	ID             string   `dynamodbav:"id"`
	ProjectID      string   `dynamodbav:"project_id"`
	Seq            int64    `dynamodbav:"seq"`
	Code           string   `dynamodbav:"code"`
	Title          string   `dynamodbav:"title"`
	Description    string   `dynamodbav:"description"`
	Source         string   `dynamodbav:"source"`
	InstructedBy   *string  `dynamodbav:"instructed_by,omitempty"`
	ReferenceDoc   *string  `dynamodbav:"reference_doc,omitempty"`
	EstimatedValue int64    `dynamodbav:"estimated_value"`
	Status         string   `dynamodbav:"status"`
	CapturedAt     string   `dynamodbav:"captured_at"`
	Location       *geoItem `dynamodbav:"location,omitempty"`
	EvidenceHash   string   `dynamodbav:"evidence_hash"`
	Notes          *string  `dynamodbav:"notes,omitempty"`
	CreatedAt      string   `dynamodbav:"created_at"`
	UpdatedAt      string   `dynamodbav:"updated_at"`
}

type photoItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	ID         string   `dynamodbav:"id"`
	ClaimID    string   `dynamodbav:"claim_id"`
	LocalPath  string   `dynamodbav:"local_path"`
	RemoteKey  *string  `dynamodbav:"remote_key,omitempty"`
	Digest     string   `dynamodbav:"digest"`
	CapturedAt string   `dynamodbav:"captured_at"`
	Location   *geoItem `dynamodbav:"location,omitempty"`
	Width      int      `dynamodbav:"width"`
	Height     int      `dynamodbav:"height"`
}

type voiceNoteItem struct {
	PK                  string   `dynamodbav:"PK"`
	SK                  string   `dynamodbav:"SK"`
	ID                  string   `dynamodbav:"id"`
	ClaimID             string   `dynamodbav:"claim_id"`
	LocalPath           string   `dynamodbav:"local_path"`
	RemoteKey           *string  `dynamodbav:"remote_key,omitempty"`
	Digest              string   `dynamodbav:"digest"`
	CapturedAt          string   `dynamodbav:"captured_at"`
	Location            *geoItem `dynamodbav:"location,omitempty"`
	DurationSec         float64  `dynamodbav:"duration_sec"`
	Transcription       *string  `dynamodbav:"transcription,omitempty"`
	TranscriptionStatus string   `dynamodbav:"transcription_status"`
}

type attachmentItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	ID         string  `dynamodbav:"id"`
	ClaimID    string  `dynamodbav:"claim_id"`
	LocalPath  string  `dynamodbav:"local_path"`
	RemoteKey  *string `dynamodbav:"remote_key,omitempty"`
	Digest     string  `dynamodbav:"digest"`
	CapturedAt string  `dynamodbav:"captured_at"`
	FileName   string  `dynamodbav:"file_name"`
	FileSize   int64   `dynamodbav:"file_size"`
	MIMEType   string  `dynamodbav:"mime_type"`
}

type statusChangeItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	ID         string  `dynamodbav:"id"`
	ClaimID    string  `dynamodbav:"claim_id"`
	FromStatus *string `dynamodbav:"from_status,omitempty"`
	ToStatus   string  `dynamodbav:"to_status"`
	Actor      string  `dynamodbav:"actor"`
	At         string  `dynamodbav:"at"`
	Note       *string `dynamodbav:"note,omitempty"`
}

func (d *Dynamo) put(ctx context.Context, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// query pages through all items under one owner with the given SK prefix.
func (d *Dynamo) query(ctx context.Context, owner, skPrefix string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := d.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.table),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: ownerPK(owner)},
				":prefix": &types.AttributeValueMemberS{Value: skPrefix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", skPrefix, err)
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// UpsertProject upserts a project.
func (d *Dynamo) UpsertProject(ctx context.Context, owner string, p record.Project) error {
	return d.put(ctx, projectItem{
		PK:            ownerPK(owner),
		SK:            "project#" + p.ID,
		ID:            p.ID,
		Name:          p.Name,
		Client:        p.Client,
		ReferenceCode: p.ReferenceCode,
		Address:       p.Address,
		Location:      geoToItem(p.Location),
		Active:        p.Active,
		CreatedAt:     wireTime(p.CreatedAt),
		UpdatedAt:     wireTime(p.UpdatedAt),
	})
}

// UpsertClaim upserts a claim.
func (d *Dynamo) UpsertClaim(ctx context.Context, owner string, c record.Claim) error {
	return d.put(ctx, claimItem{
		PK:             ownerPK(owner),
		SK:             "claim#" + c.ID,
		ID:             c.ID,
		ProjectID:      c.ProjectID,
		Seq:            c.Seq,
		Code:           c.Code,
		Title:          c.Title,
		Description:    c.Description,
		Source:         string(c.Source),
		InstructedBy:   c.InstructedBy,
		ReferenceDoc:   c.ReferenceDoc,
		EstimatedValue: c.EstimatedValue,
		Status:         string(c.Status),
		CapturedAt:     wireTime(c.CapturedAt),
		Location:       geoToItem(c.Location),
		EvidenceHash:   c.EvidenceHash,
		Notes:          c.Notes,
		CreatedAt:      wireTime(c.CreatedAt),
		UpdatedAt:      wireTime(c.UpdatedAt),
	})
}

// UpsertPhoto upserts photo metadata. Photos are immutable; repeating the
// upsert writes identical content.
func (d *Dynamo) UpsertPhoto(ctx context.Context, owner string, p record.Photo) error {
	return d.put(ctx, photoItem{
		PK:         ownerPK(owner),
		SK:         "photo#" + p.ID,
		ID:         p.ID,
		ClaimID:    p.ClaimID,
		LocalPath:  p.LocalPath,
		RemoteKey:  p.RemoteKey,
		Digest:     p.Digest,
		CapturedAt: wireTime(p.CapturedAt),
		Location:   geoToItem(p.Location),
		Width:      p.Width,
		Height:     p.Height,
	})
}

// UpsertVoiceNote upserts voice note metadata, including the current
// transcription fields.
func (d *Dynamo) UpsertVoiceNote(ctx context.Context, owner string, v record.VoiceNote) error {
	return d.put(ctx, voiceNoteItem{
		PK:                  ownerPK(owner),
		SK:                  "voice#" + v.ID,
		ID:                  v.ID,
		ClaimID:             v.ClaimID,
		LocalPath:           v.LocalPath,
		RemoteKey:           v.RemoteKey,
		Digest:              v.Digest,
		CapturedAt:          wireTime(v.CapturedAt),
		Location:            geoToItem(v.Location),
		DurationSec:         v.DurationSec,
		Transcription:       v.Transcription,
		TranscriptionStatus: string(v.TranscriptionStatus),
	})
}

// UpsertAttachment upserts document attachment metadata.
func (d *Dynamo) UpsertAttachment(ctx context.Context, owner string, a record.Attachment) error {
	return d.put(ctx, attachmentItem{
		PK:         ownerPK(owner),
		SK:         "doc#" + a.ID,
		ID:         a.ID,
		ClaimID:    a.ClaimID,
		LocalPath:  a.LocalPath,
		RemoteKey:  a.RemoteKey,
		Digest:     a.Digest,
		CapturedAt: wireTime(a.CapturedAt),
		FileName:   a.FileName,
		FileSize:   a.FileSize,
		MIMEType:   a.MIMEType,
	})
}

// UpsertStatusChange upserts one append-only audit entry.
func (d *Dynamo) UpsertStatusChange(ctx context.Context, owner string, sc record.StatusChange) error {
	var from *string
	if sc.From != nil {
		s := string(*sc.From)
		from = &s
	}
	return d.put(ctx, statusChangeItem{
		PK:         ownerPK(owner),
		SK:         "status#" + sc.ID,
		ID:         sc.ID,
		ClaimID:    sc.ClaimID,
		FromStatus: from,
		ToStatus:   string(sc.To),
		Actor:      sc.Actor,
		At:         wireTime(sc.At),
		Note:       sc.Note,
	})
}

// ListProjects returns all of the owner's projects.
func (d *Dynamo) ListProjects(ctx context.Context, owner string) ([]record.Project, error) {
	items, err := d.query(ctx, owner, "project#")
	if err != nil {
		return nil, err
	}
	out := make([]record.Project, 0, len(items))
	for _, raw := range items {
		var it projectItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal project: %w", err)
		}
		p := record.Project{
			ID:            it.ID,
			Name:          it.Name,
			Client:        it.Client,
			ReferenceCode: it.ReferenceCode,
			Address:       it.Address,
			Location:      geoFromItem(it.Location),
			Active:        it.Active,
			SyncStatus:    record.SyncSynced,
		}
		if p.CreatedAt, err = parseWireTime(it.CreatedAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseWireTime(it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListClaims returns all of the owner's claims.
func (d *Dynamo) ListClaims(ctx context.Context, owner string) ([]record.Claim, error) {
	items, err := d.query(ctx, owner, "claim#")
	if err != nil {
		return nil, err
	}
	out := make([]record.Claim, 0, len(items))
	for _, raw := range items {
		var it claimItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal claim: %w", err)
		}
		c := record.Claim{
			ID:             it.ID,
			ProjectID:      it.ProjectID,
			Seq:            it.Seq,
			Code:           it.Code,
			Title:          it.Title,
			Description:    it.Description,
			Source:         record.InstructionSource(it.Source),
			InstructedBy:   it.InstructedBy,
			ReferenceDoc:   it.ReferenceDoc,
			EstimatedValue: it.EstimatedValue,
			Status:         record.ClaimStatus(it.Status),
			Location:       geoFromItem(it.Location),
			EvidenceHash:   it.EvidenceHash,
			Notes:          it.Notes,
			SyncStatus:     record.SyncSynced,
		}
		if c.CapturedAt, err = parseWireTime(it.CapturedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseWireTime(it.CreatedAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseWireTime(it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// claimIDSet builds a membership set for client-side filtering. The
// single-table layout cannot express "artifacts of these claims" in one
// key condition, so artifact listings fetch per-owner and filter here.
func claimIDSet(claimIDs []string) map[string]bool {
	set := make(map[string]bool, len(claimIDs))
	for _, id := range claimIDs {
		set[id] = true
	}
	return set
}

// ListPhotosForClaims returns the owner's photos scoped to the given claims.
func (d *Dynamo) ListPhotosForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.Photo, error) {
	items, err := d.query(ctx, owner, "photo#")
	if err != nil {
		return nil, err
	}
	want := claimIDSet(claimIDs)
	out := []record.Photo{}
	for _, raw := range items {
		var it photoItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal photo: %w", err)
		}
		if !want[it.ClaimID] {
			continue
		}
		p := record.Photo{
			ID:         it.ID,
			ClaimID:    it.ClaimID,
			LocalPath:  it.LocalPath,
			RemoteKey:  it.RemoteKey,
			Digest:     it.Digest,
			Location:   geoFromItem(it.Location),
			Width:      it.Width,
			Height:     it.Height,
			SyncStatus: record.SyncSynced,
		}
		if p.CapturedAt, err = parseWireTime(it.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListVoiceNotesForClaims returns the owner's voice notes scoped to the
// given claims.
func (d *Dynamo) ListVoiceNotesForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.VoiceNote, error) {
	items, err := d.query(ctx, owner, "voice#")
	if err != nil {
		return nil, err
	}
	want := claimIDSet(claimIDs)
	out := []record.VoiceNote{}
	for _, raw := range items {
		var it voiceNoteItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal voice note: %w", err)
		}
		if !want[it.ClaimID] {
			continue
		}
		v := record.VoiceNote{
			ID:                  it.ID,
			ClaimID:             it.ClaimID,
			LocalPath:           it.LocalPath,
			RemoteKey:           it.RemoteKey,
			Digest:              it.Digest,
			Location:            geoFromItem(it.Location),
			DurationSec:         it.DurationSec,
			Transcription:       it.Transcription,
			TranscriptionStatus: record.TranscriptionStatus(it.TranscriptionStatus),
			SyncStatus:          record.SyncSynced,
		}
		if v.CapturedAt, err = parseWireTime(it.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ListAttachmentsForClaims returns the owner's attachments scoped to the
// given claims.
func (d *Dynamo) ListAttachmentsForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.Attachment, error) {
	items, err := d.query(ctx, owner, "doc#")
	if err != nil {
		return nil, err
	}
	want := claimIDSet(claimIDs)
	out := []record.Attachment{}
	for _, raw := range items {
		var it attachmentItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal attachment: %w", err)
		}
		if !want[it.ClaimID] {
			continue
		}
		a := record.Attachment{
			ID:         it.ID,
			ClaimID:    it.ClaimID,
			LocalPath:  it.LocalPath,
			RemoteKey:  it.RemoteKey,
			Digest:     it.Digest,
			FileName:   it.FileName,
			FileSize:   it.FileSize,
			MIMEType:   it.MIMEType,
			SyncStatus: record.SyncSynced,
		}
		if a.CapturedAt, err = parseWireTime(it.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ListStatusChangesForClaims returns the owner's audit entries scoped to
// the given claims.
func (d *Dynamo) ListStatusChangesForClaims(ctx context.Context, owner string, claimIDs []string) ([]record.StatusChange, error) {
	items, err := d.query(ctx, owner, "status#")
	if err != nil {
		return nil, err
	}
	want := claimIDSet(claimIDs)
	out := []record.StatusChange{}
	for _, raw := range items {
		var it statusChangeItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal status change: %w", err)
		}
		if !want[it.ClaimID] {
			continue
		}
		sc := record.StatusChange{
			ID:         it.ID,
			ClaimID:    it.ClaimID,
			To:         record.ClaimStatus(it.ToStatus),
			Actor:      it.Actor,
			Note:       it.Note,
			SyncStatus: record.SyncSynced,
		}
		if it.FromStatus != nil {
			from := record.ClaimStatus(*it.FromStatus)
			sc.From = &from
		}
		if sc.At, err = parseWireTime(it.At); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}
