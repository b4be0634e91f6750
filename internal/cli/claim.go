package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitevar/sitevar/internal/evidence"
	"github.com/sitevar/sitevar/internal/export"
	"github.com/sitevar/sitevar/internal/lifecycle"
	"github.com/sitevar/sitevar/internal/record"
	"github.com/sitevar/sitevar/internal/store"
)

// NewClaimCommand creates the claim command group.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Capture and manage change claims",
	}
	cmd.AddCommand(newClaimCreateCommand(rootOpts))
	cmd.AddCommand(newClaimListCommand(rootOpts))
	cmd.AddCommand(newClaimShowCommand(rootOpts))
	cmd.AddCommand(newClaimStatusCommand(rootOpts))
	cmd.AddCommand(newClaimAttachCommand(rootOpts))
	return cmd
}

// ClaimCreateOptions holds flags for claim create.
type ClaimCreateOptions struct {
	*RootOptions
	Project      string
	Description  string
	Source       string
	InstructedBy string
	Reference    string
	Value        string
	Actor        string
	Notes        string
	Photos       []string
	VoiceNotes   []string
	Attachments  []string
	Lat          float64
	Lon          float64
	Accuracy     float64
}

func newClaimCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Capture a new claim",
		Long: `Capture a new claim with its initial evidence.

The claim, its artifacts, the evidence hash and the initial audit entry
are written in one transaction. Nothing here requires connectivity.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project id (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what changed and why")
	cmd.Flags().StringVar(&opts.Source, "source", string(record.SourceOther), "instruction source")
	cmd.Flags().StringVar(&opts.InstructedBy, "instructed-by", "", "who gave the instruction")
	cmd.Flags().StringVar(&opts.Reference, "reference-doc", "", "referenced document (SI number, RFI, drawing rev)")
	cmd.Flags().StringVar(&opts.Value, "value", "0", "estimated value, e.g. 1250.00")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "capturing user (required)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringArrayVar(&opts.Photos, "photo", nil, "photo file (repeatable)")
	cmd.Flags().StringArrayVar(&opts.VoiceNotes, "voice", nil, "voice note file (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Attachments, "doc", nil, "document file (repeatable)")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "capture latitude")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "capture longitude")
	cmd.Flags().Float64Var(&opts.Accuracy, "accuracy", 0, "GPS accuracy in meters")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runClaimCreate(opts *ClaimCreateOptions, title string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	value, err := export.ParseMoney(opts.Value)
	if err != nil {
		formatter.Error(ErrCodeInvalidArgs, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parsing value", err)
	}

	st, cfg, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now().UTC()
	var loc *record.GeoPoint
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		loc = &record.GeoPoint{Lat: opts.Lat, Lon: opts.Lon, AccuracyM: opts.Accuracy}
	}

	c := record.Claim{
		ProjectID:      opts.Project,
		Title:          title,
		Description:    opts.Description,
		Source:         record.InstructionSource(opts.Source),
		EstimatedValue: value,
		CapturedAt:     now,
		Location:       loc,
	}
	if opts.InstructedBy != "" {
		c.InstructedBy = &opts.InstructedBy
	}
	if opts.Reference != "" {
		c.ReferenceDoc = &opts.Reference
	}
	if opts.Notes != "" {
		c.Notes = &opts.Notes
	}

	var photos []record.Photo
	for _, path := range opts.Photos {
		photos = append(photos, record.Photo{
			LocalPath:  path,
			Digest:     fileDigest(formatter, path, now),
			CapturedAt: now,
			Location:   loc,
		})
	}
	var voiceNotes []record.VoiceNote
	for _, path := range opts.VoiceNotes {
		voiceNotes = append(voiceNotes, record.VoiceNote{
			LocalPath:  path,
			Digest:     fileDigest(formatter, path, now),
			CapturedAt: now,
			Location:   loc,
		})
	}
	var attachments []record.Attachment
	for _, path := range opts.Attachments {
		attachments = append(attachments, newAttachment(formatter, path, now))
	}

	if err := st.CreateClaim(cmd.Context(), &c, photos, voiceNotes, attachments, opts.Actor); err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "creating claim", err)
	}

	noteIDs := make([]string, 0, len(voiceNotes))
	for _, v := range voiceNotes {
		noteIDs = append(noteIDs, v.ID)
	}
	transcribeNotes(cmd.Context(), cfg, st, formatter, noteIDs)

	return formatter.SuccessText(
		fmt.Sprintf("Captured %s %s (%s)", c.Code, c.Title, c.ID),
		c,
	)
}

// fileDigest hashes an artifact file. Hash failures fall back to the
// degraded-capture sentinel so capture never blocks on a bad file.
func fileDigest(formatter *OutputFormatter, path string, capturedAt time.Time) string {
	digest, err := evidence.DigestFile(path)
	if err != nil {
		formatter.VerboseLog("hashing %s failed: %v", path, err)
		return evidence.FallbackDigest(capturedAt)
	}
	return digest
}

func newAttachment(formatter *OutputFormatter, path string, capturedAt time.Time) record.Attachment {
	a := record.Attachment{
		LocalPath:  path,
		Digest:     fileDigest(formatter, path, capturedAt),
		CapturedAt: capturedAt,
		FileName:   filepath.Base(path),
		MIMEType:   mime.TypeByExtension(filepath.Ext(path)),
	}
	if info, err := os.Stat(path); err == nil {
		a.FileSize = info.Size()
	}
	return a
}

func newClaimListCommand(rootOpts *RootOptions) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List claims for a project",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			st, _, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			claims, err := st.ListClaimsForProject(cmd.Context(), projectID)
			if err != nil {
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "listing claims", err)
			}
			return formatter.SuccessText(formatClaims(claims), claims)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func formatClaims(claims []record.Claim) string {
	if len(claims) == 0 {
		return "No claims."
	}
	var b strings.Builder
	for i, c := range claims {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-9s %-10s %10s  %s",
			c.ID, c.Code, c.Status, export.FormatMoney(c.EstimatedValue), c.Title)
	}
	return b.String()
}

func newClaimShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <claim-id>",
		Short:         "Show a claim with its evidence and history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			st, _, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			hc, err := st.GetHydratedClaim(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					formatter.Error(ErrCodeNotFound, "claim not found", args[0])
					return NewExitError(ExitCommandError, "claim not found")
				}
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "loading claim", err)
			}
			return formatter.SuccessText(formatHydratedClaim(hc), hc)
		},
	}
}

func formatHydratedClaim(hc store.HydratedClaim) string {
	var b strings.Builder
	c := hc.Claim
	fmt.Fprintf(&b, "%s  %s\n", c.Code, c.Title)
	fmt.Fprintf(&b, "  status:    %s\n", c.Status)
	fmt.Fprintf(&b, "  value:     %s\n", export.FormatMoney(c.EstimatedValue))
	fmt.Fprintf(&b, "  source:    %s\n", c.Source)
	fmt.Fprintf(&b, "  captured:  %s\n", c.CapturedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  evidence:  %s\n", c.EvidenceHash)
	fmt.Fprintf(&b, "  artifacts: %d photo(s), %d voice note(s), %d attachment(s)\n",
		len(hc.Photos), len(hc.VoiceNotes), len(hc.Attachments))
	fmt.Fprintf(&b, "  history:")
	for _, sc := range hc.History {
		from := "-"
		if sc.From != nil {
			from = string(*sc.From)
		}
		fmt.Fprintf(&b, "\n    %s  %s -> %s by %s", sc.At.Format(time.RFC3339), from, sc.To, sc.Actor)
	}
	return b.String()
}

// ClaimStatusOptions holds flags for claim status.
type ClaimStatusOptions struct {
	*RootOptions
	Actor string
	Role  string
	Note  string
}

func newClaimStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimStatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <claim-id> <new-status>",
		Short: "Move a claim through its lifecycle",
		Long: `Move a claim to a new lifecycle status.

Valid statuses: captured, submitted, approved, paid, disputed.
Illegal transitions are rejected; every successful transition is
recorded in the claim's audit trail.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimStatus(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "acting user (required)")
	cmd.Flags().StringVar(&opts.Role, "role", string(record.RoleManager), "actor role (field|manager)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note for the audit trail")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runClaimStatus(opts *ClaimStatusOptions, claimID, to string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, _, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	var note *string
	if opts.Note != "" {
		note = &opts.Note
	}

	engine := lifecycle.NewEngine(st)
	change, err := engine.TransitionAs(cmd.Context(), record.Role(opts.Role),
		claimID, record.ClaimStatus(to), opts.Actor, note)
	if err != nil {
		switch {
		case lifecycle.IsInvalidTransition(err):
			formatter.Error(ErrCodeTransition, err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid transition", err)
		case lifecycle.IsNotAuthorized(err):
			formatter.Error(ErrCodeTransition, err.Error(), nil)
			return WrapExitError(ExitFailure, "not authorized", err)
		case errors.Is(err, store.ErrNotFound):
			formatter.Error(ErrCodeNotFound, "claim not found", claimID)
			return NewExitError(ExitCommandError, "claim not found")
		default:
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "updating status", err)
		}
	}

	from := "-"
	if change.From != nil {
		from = string(*change.From)
	}
	return formatter.SuccessText(
		fmt.Sprintf("Claim %s: %s -> %s", claimID, from, change.To),
		change,
	)
}

// ClaimAttachOptions holds flags for claim attach.
type ClaimAttachOptions struct {
	*RootOptions
	Kind     string
	Lat      float64
	Lon      float64
	Accuracy float64
}

func newClaimAttachCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimAttachOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attach <claim-id> <file>",
		Short: "Add evidence to an existing claim",
		Long: `Add a photo, voice note or document to an existing claim.

The claim's evidence hash is recomputed to cover the new artifact and
the claim is queued for sync again.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimAttach(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "photo", "artifact kind (photo|voice|doc)")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "capture latitude")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "capture longitude")
	cmd.Flags().Float64Var(&opts.Accuracy, "accuracy", 0, "GPS accuracy in meters")

	return cmd
}

func runClaimAttach(opts *ClaimAttachOptions, claimID, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, cfg, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	now := time.Now().UTC()
	var loc *record.GeoPoint
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		loc = &record.GeoPoint{Lat: opts.Lat, Lon: opts.Lon, AccuracyM: opts.Accuracy}
	}

	var id string
	switch opts.Kind {
	case "photo":
		p := record.Photo{
			ClaimID:    claimID,
			LocalPath:  path,
			Digest:     fileDigest(formatter, path, now),
			CapturedAt: now,
			Location:   loc,
		}
		err = st.AddPhoto(ctx, &p)
		id = p.ID
	case "voice":
		v := record.VoiceNote{
			ClaimID:    claimID,
			LocalPath:  path,
			Digest:     fileDigest(formatter, path, now),
			CapturedAt: now,
			Location:   loc,
		}
		err = st.AddVoiceNote(ctx, &v)
		id = v.ID
		if err == nil {
			transcribeNotes(ctx, cfg, st, formatter, []string{v.ID})
		}
	case "doc":
		a := newAttachment(formatter, path, now)
		a.ClaimID = claimID
		err = st.AddAttachment(ctx, &a)
		id = a.ID
	default:
		formatter.Error(ErrCodeInvalidArgs, fmt.Sprintf("unknown kind %q", opts.Kind), nil)
		return NewExitError(ExitCommandError, "unknown artifact kind")
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			formatter.Error(ErrCodeNotFound, "claim not found", claimID)
			return NewExitError(ExitCommandError, "claim not found")
		}
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "attaching evidence", err)
	}

	return formatter.SuccessText(
		fmt.Sprintf("Attached %s %s to claim %s", opts.Kind, id, claimID),
		map[string]string{"id": id, "kind": opts.Kind, "claim_id": claimID},
	)
}
