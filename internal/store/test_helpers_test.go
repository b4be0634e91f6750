package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sitevar/sitevar/internal/evidence"
	"github.com/sitevar/sitevar/internal/record"
)

// createTestStore creates a file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProject inserts a project and returns it.
func createTestProject(t *testing.T, s *Store, name string) record.Project {
	t.Helper()
	p := record.Project{
		Name:          name,
		Client:        "BuildCorp",
		ReferenceCode: "BC-2025",
	}
	if err := s.CreateProject(context.Background(), &p); err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return p
}

// testPhoto builds a photo draft whose digest covers the given content.
func testPhoto(content string) record.Photo {
	return record.Photo{
		LocalPath:  "/captures/" + content + ".jpg",
		Digest:     evidence.DigestBytes([]byte(content)),
		CapturedAt: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		Width:      4032,
		Height:     3024,
	}
}

// testVoiceNote builds a voice note draft whose digest covers the content.
func testVoiceNote(content string) record.VoiceNote {
	return record.VoiceNote{
		LocalPath:   "/captures/" + content + ".m4a",
		Digest:      evidence.DigestBytes([]byte(content)),
		CapturedAt:  time.Date(2025, 3, 14, 9, 1, 0, 0, time.UTC),
		DurationSec: 12.5,
	}
}

// createTestClaim inserts a claim with the given artifacts.
func createTestClaim(t *testing.T, s *Store, projectID, title string,
	photos []record.Photo, notes []record.VoiceNote) record.Claim {
	t.Helper()
	c := record.Claim{
		ProjectID:      projectID,
		Title:          title,
		Source:         record.SourceSiteInstruction,
		EstimatedValue: 150000,
		CapturedAt:     time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
	if err := s.CreateClaim(context.Background(), &c, photos, notes, nil, "tester"); err != nil {
		t.Fatalf("CreateClaim() failed: %v", err)
	}
	return c
}
