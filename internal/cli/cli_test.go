package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitevar/sitevar/internal/record"
)

// writeTestConfig points the CLI at a temp database and returns the
// config path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "db_path: " + filepath.Join(dir, "claims.db") + "\nowner: test-owner\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// runJSON executes the CLI in JSON mode and decodes the response.
func runJSON(t *testing.T, configPath string, args ...string) CLIResponse {
	t.Helper()
	out, err := run(t, configPath, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func dataField(t *testing.T, resp CLIResponse, key string) string {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %v", resp.Data)
	v, ok := m[key].(string)
	require.True(t, ok, "missing field %s in %v", key, m)
	return v
}

func TestCLI_Init(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := run(t, cfg, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Database ready")
}

func TestCLI_CaptureFlow(t *testing.T) {
	cfg := writeTestConfig(t)

	resp := runJSON(t, cfg, "project", "create", "Riverside Tower",
		"--client", "Acme Build", "--reference", "RT-01")
	require.Equal(t, "ok", resp.Status)
	projectID := dataField(t, resp, "ID")

	photo := filepath.Join(t.TempDir(), "slab.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))

	resp = runJSON(t, cfg, "claim", "create", "Extra waterproofing",
		"--project", projectID,
		"--source", string(record.SourceSiteInstruction),
		"--value", "1250.00",
		"--actor", "a.mason",
		"--photo", photo)
	require.Equal(t, "ok", resp.Status)
	claimID := dataField(t, resp, "ID")
	assert.Equal(t, "VO-001", dataField(t, resp, "Code"))

	// Capture is visible in listings and carries its evidence.
	out, err := run(t, cfg, "claim", "list", "--project", projectID)
	require.NoError(t, err)
	assert.Contains(t, out, "VO-001")
	assert.Contains(t, out, "1250.00")

	out, err = run(t, cfg, "claim", "show", claimID)
	require.NoError(t, err)
	assert.Contains(t, out, "sha256:")
	assert.Contains(t, out, "1 photo(s)")

	// Everything awaits sync.
	out, err = run(t, cfg, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "4 record(s) pending")
}

func TestCLI_StatusTransitions(t *testing.T) {
	cfg := writeTestConfig(t)

	resp := runJSON(t, cfg, "project", "create", "P")
	projectID := dataField(t, resp, "ID")
	resp = runJSON(t, cfg, "claim", "create", "C",
		"--project", projectID, "--actor", "a.mason")
	claimID := dataField(t, resp, "ID")

	out, err := run(t, cfg, "claim", "status", claimID, "submitted", "--actor", "a.mason")
	require.NoError(t, err)
	assert.Contains(t, out, "captured -> submitted")

	// paid straight from submitted is illegal.
	_, err = run(t, cfg, "claim", "status", claimID, "paid", "--actor", "a.mason")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// Field role may not approve.
	_, err = run(t, cfg, "claim", "status", claimID, "approved",
		"--actor", "b.field", "--role", "field")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err = run(t, cfg, "claim", "status", claimID, "approved", "--actor", "m.boss")
	require.NoError(t, err)
	assert.Contains(t, out, "submitted -> approved")
}

func TestCLI_Export(t *testing.T) {
	cfg := writeTestConfig(t)

	resp := runJSON(t, cfg, "project", "create", "P", "--client", "C", "--reference", "R-1")
	projectID := dataField(t, resp, "ID")
	resp = runJSON(t, cfg, "claim", "create", "Roof repairs",
		"--project", projectID, "--actor", "a.mason", "--value", "99.95")
	claimID := dataField(t, resp, "ID")

	out, err := run(t, cfg, "export", claimID)
	require.NoError(t, err)

	var bundle map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))
	claim := bundle["claim"].(map[string]any)
	assert.Equal(t, "Roof repairs", claim["title"])
	assert.Equal(t, "99.95", claim["estimated_value"])

	outFile := filepath.Join(t.TempDir(), "bundle.json")
	_, err = run(t, cfg, "export", claimID, "-o", outFile)
	require.NoError(t, err)
	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(written), "Roof repairs")
}

func TestCLI_Attach(t *testing.T) {
	cfg := writeTestConfig(t)

	resp := runJSON(t, cfg, "project", "create", "P")
	projectID := dataField(t, resp, "ID")
	resp = runJSON(t, cfg, "claim", "create", "C",
		"--project", projectID, "--actor", "a.mason")
	claimID := dataField(t, resp, "ID")

	doc := filepath.Join(t.TempDir(), "instruction.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4"), 0o644))

	out, err := run(t, cfg, "claim", "attach", claimID, doc, "--kind", "doc")
	require.NoError(t, err)
	assert.Contains(t, out, "Attached doc")

	out, err = run(t, cfg, "claim", "show", claimID)
	require.NoError(t, err)
	assert.Contains(t, out, "1 attachment(s)")
}

func TestCLI_ProjectArchive(t *testing.T) {
	cfg := writeTestConfig(t)

	resp := runJSON(t, cfg, "project", "create", "Old Site")
	projectID := dataField(t, resp, "ID")

	_, err := run(t, cfg, "project", "archive", projectID)
	require.NoError(t, err)

	out, err := run(t, cfg, "project", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Old Site")

	out, err = run(t, cfg, "project", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Old Site")
	assert.Contains(t, out, "[archived]")
}

func TestCLI_SyncUnconfigured(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg,
		[]byte("db_path: "+filepath.Join(dir, "claims.db")+"\n"), 0o644))
	t.Setenv("SITEVAR_OWNER", "")
	t.Setenv("SITEVAR_BUCKET", "")
	t.Setenv("SITEVAR_TABLE", "")

	_, err := run(t, cfg, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCLI_SyncOfflineSkipsPass(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	content := "db_path: " + filepath.Join(dir, "claims.db") + "\n" +
		"owner: test-owner\n" +
		"aws:\n  region: eu-west-2\n  bucket: evidence\n  table: claims\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))

	_, err := run(t, cfg, "sync", "--offline")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no connectivity")
}

func TestCLI_VoiceNoteTranscribedOnCapture(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	content := "db_path: " + filepath.Join(dir, "claims.db") + "\n" +
		"owner: test-owner\n" +
		"transcribe_cmd: echo field memo\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))

	resp := runJSON(t, cfg, "project", "create", "Riverside Tower",
		"--client", "Acme Build", "--reference", "RT-01")
	projectID := dataField(t, resp, "ID")

	voice := filepath.Join(dir, "note.m4a")
	require.NoError(t, os.WriteFile(voice, []byte("audio"), 0o644))

	resp = runJSON(t, cfg, "claim", "create", "Verbal instruction",
		"--project", projectID, "--actor", "a.mason", "--voice", voice)
	claimID := dataField(t, resp, "ID")

	// The capture handed the note to the transcriber before returning,
	// so the exported bundle already carries the transcript.
	out, err := run(t, cfg, "export", claimID)
	require.NoError(t, err)
	assert.Contains(t, out, "field memo "+voice)
}
