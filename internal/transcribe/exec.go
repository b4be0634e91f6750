package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandTranscriber shells out to an external speech-to-text program.
// The command is run with the recording's path appended as the last
// argument and its stdout, trimmed, becomes the transcript. A non-zero
// exit is a transcription failure.
type CommandTranscriber struct {
	Name string
	Args []string
}

// NewCommandTranscriber parses a whitespace-separated command line.
func NewCommandTranscriber(cmdline string) (*CommandTranscriber, error) {
	words := strings.Fields(cmdline)
	if len(words) == 0 {
		return nil, errors.New("transcriber command is empty")
	}
	return &CommandTranscriber{Name: words[0], Args: words[1:]}, nil
}

func (c *CommandTranscriber) Transcribe(ctx context.Context, localPath string) (string, error) {
	args := make([]string, 0, len(c.Args)+1)
	args = append(args, c.Args...)
	args = append(args, localPath)
	out, err := exec.CommandContext(ctx, c.Name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", localPath, err)
	}
	return strings.TrimSpace(string(out)), nil
}
