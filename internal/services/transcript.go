package services

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// NativeHost invokes an external helper process to resolve video transcripts. The
// helper speaks the Chrome native-messaging framing: a 4-byte little-endian length
// followed by a JSON payload, in both directions. The helper itself is an opaque black
// box; it answers {"video_id": ...} with {"text": ...}, where a text starting with
// "Error" is an error reply.
type NativeHost struct {
	command string
	args    []string

	logger *slog.Logger
}

type transcriptRequest struct {
	VideoID string `json:"video_id"`
}

type transcriptResponse struct {
	Text string `json:"text"`
}

const (
	errorReplyPrefix = "Error"

	maxNativeMessageSize = 32 << 20
)

// NewNativeHost creates a NativeHost running the given helper command.
func NewNativeHost(command string, args []string, logger *slog.Logger) NativeHost {
	return NativeHost{
		command: command,
		args:    args,
		logger:  logger.With(slog.String("module", "transcript")),
	}
}

// Transcript runs the helper process and returns the transcript for videoID. Error
// replies, empty replies, and helper failures all resolve to an error; the caller is
// responsible for converting it to a user-facing message.
func (h NativeHost) Transcript(ctx context.Context, videoID string) (string, error) {
	if h.command == "" {
		return "", errors.New("transcript helper command is not configured")
	}

	cmd := exec.CommandContext(ctx, h.command, h.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open helper stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start transcript helper: %w", err)
	}

	text, err := h.exchange(stdin, stdout, videoID)

	// The helper loops until its stdin closes, so close before reaping it.
	_ = stdin.Close()
	if waitErr := cmd.Wait(); waitErr != nil {
		h.logger.Warn("Transcript helper exited with error", slog.String("err", waitErr.Error()))
	}

	return text, err
}

func (h NativeHost) exchange(stdin io.Writer, stdout io.Reader, videoID string) (string, error) {
	if err := writeNativeMessage(stdin, transcriptRequest{VideoID: videoID}); err != nil {
		return "", fmt.Errorf("failed to send request to transcript helper: %w", err)
	}

	var resp transcriptResponse
	if err := readNativeMessage(stdout, &resp); err != nil {
		return "", fmt.Errorf("failed to read transcript helper response: %w", err)
	}

	if resp.Text == "" {
		return "", errors.New("no transcript received")
	}
	if strings.HasPrefix(resp.Text, errorReplyPrefix) {
		return "", errors.New(resp.Text)
	}

	return resp.Text, nil
}

func writeNativeMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readNativeMessage(r io.Reader, v any) error {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return err
	}

	size := binary.LittleEndian.Uint32(length[:])
	if size > maxNativeMessageSize {
		return fmt.Errorf("native message of %d bytes exceeds limit", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}
