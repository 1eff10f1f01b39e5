package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// PCMStreamer runs an ffmpeg child process that turns the audio stream
// URL into raw s16le 48k stereo PCM on stdout.
type PCMStreamer struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	cancel context.CancelFunc
}

// StartPCMStream opens inputURL and applies the guild volume as an
// audio filter. volume is the scheduler's scale where 2.0 means 100%.
func StartPCMStream(ctx context.Context, inputURL string, volume float64) (*PCMStreamer, error) {
	ctx2, cancel := context.WithCancel(ctx)

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
		"-i", inputURL,
		"-vn",
		"-ac", "2",
		"-ar", "48000",
	}
	if volume > 0 {
		args = append(args, "-af", fmt.Sprintf("volume=%.3f", volume/2))
	}
	args = append(args, "-f", "s16le", "pipe:1")

	cmd := exec.CommandContext(ctx2, "ffmpeg", args...)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &PCMStreamer{cmd: cmd, stdout: stdout, stderr: &errBuf, cancel: cancel}, nil
}

func (p *PCMStreamer) Stdout() io.Reader { return p.stdout }

func (p *PCMStreamer) Close() {
	p.cancel()
	_ = p.stdout.Close()
	_ = p.cmd.Wait()
}

// Err surfaces whatever ffmpeg wrote to stderr, for logging.
func (p *PCMStreamer) Err() string { return p.stderr.String() }
