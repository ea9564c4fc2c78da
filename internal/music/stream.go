package music

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// FFmpegOpener implements StreamOpener by transcoding a remote stream URL
// into an ogg/opus pipe. Volume is applied with an ffmpeg audio filter and
// the offset maps to -ss, which is how a volume change restarts playback at
// the same position.
type FFmpegOpener struct {
	logger *slog.Logger
}

// NewFFmpegOpener builds a StreamOpener backed by the ffmpeg binary.
func NewFFmpegOpener(logger *slog.Logger) *FFmpegOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegOpener{logger: logger}
}

func (f *FFmpegOpener) Open(ctx context.Context, streamURL string, volumePercent int, offset time.Duration) (AudioStream, error) {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
	}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset.Seconds()))
	}
	args = append(args,
		"-i", streamURL,
		"-af", fmt.Sprintf("volume=%.2f", float64(volumePercent)/100.0),
		"-c:a", "libopus",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "96k",
		"-vbr", "on",
		"-frame_duration", "20",
		"-application", "audio",
		"-f", "ogg",
		"-loglevel", "warning",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go f.drainStderr(stderr)

	return &ffmpegStream{
		cmd:    cmd,
		stdout: stdout,
		ogg:    newOggPacketReader(stdout),
	}, nil
}

func (f *FFmpegOpener) drainStderr(stderr io.Reader) {
	reader := bufio.NewReader(stderr)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			f.logger.Debug("ffmpeg", "output", line)
		}
		if err != nil {
			return
		}
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	ogg    *oggPacketReader
}

func (s *ffmpegStream) NextPacket() ([]byte, error) {
	return s.ogg.NextPacket()
}

func (s *ffmpegStream) Close() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}
