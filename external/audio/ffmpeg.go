package audio

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/seajon16/sassbot/internal/audio"
)

// FFmpegOpener transcodes any input ffmpeg understands into the raw
// signed 16-bit little-endian PCM stream the voice pipeline consumes.
type FFmpegOpener struct {
	// binary overrides the ffmpeg executable name, for tests.
	binary string
}

func NewFFmpegOpener() *FFmpegOpener {
	return &FFmpegOpener{binary: "ffmpeg"}
}

func (o *FFmpegOpener) OpenFile(path string) (audio.Source, error) {
	return o.open(path, audio.StreamOptions{})
}

func (o *FFmpegOpener) OpenStream(url string, opts audio.StreamOptions) (audio.Source, error) {
	return o.open(url, opts)
}

func (o *FFmpegOpener) open(input string, opts audio.StreamOptions) (audio.Source, error) {
	args := make([]string, 0, 16)
	if opts.Reconnect {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	if opts.StartAt > 0 {
		args = append(args, "-ss", formatSeekPosition(opts.StartAt))
	}
	args = append(args,
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	cmd := exec.Command(o.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return &processSource{reader: stdout, cmd: cmd}, nil
}

// processSource reads PCM from a transcoder child process and kills it
// when playback releases the source.
type processSource struct {
	reader io.ReadCloser
	cmd    *exec.Cmd
}

func (s *processSource) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *processSource) Close() error {
	s.reader.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	// Reap the child so it cannot linger as a zombie. A kill here is
	// expected, so the exit status is not an error worth reporting.
	s.cmd.Wait()
	return nil
}

func formatSeekPosition(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
