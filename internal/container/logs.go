package container

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/midoriai/agents-runner/internal/logging"
)

// LogLine is one wrapped, canonical-format line from a container's
// combined stdout/stderr stream.
type LogLine struct {
	Text string
	Err  error // non-nil on the final line of a stream that ended abnormally
}

// LogsFollow returns a channel of wrapped log lines for the container,
// starting from the last `tail` lines (0 = from the beginning). The
// stream is a lazy, single-pass, restartable read: cancelling ctx stops
// the tail process and closes the channel within one poll interval.
func (d *Driver) LogsFollow(ctx context.Context, id string, tail int) (<-chan LogLine, error) {
	args := []string{"logs", "-f"}
	if tail > 0 {
		args = append(args, "--tail", fmt.Sprintf("%d", tail))
	}
	args = append(args, id)

	cmd := d.cmd(ctx, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("logs follow: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("logs follow: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("logs follow: start: %w", err)
	}

	ch := make(chan LogLine)
	done := make(chan struct{}, 2)

	pump := func(r io.Reader, stream string) {
		defer func() { done <- struct{}{} }()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case ch <- LogLine{Text: logging.ContainerLine(id, stream, scanner.Text())}:
			case <-ctx.Done():
				return
			}
		}
	}

	go pump(stdout, "stdout")
	go pump(stderr, "stderr")

	go func() {
		<-done
		<-done
		_ = cmd.Wait()
		close(ch)
	}()

	return ch, nil
}
