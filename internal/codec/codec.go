package codec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Decoder is the opaque transcoding boundary: it turns one HEIC file into PNG
// bytes. The orchestration core never inspects pixels; it only dispatches and
// collects.
type Decoder interface {
	// Probe verifies the codec can run at all. Called once during engine
	// initialization.
	Probe(ctx context.Context) error
	// Convert decodes the file at sourcePath and returns the PNG payload.
	Convert(ctx context.Context, sourcePath string) ([]byte, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps an external heif-convert style binary.
type Client struct {
	binary  string
	quality int
	exec    Executor
}

// New constructs a codec client.
func New(binary string, quality int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("codec binary required")
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("codec quality out of range: %d", quality)
	}
	client := &Client{
		binary:  binary,
		quality: quality,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Probe confirms the binary is resolvable on PATH (or as a direct path).
func (c *Client) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsRune(c.binary, os.PathSeparator) {
		info, err := os.Stat(c.binary)
		if err != nil {
			return fmt.Errorf("codec binary %s: %w", c.binary, err)
		}
		if info.IsDir() {
			return fmt.Errorf("codec binary %s is a directory", c.binary)
		}
		return nil
	}
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("codec binary: %w", err)
	}
	return nil
}

// Convert runs the codec against sourcePath, writing into a scratch directory
// and returning the produced PNG bytes. The scratch directory is removed
// regardless of outcome.
func (c *Client) Convert(ctx context.Context, sourcePath string) ([]byte, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return nil, errors.New("source path required")
	}

	scratch, err := os.MkdirTemp("", "heifconv-codec-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	outPath := filepath.Join(scratch, "out.png")
	args := []string{"-q", strconv.Itoa(c.quality), sourcePath, outPath}
	if err := c.exec.Run(ctx, c.binary, args, nil); err != nil {
		return nil, fmt.Errorf("codec convert: %w", err)
	}

	payload, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("codec produced no output: %w", err)
	}
	if len(payload) == 0 {
		return nil, errors.New("codec produced empty output")
	}
	return payload, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...)

	if onStdout != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start %s: %w", binary, err)
		}
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			onStdout(scanner.Text())
		}
		if err := cmd.Wait(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("run %s: %w", binary, err)
		}
		return nil
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("run %s: %w: %s", binary, err, firstLine(detail))
		}
		return fmt.Errorf("run %s: %w", binary, err)
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
