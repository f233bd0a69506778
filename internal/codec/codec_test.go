package codec

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

type fakeExecutor struct {
	lastBinary string
	lastArgs   []string
	run        func(ctx context.Context, args []string) error
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	f.lastBinary = binary
	f.lastArgs = args
	if f.run != nil {
		return f.run(ctx, args)
	}
	return nil
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New("", 100); err == nil {
		t.Fatal("expected error for empty binary")
	}
	if _, err := New("heif-convert", 0); err == nil {
		t.Fatal("expected error for quality 0")
	}
	if _, err := New("heif-convert", 101); err == nil {
		t.Fatal("expected error for quality 101")
	}
}

func TestConvertBuildsCommandAndReadsOutput(t *testing.T) {
	exec := &fakeExecutor{}
	exec.run = func(ctx context.Context, args []string) error {
		// Last argument is the output path; emulate the codec writing it.
		return os.WriteFile(args[len(args)-1], []byte("png-bytes"), 0o644)
	}
	client, err := New("heif-convert", 90, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payload, err := client.Convert(context.Background(), "/photos/in.heic")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if string(payload) != "png-bytes" {
		t.Fatalf("unexpected payload: %q", payload)
	}
	if exec.lastBinary != "heif-convert" {
		t.Fatalf("unexpected binary: %q", exec.lastBinary)
	}
	if len(exec.lastArgs) != 4 || exec.lastArgs[0] != "-q" || exec.lastArgs[1] != "90" || exec.lastArgs[2] != "/photos/in.heic" {
		t.Fatalf("unexpected args: %v", exec.lastArgs)
	}
	if !strings.HasSuffix(exec.lastArgs[3], "out.png") {
		t.Fatalf("unexpected output arg: %q", exec.lastArgs[3])
	}
}

func TestConvertPropagatesExecutorError(t *testing.T) {
	wantErr := errors.New("decode blew up")
	exec := &fakeExecutor{run: func(ctx context.Context, args []string) error { return wantErr }}
	client, err := New("heif-convert", 100, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := client.Convert(context.Background(), "/photos/in.heic"); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped executor error, got %v", err)
	}
}

func TestConvertFailsWhenCodecWritesNothing(t *testing.T) {
	client, err := New("heif-convert", 100, WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.Convert(context.Background(), "/photos/in.heic"); err == nil {
		t.Fatal("expected error when no output file appears")
	}
}

func TestConvertRequiresSourcePath(t *testing.T) {
	client, err := New("heif-convert", 100, WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.Convert(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank source path")
	}
}

func TestProbeMissingBinary(t *testing.T) {
	client, err := New("definitely-not-a-real-binary", 100)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := client.Probe(context.Background()); err == nil {
		t.Fatal("expected probe failure for missing binary")
	}
}
