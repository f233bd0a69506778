package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"heifconv/internal/engine"
	"heifconv/internal/logging"
	"heifconv/internal/testsupport"
)

func collectUntil(t *testing.T, messages <-chan engine.Message, want engine.Kind) engine.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				t.Fatalf("message channel closed while waiting for %s", want)
			}
			if msg.Kind == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestInitializeEmitsInitComplete(t *testing.T) {
	eng := engine.New(testsupport.NewFakeDecoder(), logging.NewNop(), time.Second)
	defer eng.Close()

	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	msg := collectUntil(t, eng.Messages(), engine.KindInitComplete)
	if !msg.Success {
		t.Fatal("expected successful handshake")
	}
	if !eng.Ready() {
		t.Fatal("expected engine ready")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	decoder := testsupport.NewFakeDecoder()
	eng := engine.New(decoder, logging.NewNop(), time.Second)
	defer eng.Close()

	for i := 0; i < 3; i++ {
		if err := eng.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize call %d failed: %v", i, err)
		}
	}
	collectUntil(t, eng.Messages(), engine.KindInitComplete)

	if got := decoder.ProbeCalls(); got != 1 {
		t.Fatalf("expected exactly one handshake, got %d probes", got)
	}
}

func TestInitializeFailureEmitsInitError(t *testing.T) {
	decoder := testsupport.NewFakeDecoder()
	decoder.FailProbe(errors.New("no codec on PATH"))
	eng := engine.New(decoder, logging.NewNop(), time.Second)
	defer eng.Close()

	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	msg := collectUntil(t, eng.Messages(), engine.KindInitError)
	if msg.Reason == "" {
		t.Fatal("expected failure reason")
	}
	if eng.Ready() {
		t.Fatal("engine must not be ready after failed handshake")
	}
	if !eng.InitFailed() {
		t.Fatal("expected InitFailed")
	}
	if err := eng.Initialize(context.Background()); !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable on re-init, got %v", err)
	}
}

func TestConvertEmitsExactlyOneTerminalMessage(t *testing.T) {
	decoder := testsupport.NewFakeDecoder()
	decoder.SetResult("/photos/a.heic", []byte("png-a"))
	eng := engine.New(decoder, logging.NewNop(), time.Second)
	defer eng.Close()

	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	collectUntil(t, eng.Messages(), engine.KindInitComplete)

	if err := eng.Submit(engine.Request{Kind: engine.KindConvert, ID: "a", SourceHandle: "/photos/a.heic"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	msg := collectUntil(t, eng.Messages(), engine.KindComplete)
	if msg.ID != "a" || string(msg.Payload) != "png-a" {
		t.Fatalf("unexpected completion: %+v", msg)
	}
}

func TestConvertFailureCarriesReason(t *testing.T) {
	decoder := testsupport.NewFakeDecoder()
	decoder.SetError("/photos/bad.heic", errors.New("corrupt data"))
	eng := engine.New(decoder, logging.NewNop(), time.Second)
	defer eng.Close()

	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	collectUntil(t, eng.Messages(), engine.KindInitComplete)

	if err := eng.Submit(engine.Request{Kind: engine.KindConvert, ID: "bad", SourceHandle: "/photos/bad.heic"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	msg := collectUntil(t, eng.Messages(), engine.KindError)
	if msg.ID != "bad" || msg.Reason != "corrupt data" {
		t.Fatalf("unexpected error message: %+v", msg)
	}
}

func TestConvertWithoutSuccessfulInitIsRejectedNotCrashed(t *testing.T) {
	decoder := testsupport.NewFakeDecoder()
	decoder.FailProbe(errors.New("no codec"))
	eng := engine.New(decoder, logging.NewNop(), time.Second)
	defer eng.Close()

	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	collectUntil(t, eng.Messages(), engine.KindInitError)

	if err := eng.Submit(engine.Request{Kind: engine.KindConvert, ID: "early", SourceHandle: "/x.heic"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	msg := collectUntil(t, eng.Messages(), engine.KindError)
	if msg.ID != "early" {
		t.Fatalf("unexpected rejection: %+v", msg)
	}
}

func TestAbortKillsInFlightConversion(t *testing.T) {
	decoder := testsupport.NewFakeDecoder()
	decoder.SetHang("/photos/slow.heic")
	eng := engine.New(decoder, logging.NewNop(), time.Second)
	defer eng.Close()

	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	collectUntil(t, eng.Messages(), engine.KindInitComplete)

	if err := eng.Submit(engine.Request{Kind: engine.KindConvert, ID: "slow", SourceHandle: "/photos/slow.heic"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	collectUntil(t, eng.Messages(), engine.KindProgress)

	eng.Abort("slow")
	msg := collectUntil(t, eng.Messages(), engine.KindError)
	if msg.ID != "slow" {
		t.Fatalf("unexpected aborted id: %+v", msg)
	}
}

func TestCloseIsIdempotentAndStopsSubmissions(t *testing.T) {
	eng := engine.New(testsupport.NewFakeDecoder(), logging.NewNop(), time.Second)
	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	eng.Close()
	eng.Close()

	if err := eng.Submit(engine.Request{Kind: engine.KindConvert, ID: "x"}); !errors.Is(err, engine.ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
	if err := eng.Initialize(context.Background()); !errors.Is(err, engine.ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed on re-init, got %v", err)
	}
}

func TestPanickingDecoderYieldsErrorMessage(t *testing.T) {
	decoder := testsupport.NewFakeDecoder()
	decoder.SetPanic("/photos/boom.heic")
	eng := engine.New(decoder, logging.NewNop(), time.Second)
	defer eng.Close()

	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	collectUntil(t, eng.Messages(), engine.KindInitComplete)

	if err := eng.Submit(engine.Request{Kind: engine.KindConvert, ID: "boom", SourceHandle: "/photos/boom.heic"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	msg := collectUntil(t, eng.Messages(), engine.KindError)
	if msg.ID != "boom" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}
