package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"heifconv/internal/codec"
	"heifconv/internal/logging"
)

// ErrEngineUnavailable indicates the engine failed to initialize; conversion
// requests fail fast instead of hanging.
var ErrEngineUnavailable = errors.New("conversion engine unavailable")

// ErrEngineClosed indicates the engine was torn down.
var ErrEngineClosed = errors.New("conversion engine closed")

type state int

const (
	stateNew state = iota
	stateInitializing
	stateReady
	stateFailed
	stateClosed
)

// Engine hosts the blocking codec work in an isolated execution context and
// communicates with the control path exclusively through messages. It owns the
// readiness signal: Initialize performs a one-time codec handshake and yields
// exactly one of init_complete or init_error.
type Engine struct {
	decoder      codec.Decoder
	logger       *slog.Logger
	probeTimeout time.Duration

	requests chan Request
	messages chan Message
	quit     chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	st       state
	inflight map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New constructs an engine around a decoder. The engine does nothing until
// Initialize is called.
func New(decoder codec.Decoder, logger *slog.Logger, probeTimeout time.Duration) *Engine {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Engine{
		decoder:      decoder,
		logger:       logging.NewComponentLogger(logger, "engine"),
		probeTimeout: probeTimeout,
		requests:     make(chan Request, 64),
		messages:     make(chan Message, 64),
		quit:         make(chan struct{}),
		baseCtx:      baseCtx,
		baseCancel:   baseCancel,
		inflight:     make(map[string]context.CancelFunc),
	}
}

// Initialize starts the worker and performs the init handshake. It is
// idempotent: repeated calls while initializing or ready never spawn a second
// worker. After a failed handshake it reports ErrEngineUnavailable without
// retrying; the caller decides whether to build a fresh engine.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	switch e.st {
	case stateNew:
		e.st = stateInitializing
	case stateInitializing, stateReady:
		e.mu.Unlock()
		return nil
	case stateFailed:
		e.mu.Unlock()
		return ErrEngineUnavailable
	case stateClosed:
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run()

	select {
	case e.requests <- Request{Kind: KindInit}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the handshake completed successfully.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st == stateReady
}

// InitFailed reports whether the handshake terminally failed.
func (e *Engine) InitFailed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st == stateFailed
}

// Messages returns the outbound message stream. The channel closes on
// teardown.
func (e *Engine) Messages() <-chan Message {
	return e.messages
}

// Submit enqueues a convert request.
func (e *Engine) Submit(req Request) error {
	e.mu.Lock()
	closed := e.st == stateClosed
	e.mu.Unlock()
	if closed {
		return ErrEngineClosed
	}
	select {
	case e.requests <- req:
		return nil
	case <-e.quit:
		return ErrEngineClosed
	}
}

// Abort cancels the in-flight conversion for id, killing the codec
// subprocess. Late output for that id is suppressed by the caller; abort of an
// unknown id is a no-op.
func (e *Engine) Abort(id string) {
	e.mu.Lock()
	cancel := e.inflight[id]
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close tears the engine down: cancels all in-flight work, stops the worker,
// and closes the message stream. Safe to call multiple times.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.st == stateClosed {
		e.mu.Unlock()
		return
	}
	e.st = stateClosed
	e.mu.Unlock()

	close(e.quit)
	e.baseCancel()
	e.wg.Wait()
	close(e.messages)
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.quit:
			return
		case req := <-e.requests:
			switch req.Kind {
			case KindInit:
				e.handleInit()
			case KindConvert:
				e.handleConvert(req)
			default:
				e.logger.Warn("unknown request kind dropped", logging.String("kind", string(req.Kind)))
			}
		}
	}
}

func (e *Engine) handleInit() {
	probeCtx := e.baseCtx
	if e.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(e.baseCtx, e.probeTimeout)
		defer cancel()
	}

	if err := e.decoder.Probe(probeCtx); err != nil {
		e.mu.Lock()
		e.st = stateFailed
		e.mu.Unlock()
		e.logger.Error("codec handshake failed", logging.Error(err))
		e.emit(Message{Kind: KindInitError, Reason: err.Error()})
		return
	}

	e.mu.Lock()
	if e.st == stateInitializing {
		e.st = stateReady
	}
	e.mu.Unlock()
	e.logger.Info("codec ready", logging.String(logging.FieldEventType, "engine_ready"))
	e.emit(Message{Kind: KindInitComplete, Success: true})
}

func (e *Engine) handleConvert(req Request) {
	e.mu.Lock()
	st := e.st
	e.mu.Unlock()
	if st != stateReady {
		// The protocol rejects early converts rather than crashing or
		// queueing; admission control lives upstream.
		e.emit(Message{Kind: KindError, ID: req.ID, Reason: "convert received before init_complete"})
		return
	}

	convertCtx, cancel := context.WithCancel(e.baseCtx)
	e.mu.Lock()
	e.inflight[req.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.inflight, req.ID)
			e.mu.Unlock()
			cancel()
			if r := recover(); r != nil {
				e.logger.Error("conversion worker fault",
					logging.String(logging.FieldItemID, req.ID),
					logging.Any("panic", r),
				)
				e.emit(Message{Kind: KindError, ID: req.ID, Reason: fmt.Sprintf("conversion worker fault: %v", r)})
			}
		}()

		e.emit(Message{Kind: KindProgress, ID: req.ID})

		payload, err := e.decoder.Convert(convertCtx, req.SourceHandle)
		if err != nil {
			e.emit(Message{Kind: KindError, ID: req.ID, Reason: err.Error()})
			return
		}
		e.emit(Message{Kind: KindComplete, ID: req.ID, Payload: payload})
	}()
}

// emit delivers a message unless teardown already started; termination
// suppresses further messages.
func (e *Engine) emit(msg Message) {
	select {
	case e.messages <- msg:
	case <-e.quit:
	}
}
