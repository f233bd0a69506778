package testsupport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeDecoder is a scriptable stand-in for the external codec. Behavior is
// keyed by source path: fixed payloads, errors, delays, hangs, or panics.
type FakeDecoder struct {
	mu         sync.Mutex
	probeErr   error
	probeCalls int
	results    map[string][]byte
	errs       map[string]error
	delays     map[string]time.Duration
	hangs      map[string]struct{}
	panics     map[string]struct{}
}

// NewFakeDecoder returns a decoder that succeeds probing and fails any
// unconfigured conversion.
func NewFakeDecoder() *FakeDecoder {
	return &FakeDecoder{
		results: make(map[string][]byte),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
		hangs:   make(map[string]struct{}),
		panics:  make(map[string]struct{}),
	}
}

// FailProbe makes the init handshake fail with err.
func (f *FakeDecoder) FailProbe(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeErr = err
}

// SetResult configures a successful conversion payload for path.
func (f *FakeDecoder) SetResult(path string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[path] = payload
}

// SetError configures a conversion failure for path. A nil err clears any
// previously scripted failure.
func (f *FakeDecoder) SetError(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, path)
		return
	}
	f.errs[path] = err
}

// SetDelay configures a response delay for path.
func (f *FakeDecoder) SetDelay(path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[path] = d
}

// SetHang makes conversions for path block until their context is canceled.
func (f *FakeDecoder) SetHang(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangs[path] = struct{}{}
}

// SetPanic makes conversions for path panic, simulating a worker fault.
func (f *FakeDecoder) SetPanic(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[path] = struct{}{}
}

// ProbeCalls reports how many times Probe ran.
func (f *FakeDecoder) ProbeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCalls
}

// Probe implements codec.Decoder.
func (f *FakeDecoder) Probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	if f.probeErr != nil {
		return f.probeErr
	}
	return ctx.Err()
}

// Convert implements codec.Decoder.
func (f *FakeDecoder) Convert(ctx context.Context, sourcePath string) ([]byte, error) {
	f.mu.Lock()
	payload, hasResult := f.results[sourcePath]
	convErr, hasErr := f.errs[sourcePath]
	delay := f.delays[sourcePath]
	_, hangs := f.hangs[sourcePath]
	_, panics := f.panics[sourcePath]
	f.mu.Unlock()

	if panics {
		panic("decoder fault: " + sourcePath)
	}
	if hangs {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if hasErr {
		return nil, convErr
	}
	if hasResult {
		return payload, nil
	}
	return nil, fmt.Errorf("no conversion configured for %s", sourcePath)
}
