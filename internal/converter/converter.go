package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"heifconv/internal/artifacts"
	"heifconv/internal/config"
	"heifconv/internal/engine"
	"heifconv/internal/logging"
	"heifconv/internal/queue"
	"heifconv/internal/selection"
)

// ErrEmptyBatch indicates a submission with no work items.
var ErrEmptyBatch = errors.New("no work items to convert")

// ErrBatchActive indicates an operation that requires an idle converter was
// attempted while a batch was still settling.
var ErrBatchActive = errors.New("conversion batch still in progress")

// Notifier receives batch-level lifecycle events. Implementations must not
// block indefinitely; the converter calls them on its event loop and treats
// delivery failures as log-and-continue.
type Notifier interface {
	BatchStarted(ctx context.Context, itemCount int) error
	BatchCompleted(ctx context.Context, completed, failed int, elapsed time.Duration) error
	BatchError(ctx context.Context, reason string) error
}

// Converter drives work items through the conversion engine: it admits items
// in submission order bounded by the configured in-flight limit, arms a
// deadline timer per dispatched item, settles each item on exactly one
// terminal outcome, and records payloads from successful conversions in the
// artifact store.
type Converter struct {
	store    *queue.Store
	results  *artifacts.Store
	eng      *engine.Engine
	notifier Notifier
	logger   *slog.Logger

	outputDir   string
	maxInFlight int
	itemTimeout time.Duration

	progress *Progress
	timers   *timerRegistry

	ctx      context.Context
	loopDone chan struct{}

	mu             sync.Mutex
	waiting        []*queue.Item
	inFlight       map[string]*queue.Item
	settled        map[string]struct{}
	busy           bool
	batchStart     time.Time
	batchDone      chan struct{}
	batchCompleted int
	batchFailed    int
	lastErr        error
	starting       bool
	looping        bool
}

// New assembles a converter over the given stores and engine. notifier may be
// nil when batch events have nowhere to go.
func New(cfg *config.Config, store *queue.Store, results *artifacts.Store, eng *engine.Engine, notifier Notifier, logger *slog.Logger) *Converter {
	maxInFlight := cfg.Workflow.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Converter{
		store:       store,
		results:     results,
		eng:         eng,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "converter"),
		outputDir:   cfg.Paths.OutputDir,
		maxInFlight: maxInFlight,
		itemTimeout: time.Duration(cfg.Workflow.ItemTimeout) * time.Second,
		progress:    NewProgress(),
		timers:      newTimerRegistry(),
		loopDone:    make(chan struct{}),
		inFlight:    make(map[string]*queue.Item),
		settled:     make(map[string]struct{}),
	}
}

// Start kicks off the engine handshake and the message loop. Items submitted
// before the handshake completes are held and dispatched once the engine
// reports ready. Start must be called exactly once before Convert; a failed
// Start leaves the converter safe to Close.
func (c *Converter) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.starting {
		c.mu.Unlock()
		return errors.New("converter already started")
	}
	c.starting = true
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.eng.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing conversion engine: %w", err)
	}

	// The loop is marked running only once it actually launches; Close must
	// not wait on a loop that a failed handshake prevented.
	c.mu.Lock()
	c.looping = true
	c.mu.Unlock()
	go c.loop()
	return nil
}

// Convert submits a batch of pending work items. Submission order is
// preserved through dispatch. Submitting while a batch is active extends the
// batch; submitting an empty batch is rejected. If the engine handshake has
// already failed no item is dispatched: the whole batch fails immediately
// with the engine-unavailable reason.
func (c *Converter) Convert(ctx context.Context, items []*queue.Item) error {
	if len(items) == 0 {
		return ErrEmptyBatch
	}

	if c.eng.InitFailed() {
		for _, item := range items {
			item.SetFailed(queue.EngineUnavailableReason)
			if err := c.store.Update(ctx, item); err != nil {
				c.logger.Error("failed to record engine-unavailable failure",
					logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(err))...)
			}
		}
		c.mu.Lock()
		c.lastErr = engine.ErrEngineUnavailable
		c.mu.Unlock()
		c.logger.Warn("batch rejected, conversion engine unavailable",
			logging.Args(logging.Int("items", len(items)))...)
		return engine.ErrEngineUnavailable
	}

	c.mu.Lock()
	c.lastErr = nil
	if !c.busy {
		c.busy = true
		c.batchStart = time.Now()
		c.batchDone = make(chan struct{})
		c.batchCompleted = 0
		c.batchFailed = 0
		c.progress.Reset()
	}
	c.progress.add(len(items))
	c.waiting = append(c.waiting, items...)
	c.dispatchLocked()
	// The handshake may have failed between the fast-path check above and
	// this submission; items queued after that point would otherwise never
	// settle.
	if c.eng.InitFailed() {
		c.lastErr = engine.ErrEngineUnavailable
		c.failWaitingLocked()
	}
	c.mu.Unlock()

	if c.notifier != nil {
		if err := c.notifier.BatchStarted(ctx, len(items)); err != nil {
			c.logger.Warn("batch-started notification failed", logging.Args(logging.Error(err))...)
		}
	}
	c.logger.Info("batch submitted",
		logging.Args(logging.Int("items", len(items)))...)
	return nil
}

// Retry resubmits a failed item under a fresh identity and queues it for
// conversion.
func (c *Converter) Retry(ctx context.Context, id string) (*queue.Item, error) {
	item, err := c.store.Resubmit(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Convert(ctx, []*queue.Item{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// Wait blocks until the current batch has fully settled, or until ctx is
// done. Waiting on an idle converter returns immediately.
func (c *Converter) Wait(ctx context.Context) error {
	c.mu.Lock()
	if !c.busy {
		c.mu.Unlock()
		return nil
	}
	done := c.batchDone
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Busy reports whether a batch is still settling.
func (c *Converter) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Percent reports the overall batch progress percentage.
func (c *Converter) Percent() int {
	return c.progress.Percent()
}

// LastError returns the most recent batch-level error, cleared on the next
// submission and by Reset.
func (c *Converter) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DownloadOne exports a single artifact into the configured output directory
// and returns the written path. The artifact remains available afterwards.
func (c *Converter) DownloadOne(id string) (string, error) {
	return c.results.ExportOne(id, c.outputDir)
}

// DownloadAll exports every recorded artifact into the configured output
// directory, in completion order.
func (c *Converter) DownloadAll() ([]string, error) {
	return c.results.ExportAll(c.outputDir)
}

// Reset clears session results: recorded artifacts are dropped and their
// access handles released, progress returns to idle, and any batch-level
// error is cleared. Reset is rejected while a batch is active.
func (c *Converter) Reset() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBatchActive
	}
	c.lastErr = nil
	c.mu.Unlock()

	if err := c.results.Reset(); err != nil {
		return fmt.Errorf("resetting artifact store: %w", err)
	}
	c.progress.Reset()
	c.logger.Info("session results cleared")
	return nil
}

// Close tears down the engine, drains the message loop, and releases all
// artifact handles. In-flight items are abandoned without further messages.
func (c *Converter) Close() {
	c.eng.Close()
	c.mu.Lock()
	looping := c.looping
	c.mu.Unlock()
	if looping {
		<-c.loopDone
	}
	c.timers.DisarmAll()
	c.results.Close()
}

// loop consumes engine messages until the stream closes on teardown.
func (c *Converter) loop() {
	defer close(c.loopDone)
	for msg := range c.eng.Messages() {
		c.handleMessage(msg)
	}
}

func (c *Converter) handleMessage(msg engine.Message) {
	switch msg.Kind {
	case engine.KindInitComplete:
		c.logger.Info("conversion engine ready")
		c.mu.Lock()
		c.dispatchLocked()
		c.mu.Unlock()

	case engine.KindInitError:
		c.handleInitError(msg.Reason)

	case engine.KindProgress:
		c.handleProgress(msg)

	case engine.KindComplete:
		c.handleComplete(msg)

	case engine.KindError:
		c.handleError(msg)
	}
}

// dispatchLocked admits waiting items while capacity remains. Caller holds
// c.mu.
func (c *Converter) dispatchLocked() {
	for len(c.inFlight) < c.maxInFlight && len(c.waiting) > 0 && c.eng.Ready() {
		item := c.waiting[0]
		c.waiting = c.waiting[1:]

		item.SetConverting()
		if err := c.store.Update(c.ctx, item); err != nil {
			c.logger.Error("failed to mark item converting",
				logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(err))...)
		}
		c.inFlight[item.ID] = item

		id := item.ID
		if err := c.timers.Arm(id, c.itemTimeout, func() { c.onDeadline(id) }); err != nil {
			c.logger.Error("failed to arm deadline timer",
				logging.Args(logging.String(logging.FieldItemID, id), logging.Error(err))...)
		}

		err := c.eng.Submit(engine.Request{
			Kind:         engine.KindConvert,
			ID:           item.ID,
			SourceHandle: item.SourcePath,
		})
		if err != nil {
			c.timers.Disarm(id)
			item.SetFailed(queue.EngineUnavailableReason)
			if updateErr := c.store.Update(c.ctx, item); updateErr != nil {
				c.logger.Error("failed to record dispatch failure",
					logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(updateErr))...)
			}
			c.settleLocked(item.ID, false)
			continue
		}

		c.logger.Info("item dispatched",
			logging.Args(
				logging.String(logging.FieldItemID, item.ID),
				logging.String("source", item.DisplayName),
				logging.Int("in_flight", len(c.inFlight)))...)
	}
}

// handleInitError fails every queued item without dispatching any of them.
func (c *Converter) handleInitError(reason string) {
	c.logger.Error("conversion engine handshake failed",
		logging.Args(logging.String(logging.FieldErrorHint, reason))...)

	c.mu.Lock()
	c.lastErr = fmt.Errorf("%w: %s", engine.ErrEngineUnavailable, reason)
	c.failWaitingLocked()
	c.mu.Unlock()

	if c.notifier != nil {
		if err := c.notifier.BatchError(c.ctx, reason); err != nil {
			c.logger.Warn("batch-error notification failed", logging.Args(logging.Error(err))...)
		}
	}
}

// failWaitingLocked settles every queued-but-undispatched item as failed with
// the engine-unavailable reason. Caller holds c.mu.
func (c *Converter) failWaitingLocked() {
	pending := c.waiting
	c.waiting = nil
	for _, item := range pending {
		item.SetFailed(queue.EngineUnavailableReason)
		if err := c.store.Update(c.ctx, item); err != nil {
			c.logger.Error("failed to record engine-unavailable failure",
				logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(err))...)
		}
		c.settleLocked(item.ID, false)
	}
}

func (c *Converter) handleProgress(msg engine.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.settled[msg.ID]; done {
		return
	}
	item, ok := c.inFlight[msg.ID]
	if !ok {
		return
	}
	item.SetProgress("converting", 50)
	if err := c.store.Update(c.ctx, item); err != nil {
		c.logger.Error("failed to record item progress",
			logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(err))...)
	}
}

func (c *Converter) handleComplete(msg engine.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.settled[msg.ID]; done {
		return
	}
	item, ok := c.inFlight[msg.ID]
	if !ok {
		return
	}
	c.timers.Disarm(msg.ID)

	derived := selection.MapName(item.DisplayName)
	artifact := c.results.Record(item.ID, derived, msg.Payload)

	item.SetCompleted()
	if err := c.store.Update(c.ctx, item); err != nil {
		c.logger.Error("failed to mark item completed",
			logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(err))...)
	}

	c.logger.Info("item converted",
		logging.Args(
			logging.String(logging.FieldItemID, item.ID),
			logging.String("artifact", artifact.DerivedName),
			logging.Int64("bytes", artifact.ByteSize))...)
	c.settleLocked(msg.ID, true)
}

func (c *Converter) handleError(msg engine.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.settled[msg.ID]; done {
		return
	}
	item, ok := c.inFlight[msg.ID]
	if !ok {
		return
	}
	c.timers.Disarm(msg.ID)

	item.SetFailed(msg.Reason)
	if err := c.store.Update(c.ctx, item); err != nil {
		c.logger.Error("failed to mark item failed",
			logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(err))...)
	}

	c.logger.Warn("item failed",
		logging.Args(
			logging.String(logging.FieldItemID, item.ID),
			logging.String(logging.FieldErrorHint, msg.Reason))...)
	c.settleLocked(msg.ID, false)
}

// onDeadline fires when an item exceeds its conversion deadline: the engine
// aborts the in-flight work, late output for the id is suppressed, and the
// item settles as failed with the timeout reason.
func (c *Converter) onDeadline(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.settled[id]; done {
		return
	}
	item, ok := c.inFlight[id]
	if !ok {
		return
	}
	c.timers.Disarm(id)
	c.eng.Abort(id)

	item.SetFailed(queue.TimeoutReason)
	if err := c.store.Update(c.ctx, item); err != nil {
		c.logger.Error("failed to record item timeout",
			logging.Args(logging.String(logging.FieldItemID, item.ID), logging.Error(err))...)
	}

	c.logger.Warn("item deadline exceeded",
		logging.Args(
			logging.String(logging.FieldItemID, id),
			logging.Duration("deadline", c.itemTimeout))...)
	c.settleLocked(id, false)
}

// settleLocked records a terminal outcome for id, refills dispatch capacity,
// and finishes the batch when every submitted item has settled. Caller holds
// c.mu.
func (c *Converter) settleLocked(id string, succeeded bool) {
	c.settled[id] = struct{}{}
	delete(c.inFlight, id)
	if succeeded {
		c.batchCompleted++
	} else {
		c.batchFailed++
	}
	c.progress.Settle()
	c.dispatchLocked()

	if c.busy && c.progress.Finished() && len(c.waiting) == 0 && len(c.inFlight) == 0 {
		c.busy = false
		elapsed := time.Since(c.batchStart)
		close(c.batchDone)

		completed, failed := c.batchCompleted, c.batchFailed
		c.logger.Info("batch finished",
			logging.Args(
				logging.Int("completed", completed),
				logging.Int("failed", failed),
				logging.Duration("elapsed", elapsed))...)
		if c.notifier != nil {
			// Off the lock: delivery may block on the network.
			go func() {
				if err := c.notifier.BatchCompleted(c.ctx, completed, failed, elapsed); err != nil {
					c.logger.Warn("batch-completed notification failed", logging.Args(logging.Error(err))...)
				}
			}()
		}
	}
}
