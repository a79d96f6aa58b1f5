//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package updater

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/differ"
	"github.com/ATNoG/eclipse-ditto/usecases/monitoring"
	"github.com/ATNoG/eclipse-ditto/usecases/writer"
)

// RecoverFunc loads the last-persisted write model for a twin id, if
// one exists (spec.md §4.7 Recovering state, §7 "a restart rehydrates
// via Recovering, preserving the invariant that the persisted revision
// is the source of truth").
type RecoverFunc func(ctx context.Context, id twinid.ID) (models.WriteModel, bool, error)

// ComputeFunc runs the enrichment + enforcement pipeline for one twin's
// accumulated metadata, producing the raw (pre-diff) write model — a
// Delete if the twin, its policy, or its enforcer is missing, otherwise
// a Put carrying the freshly projected search document (spec.md §4.4
// steps 1-6). ok is false only on a transient fetch failure, in which
// case the task re-queues the change for a later attempt rather than
// persisting anything (spec.md §4.4 failure policy).
type ComputeFunc func(ctx context.Context, id twinid.ID, md models.Metadata) (raw models.WriteModel, ok bool)

// SubmitFunc hands a diffed write model to the bulk writer. Its result
// is delivered back asynchronously through Task.DeliverResult — callers
// typically wrap usecases/writer.Writer.Submit plus a dispatcher that
// routes each partition's results back to the owning Task by twin id.
type SubmitFunc func(id twinid.ID, wm models.WriteModel)

// Deps bundles a Task's collaborators and tunables.
type Deps struct {
	Recover      RecoverFunc
	Compute      ComputeFunc
	Submit       SubmitFunc
	DifferConfig differ.Config

	Logger  *logrus.Entry
	Metrics *monitoring.Metrics

	// IdleTimeout self-terminates the task from Ready once nothing has
	// happened for this long (spec.md §6 updater.idleTimeout).
	IdleTimeout time.Duration
	// MaxRetries bounds transient-error retries before reverting to
	// Ready with lastModel unchanged (spec.md §4.7 failure handling).
	MaxRetries int
	// RetryBackoffBase is the initial Retrying delay, doubled per
	// attempt up to RetryBackoffMax (spec.md §5 ask.backoff).
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// DrainTimeout bounds how long ShuttingDown waits for an in-flight
	// write's acknowledgement (spec.md §6 shutdown.drainTimeout).
	DrainTimeout time.Duration
	// StashCapacity bounds the task's internal stash; exceeding it
	// drops the stash and forces a full refresh on the next flush
	// (spec.md §5 "Backpressure").
	StashCapacity int
	// MailboxCapacity bounds the externally-visible inbox.
	MailboxCapacity int
}

func (d Deps) withDefaults() Deps {
	if d.IdleTimeout <= 0 {
		d.IdleTimeout = 10 * time.Minute
	}
	if d.RetryBackoffBase <= 0 {
		d.RetryBackoffBase = 200 * time.Millisecond
	}
	if d.RetryBackoffMax <= 0 {
		d.RetryBackoffMax = 30 * time.Second
	}
	if d.DrainTimeout <= 0 {
		d.DrainTimeout = 30 * time.Second
	}
	if d.StashCapacity <= 0 {
		d.StashCapacity = 1000
	}
	if d.MailboxCapacity <= 0 {
		d.MailboxCapacity = 256
	}
	if d.Logger == nil {
		d.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return d
}

// Task is one cooperative, single-owner state machine per twin id
// (spec.md §4.7). Run must be started in its own goroutine; Send and
// DeliverResult are safe to call from any goroutine.
type Task struct {
	id   twinid.ID
	deps Deps

	mailbox chan message
	done    chan struct{}
	logger  *logrus.Entry

	// Everything below is owned exclusively by the Run goroutine.
	state        State
	lastModel    models.WriteModel
	hasLastModel bool
	pending      models.Metadata
	hasPending   bool
	current      models.Metadata
	inFlight     models.WriteModel
	retryCount   int
	stash        []message

	// awaitTrigger forces stepReady to wait for a fresh message even
	// though hasPending is already true: set after giving up on a
	// change, so a give-up doesn't turn into an unthrottled resubmit
	// loop (spec.md §4.7 "reverting to Ready with lastModel unchanged"
	// means waiting for the next real signal, not retrying forever).
	awaitTrigger bool
}

// New constructs a Task for id. Call go task.Run(ctx) to start it.
func New(id twinid.ID, deps Deps) *Task {
	deps = deps.withDefaults()
	return &Task{
		id:      id,
		deps:    deps,
		mailbox: make(chan message, deps.MailboxCapacity),
		done:    make(chan struct{}),
		logger:  deps.Logger.WithField("twinId", id.String()),
		state:   Recovering,
		pending: models.NewMetadata(id),
	}
}

// Send enqueues a producer-facing message. It drops the message (and
// logs) if the task has already terminated.
func (t *Task) Send(msg message) {
	select {
	case t.mailbox <- msg:
	case <-t.done:
		t.logger.WithField("state", t.state.String()).Debug("dropped message, task already stopped")
	}
}

// DeliverResult routes the bulk writer's classified outcome for the
// write model this task last submitted back into its mailbox.
func (t *Task) DeliverResult(result writer.Result) {
	t.Send(writerResultMsg{result: result})
}

// Done is closed once the task has terminated.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// State returns the task's current state. Intended for tests and
// diagnostics; callers must not use it to make control decisions, since
// it can change the instant it's read.
func (t *Task) State() State {
	return t.state
}

// Run executes the task's state machine until shutdown, a terminal
// failure path, or ctx is done. It must be called at most once.
func (t *Task) Run(ctx context.Context) {
	defer close(t.done)

	if !t.recover(ctx) {
		return
	}

	for {
		if !t.step(ctx) {
			return
		}
	}
}

type recoverResult struct {
	model  models.WriteModel
	exists bool
	err    error
}

// recover implements the Recovering state: load the last write model
// in the background while still honoring an incoming shutdown
// immediately (spec.md §4.7 "in Recovering, shutdown is immediate"),
// stashing anything else until recovery completes.
func (t *Task) recover(ctx context.Context) bool {
	resultCh := make(chan recoverResult, 1)
	go func() {
		model, exists, err := t.deps.Recover(ctx, t.id)
		resultCh <- recoverResult{model: model, exists: exists, err: err}
	}()

	for {
		select {
		case r := <-resultCh:
			if r.err != nil {
				t.logger.WithError(r.err).Warn("recovery failed, starting with no last model")
			} else {
				t.lastModel, t.hasLastModel = r.model, r.exists
			}
			t.transition(Ready)
			return true
		case msg := <-t.mailbox:
			if _, ok := msg.(ShutdownMessage); ok {
				t.transition(ShuttingDown)
				return false
			}
			t.pushStash(msg)
		case <-ctx.Done():
			return false
		}
	}
}

func (t *Task) step(ctx context.Context) bool {
	switch t.state {
	case Ready:
		return t.stepReady(ctx)
	case Persisting:
		return t.stepPersisting(ctx)
	case Retrying:
		return t.stepRetrying(ctx)
	default:
		return false
	}
}

// stepReady merges one message, then drains everything already queued
// so several rapid-fire events collapse into a single write (spec.md
// §4.7 "Combine multiple events into one write per flush"), before
// deciding whether to flush. If metadata was already pending when Ready
// was entered (e.g. events stashed while Persisting, replayed after an
// ok/give-up), it skips straight to draining — there is no need to wait
// for a brand new message before retrying a known-pending change.
func (t *Task) stepReady(ctx context.Context) bool {
	if !t.hasPending || t.awaitTrigger {
		idle := time.NewTimer(t.deps.IdleTimeout)
		defer idle.Stop()

		msg, gotTimer, ok := t.nextMessage(ctx, idle.C)
		if !ok {
			return false
		}
		if gotTimer {
			t.logger.Debug("idle timeout, self-terminating")
			t.transition(ShuttingDown)
			return false
		}
		if !t.applyReady(msg) {
			return false
		}
		t.awaitTrigger = false
	}

	for {
		msg, ok := t.popAvailable()
		if !ok {
			break
		}
		if !t.applyReady(msg) {
			return false
		}
	}

	if !t.hasPending {
		return true
	}
	t.beginPersist(ctx)
	return true
}

// applyReady merges one mailbox message while in Ready. It returns
// false if the task should terminate now (an immediate shutdown).
func (t *Task) applyReady(msg message) bool {
	switch m := msg.(type) {
	case ShutdownMessage:
		t.transition(ShuttingDown)
		return false
	case EventMessage:
		t.mergeEvents(m.Events)
	case CommandMessage:
		t.mergeCommand(m.Metadata)
	default:
		// a stale writerResultMsg/retryTickMsg arriving in Ready (e.g.
		// a slow ack after a give-up) is harmless; ignore it.
	}
	return true
}

func (t *Task) mergeEvents(events []models.Event) {
	gate := t.lastModel.Revision()
	bypass := t.pending.ForceUpdate
	for _, e := range events {
		if e.Revision <= gate && !bypass {
			continue
		}
		t.pending.Events = append(t.pending.Events, e)
		if e.Revision > t.pending.ThingRevision {
			t.pending.ThingRevision = e.Revision
		}
		t.pending.AddReason(reasonFor(e.Kind))
		t.hasPending = true
	}
}

func reasonFor(kind models.EventKind) models.UpdateReason {
	switch kind {
	case models.EventFeatureCreated, models.EventFeaturePropertiesCreated,
		models.EventFeaturePropertyModified, models.EventFeatureDefinitionCreated:
		return models.ReasonFeatureUpdate
	case models.EventDeleted:
		return models.ReasonTwinDeleted
	default:
		return models.ReasonAttributeUpdate
	}
}

func (t *Task) mergeCommand(md models.Metadata) {
	t.pending.Merge(md)
	t.hasPending = true
}

// beginPersist snapshots the accumulated pending metadata, carries
// forward the last-persisted revision when only a command (no event)
// triggered this flush, and attempts to compute + diff + submit.
func (t *Task) beginPersist(ctx context.Context) {
	t.current = t.pending
	if t.current.ThingRevision < t.lastModel.Revision() {
		t.current.ThingRevision = t.lastModel.Revision()
	}
	t.pending = models.NewMetadata(t.id)
	t.hasPending = false

	t.attemptCompute(ctx)
}

// attemptCompute runs Compute + Diff for t.current and, if there's
// something to write, submits it and transitions to Persisting.
func (t *Task) attemptCompute(ctx context.Context) {
	raw, ok := t.deps.Compute(ctx, t.id, t.current)
	if !ok {
		t.logger.Warn("compute failed, re-queuing change for a later attempt")
		t.pending.Merge(t.current)
		t.hasPending = true
		t.awaitTrigger = true
		t.transition(Ready)
		return
	}

	previous, hasPrevious := t.lastModel, t.hasLastModel
	if t.current.ForceUpdate {
		// Force-update: treat lastModel as a virtual Delete so the
		// differ always emits a full Put (spec.md §4.7 "Force-update").
		previous, hasPrevious = models.NewDelete(t.lastModel.Metadata), false
	}

	diffed, changed := differ.Diff(t.deps.DifferConfig, previous, raw, hasPrevious)
	if !changed {
		t.transition(Ready)
		return
	}

	t.inFlight = diffed
	t.retryCount = 0
	t.deps.Submit(t.id, diffed)
	t.transition(Persisting)
}

// stepPersisting awaits the writer's result while stashing (merging,
// not dropping) any events or commands that arrive in the meantime
// (spec.md §4.7 Persisting "stashes new events").
func (t *Task) stepPersisting(ctx context.Context) bool {
	msg, _, ok := t.nextMessage(ctx, nil)
	if !ok {
		return false
	}

	switch m := msg.(type) {
	case writerResultMsg:
		return t.handleResult(ctx, m.result)
	case ShutdownMessage:
		t.transition(ShuttingDown)
		return t.drainShutdown(ctx)
	case EventMessage:
		t.mergeEvents(m.Events)
		return true
	case CommandMessage:
		t.mergeCommand(m.Metadata)
		return true
	default:
		return true
	}
}

func (t *Task) handleResult(ctx context.Context, r writer.Result) bool {
	switch r.Outcome {
	case writer.OutcomeOK:
		t.lastModel = t.inFlight
		t.hasLastModel = true
		t.inFlight = models.WriteModel{}
		t.retryCount = 0
		t.transition(Ready)
		return true

	case writer.OutcomeConflict:
		// "on conflict: re-enter Persisting with force-update" — the
		// filter's optimistic-concurrency precondition failed, so the
		// next attempt must emit a full Put (spec.md §4.6, §4.7).
		t.current.ForceUpdate = true
		t.attemptCompute(ctx)
		return true

	case writer.OutcomeTransientError:
		t.retryCount++
		if t.retryCount > t.deps.MaxRetries {
			t.logger.WithField("retries", t.retryCount).Warn("giving up after max retries, reverting to Ready")
			t.pending.Merge(t.current)
			t.hasPending = true
			t.awaitTrigger = true
			t.inFlight = models.WriteModel{}
			t.transition(Ready)
			return true
		}
		t.transition(Retrying)
		return true

	default: // OutcomePermanentError
		t.logger.WithError(r.Err).Error("permanent persistence error, reverting without updating last model")
		t.inFlight = models.WriteModel{}
		t.transition(Ready)
		return true
	}
}

// stepRetrying waits out the backoff delay before resubmitting the
// same in-flight write model (spec.md §4.7 Retrying state).
func (t *Task) stepRetrying(ctx context.Context) bool {
	timer := time.NewTimer(backoffDelay(t.retryCount, t.deps.RetryBackoffBase, t.deps.RetryBackoffMax))
	defer timer.Stop()

	msg, gotTimer, ok := t.nextMessage(ctx, timer.C)
	if !ok {
		return false
	}
	if gotTimer {
		t.deps.Submit(t.id, t.inFlight)
		t.transition(Persisting)
		return true
	}

	switch m := msg.(type) {
	case ShutdownMessage:
		// No network round-trip is actually in flight while waiting on
		// the backoff timer, so there is nothing to drain; give up.
		t.transition(ShuttingDown)
		return false
	case EventMessage:
		t.mergeEvents(m.Events)
		return true
	case CommandMessage:
		t.mergeCommand(m.Metadata)
		return true
	default:
		return true
	}
}

// drainShutdown waits for the in-flight write's acknowledgement (or
// DrainTimeout, whichever comes first) before terminating (spec.md §5
// "drains the in-flight persistence, then terminates").
func (t *Task) drainShutdown(ctx context.Context) bool {
	timer := time.NewTimer(t.deps.DrainTimeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-t.mailbox:
			if wr, ok := msg.(writerResultMsg); ok {
				t.logger.WithField("outcome", wr.result.Outcome.String()).Info("drained in-flight write before shutdown")
				if wr.result.Outcome == writer.OutcomeOK {
					t.lastModel = t.inFlight
					t.hasLastModel = true
				}
				return false
			}
			// any other message arriving mid-drain is abandoned.
		case <-timer.C:
			t.logger.Warn("shutdown drain timeout exceeded, terminating with in-flight write unacknowledged")
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// nextMessage pops a stashed message first (FIFO), otherwise blocks on
// the mailbox, an optional timer channel, or ctx cancellation.
func (t *Task) nextMessage(ctx context.Context, timerC <-chan time.Time) (message, bool, bool) {
	if len(t.stash) > 0 {
		m := t.stash[0]
		t.stash = t.stash[1:]
		return m, false, true
	}
	select {
	case m := <-t.mailbox:
		return m, false, true
	case <-timerC:
		return nil, true, true
	case <-ctx.Done():
		return nil, false, false
	}
}

// popAvailable pops the next stashed or already-queued message without
// blocking. ok is false if nothing is immediately available.
func (t *Task) popAvailable() (message, bool) {
	if len(t.stash) > 0 {
		m := t.stash[0]
		t.stash = t.stash[1:]
		return m, true
	}
	select {
	case m := <-t.mailbox:
		return m, true
	default:
		return nil, false
	}
}

func (t *Task) pushStash(msg message) {
	if len(t.stash) >= t.deps.StashCapacity {
		t.logger.Warn("stash overflow, forcing full refresh and dropping stash")
		t.pending.ForceUpdate = true
		t.hasPending = true
		t.stash = nil
		return
	}
	t.stash = append(t.stash, msg)
}

func (t *Task) transition(next State) {
	if t.deps.Metrics != nil {
		t.deps.Metrics.TaskStateTransitions.WithLabelValues(t.state.String(), next.String()).Inc()
	}
	t.logger.WithFields(logrus.Fields{"from": t.state.String(), "to": next.String()}).Debug("state transition")
	t.state = next
}

func backoffDelay(retryCount int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
