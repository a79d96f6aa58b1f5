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

// registry.go owns the map from twin id to its updater.Task, created
// lazily on the first change notification, and routes both inbound
// notifications and bulk-writer results to the right task.
package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/clusterbus"
	"github.com/ATNoG/eclipse-ditto/usecases/enforcement"
	"github.com/ATNoG/eclipse-ditto/usecases/monitoring"
	"github.com/ATNoG/eclipse-ditto/usecases/updater"
	"github.com/ATNoG/eclipse-ditto/usecases/writer"
)

// registry fans an in-cluster bus and a bulk writer's results out to one
// updater.Task per twin id, grounded on the teacher's pattern of a
// mutex-guarded map of long-lived per-key workers (e.g.
// usecases/scheduler's per-shard workers).
type registry struct {
	mu    sync.Mutex
	tasks map[twinid.ID]*updater.Task

	ctx     context.Context
	flow    *enforcement.Flow
	writer  *writer.Writer
	repo    *mongo.Collection
	deps    updater.Deps
	logger  *logrus.Entry
	metrics *monitoring.Metrics
}

func newRegistry(ctx context.Context, flow *enforcement.Flow, w *writer.Writer, collection *mongo.Collection, deps updater.Deps, logger *logrus.Entry, metrics *monitoring.Metrics) *registry {
	return &registry{
		tasks:   make(map[twinid.ID]*updater.Task),
		ctx:     ctx,
		flow:    flow,
		writer:  w,
		repo:    collection,
		deps:    deps,
		logger:  logger,
		metrics: metrics,
	}
}

// Dispatch routes one inbound change notification to its twin's task,
// creating the task (and kicking off its Recovering state) on first
// sight.
func (r *registry) Dispatch(n clusterbus.ChangeNotification) {
	t := r.getOrCreate(n.TwinID)
	if len(n.Events) > 0 {
		t.Send(updater.EventMessage{Events: n.Events})
		return
	}
	t.Send(updater.CommandMessage{Metadata: n.ToMetadata()})
}

// DeliverResult routes one bulk-writer outcome back to the owning task.
// A result for a twin with no registered task (e.g. the process
// restarted mid-flight) is logged and dropped.
func (r *registry) DeliverResult(id twinid.ID, result writer.Result) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		r.logger.WithField("twinId", id.String()).Warn("write result for unknown task, dropping")
		return
	}
	t.DeliverResult(result)
}

func (r *registry) getOrCreate(id twinid.ID) *updater.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[id]; ok {
		return t
	}

	deps := r.deps
	deps.Recover = r.recoverFunc(id)
	deps.Compute = r.computeFunc()
	deps.Submit = r.writer.Submit

	t := updater.New(id, deps)
	r.tasks[id] = t
	go t.Run(r.ctx)
	return t
}

// recoverFunc loads the last-written search-index document for id, so a
// restarted process resumes from the persisted revision rather than
// from scratch (spec.md §4.7 Recovering).
func (r *registry) recoverFunc(id twinid.ID) updater.RecoverFunc {
	return func(ctx context.Context, id twinid.ID) (models.WriteModel, bool, error) {
		var doc bson.M
		err := r.repo.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
		if err == mongo.ErrNoDocuments {
			return models.WriteModel{}, false, nil
		}
		if err != nil {
			return models.WriteModel{}, false, err
		}

		revision, _ := doc["_revision"].(int64)

		md := models.NewMetadata(id)
		md.ThingRevision = revision
		if policyRev, ok := doc["_policyRevision"].(int64); ok {
			md.PolicyRevision, md.HasPolicyRev = policyRev, true
		}
		// doc is the full persisted envelope ({_id,_revision,_policyRevision,
		// f,t}), exactly the shape ProjectSearchDocument computes — the
		// recovered lastModel must carry the whole envelope, not just the
		// inner twin JSON under "t", so it equals what the writer last
		// acknowledged (spec.md §3) and diffs cleanly against the next
		// computed Put.
		return models.NewPut(md, doc), true, nil
	}
}

// computeFunc adapts the batch-shaped enforcement Flow into the
// per-twin shape updater.Task.Deps.Compute needs, by running it over a
// single-entry batch.
func (r *registry) computeFunc() updater.ComputeFunc {
	return func(ctx context.Context, id twinid.ID, md models.Metadata) (models.WriteModel, bool) {
		partitions := r.flow.Run(ctx, map[twinid.ID]models.Metadata{id: md})
		for _, p := range partitions {
			if len(p) > 0 {
				return p[0], true
			}
		}
		return models.WriteModel{}, false
	}
}

// shutdown sends ShutdownMessage to every task and waits (bounded by
// drainTimeout) for all of them to terminate.
func (r *registry) shutdown(drainTimeout time.Duration) {
	r.mu.Lock()
	tasks := make([]*updater.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()

	for _, t := range tasks {
		t.Send(updater.ShutdownMessage{})
	}

	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	for _, t := range tasks {
		select {
		case <-t.Done():
		case <-deadline.C:
			r.logger.Warn("shutdown drain timeout exceeded, some tasks may not have fully drained")
			return
		}
	}
}
