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

// Package enforcement implements the enforcement flow of spec.md §4.4: a
// bounded-parallelism fan-out over a batch of change notifications that
// produces write models partitioned by |hash(twinId)| mod P, the
// ordering unit the bulk writer later serializes on.
package enforcement

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/monitoring"
	"github.com/ATNoG/eclipse-ditto/usecases/policy"
)

// TwinFetcher fetches a twin's current state via the enrichment facade.
// ok=false means a transient fetch failure — the twin must be skipped,
// not deleted (spec.md §4.3/§4.4/§7); exists=false with ok=true means
// the twin is confirmed absent.
type TwinFetcher func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (twin *models.Twin, exists bool, ok bool)

// PolicyFetcher fetches the compiled Enforcer for a policyID via the
// cached policy loader, applying the reload policy of spec.md §4.1.
type PolicyFetcher func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool)

// Config bounds the enforcement flow's behavior.
type Config struct {
	MaxArraySize int
	Parallelism  int
	Partitions   int
}

// Flow computes write models for a batch of twins.
type Flow struct {
	cfg         Config
	fetchTwin   TwinFetcher
	fetchPolicy PolicyFetcher
	logger      *logrus.Entry
	metrics     *monitoring.Metrics
}

// New constructs a Flow.
func New(cfg Config, fetchTwin TwinFetcher, fetchPolicy PolicyFetcher, logger *logrus.Entry, metrics *monitoring.Metrics) *Flow {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Flow{cfg: cfg, fetchTwin: fetchTwin, fetchPolicy: fetchPolicy, logger: logger, metrics: metrics}
}

// Run processes one flush window's accumulated metadata, keyed by twin
// id, and returns the P partitioned sequences of write models, per
// spec.md §4.4. A fetch failure for a single twin never poisons the
// batch — that twin is logged and skipped, to be retried on its next
// event (spec.md §4.4 failure policy).
func (f *Flow) Run(ctx context.Context, batch map[twinid.ID]models.Metadata) [][]models.WriteModel {
	partitions := make([][]models.WriteModel, f.cfg.Partitions)

	locks := make([]chan struct{}, f.cfg.Partitions)
	for i := range locks {
		locks[i] = make(chan struct{}, 1)
		locks[i] <- struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Parallelism)

	for id, md := range batch {
		id, md := id, md
		g.Go(func() error {
			model, ok := f.process(gctx, id, md)
			if !ok {
				return nil
			}
			partition := twinid.Partition(id, f.cfg.Partitions)
			<-locks[partition]
			partitions[partition] = append(partitions[partition], model)
			locks[partition] <- struct{}{}
			return nil
		})
	}
	_ = g.Wait() // the goroutines always return nil, so Wait returns nil

	if f.metrics != nil {
		for i, p := range partitions {
			f.metrics.PartitionQueueDepth.WithLabelValues(partitionLabel(i)).Set(float64(len(p)))
		}
	}

	return partitions
}

// process runs the per-twin algorithm of spec.md §4.4 steps 1-6.
func (f *Flow) process(ctx context.Context, id twinid.ID, md models.Metadata) (models.WriteModel, bool) {
	logger := f.logger.WithField("twinId", id.String())

	twin, exists, ok := f.fetchTwin(ctx, id, md.Events, md.ThingRevision)
	if !ok {
		logger.Warn("transient twin fetch failure, skipping for this round")
		f.skip("twin_fetch_failed")
		return models.WriteModel{}, false
	}
	if !exists {
		return models.NewDelete(md), true
	}

	if latest, ok := models.Latest(md.Events); ok && latest.Kind == models.EventDeleted {
		return models.NewDelete(md), true
	}

	if twin.PolicyID.IsZero() {
		logger.Warn("twin has no policyId, treating as orphaned")
		return models.NewDelete(md), true
	}

	requiredRevision := md.PolicyRevision
	enforcer, ok := f.fetchPolicy(ctx, twin.PolicyID, requiredRevision, md.InvalidatePolicy)
	if !ok {
		logger.Warn("no enforcer for twin's policy, emitting delete")
		return models.NewDelete(md), true
	}

	doc := ProjectSearchDocument(enforcer, twin, f.cfg.MaxArraySize)

	updatedMD := md
	updatedMD.HasPolicyID = true
	updatedMD.PolicyID = twin.PolicyID
	updatedMD.HasPolicyRev = true
	updatedMD.PolicyRevision = enforcer.Revision()

	return models.NewPut(updatedMD, doc), true
}

func (f *Flow) skip(reason string) {
	if f.metrics != nil {
		f.metrics.EnforcementSkipped.WithLabelValues(reason).Inc()
	}
}

func partitionLabel(i int) string {
	return strconv.Itoa(i)
}
