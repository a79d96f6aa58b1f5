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

// Package mongo adapts the search-index writer's classified write
// models onto a MongoDB collection, implementing usecases/writer.Adapter.
//
// Grounded on the teacher's adapters/repos/* shape: a thin Repo wrapping
// a driver client, returning classified errors rather than raw driver
// errors to its caller. Unlike a literal driver BulkWrite call (whose
// aggregate BulkWriteResult does not expose a per-document matched count
// for the optimistic-concurrency filter spec.md §4.5/§4.6 require), each
// model in a batch is issued as its own ReplaceOne/UpdateOne/DeleteOne,
// bounded by a concurrency limit via golang.org/x/sync/errgroup — the
// same fan-out idiom the teacher's usecases/replica.coordinator uses —
// so that per-document matched-count/conflict detection stays exact.
package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/usecases/writer"
)

// Repo wraps a search-index MongoDB collection, issuing the document
// shape of spec.md §6: { _id, _revision, _policyRevision, f, t }.
type Repo struct {
	collection  *mongo.Collection
	concurrency int
}

// New constructs a Repo backed by collection. concurrency bounds how
// many per-document operations within one batch run in parallel; <= 0
// means unbounded.
func New(collection *mongo.Collection, concurrency int) *Repo {
	return &Repo{collection: collection, concurrency: concurrency}
}

// BulkWrite implements writer.Adapter: it issues one driver operation
// per write model and returns one classified Result per model, in the
// same order, never short-circuiting on an individual model's error.
func (r *Repo) BulkWrite(ctx context.Context, wms []models.WriteModel) ([]writer.Result, error) {
	results := make([]writer.Result, len(wms))

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	for i, wm := range wms {
		i, wm := i, wm
		g.Go(func() error {
			results[i] = r.writeOne(gctx, wm)
			return nil
		})
	}
	_ = g.Wait() // the goroutines always return nil, so Wait returns nil

	return results, nil
}

func (r *Repo) writeOne(ctx context.Context, wm models.WriteModel) writer.Result {
	switch wm.Kind {
	case models.KindDelete:
		return r.delete(ctx, wm)
	case models.KindPatch:
		return r.patch(ctx, wm)
	default:
		return r.put(ctx, wm)
	}
}

func (r *Repo) put(ctx context.Context, wm models.WriteModel) writer.Result {
	filter := bson.M{"_id": wm.Metadata.TwinID.String()}
	_, err := r.collection.ReplaceOne(ctx, filter, wm.Document, options.Replace().SetUpsert(true))
	if err != nil {
		return classify(err)
	}
	return writer.Result{Outcome: writer.OutcomeOK, Revision: wm.Revision()}
}

func (r *Repo) patch(ctx context.Context, wm models.WriteModel) writer.Result {
	filter := bson.M{
		"_id":       wm.Metadata.TwinID.String(),
		"_revision": wm.FilterRevision,
	}
	res, err := r.collection.UpdateOne(ctx, filter, wm.Update)
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 0 {
		return writer.Result{Outcome: writer.OutcomeConflict}
	}
	return writer.Result{Outcome: writer.OutcomeOK, Revision: wm.Revision()}
}

func (r *Repo) delete(ctx context.Context, wm models.WriteModel) writer.Result {
	filter := bson.M{"_id": wm.Metadata.TwinID.String()}
	_, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return classify(err)
	}
	return writer.Result{Outcome: writer.OutcomeOK}
}

// permanentWriteErrorCodes lists MongoDB server error codes spec.md §7
// names as unreconcilable (duplicate key) or otherwise non-retryable.
var permanentWriteErrorCodes = map[int]struct{}{
	11000: {}, // DuplicateKey
	121:   {}, // DocumentValidationFailure
}

// classify maps a driver error onto spec.md §7's error taxonomy:
// transient I/O (timeout, network) is retried by the writer; permanent
// errors (duplicate key, validation) surface immediately.
func classify(err error) writer.Result {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return writer.Result{Outcome: writer.OutcomeTransientError, Err: errors.Wrap(err, "transient mongo error")}
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if _, permanent := permanentWriteErrorCodes[int(cmdErr.Code)]; permanent {
			return writer.Result{Outcome: writer.OutcomePermanentError, Err: errors.Wrap(err, "permanent mongo error")}
		}
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if _, permanent := permanentWriteErrorCodes[we.Code]; permanent {
				return writer.Result{Outcome: writer.OutcomePermanentError, Err: errors.Wrap(err, "permanent mongo write error")}
			}
		}
	}

	return writer.Result{Outcome: writer.OutcomeTransientError, Err: errors.Wrap(err, "unclassified mongo error, retrying")}
}
