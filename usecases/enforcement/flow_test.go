package enforcement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/policy"
)

func mustID(t *testing.T, raw string) twinid.ID {
	id, err := twinid.Parse(raw)
	require.NoError(t, err)
	return id
}

func TestFlowRunEmitsDeleteWhenTwinConfirmedAbsent(t *testing.T) {
	id := mustID(t, "a:missing")

	f := New(Config{Partitions: 1, Parallelism: 1},
		func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (*models.Twin, bool, bool) {
			return nil, false, true
		},
		func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
			return nil, false
		}, nil, nil)

	batch := map[twinid.ID]models.Metadata{id: models.NewMetadata(id)}
	partitions := f.Run(context.Background(), batch)
	assert.Equal(t, models.KindDelete, partitions[0][0].Kind)
}

func TestFlowRunSkipsOnTransientTwinFetchFailure(t *testing.T) {
	id := mustID(t, "a:unreachable")

	f := New(Config{Partitions: 1, Parallelism: 1},
		func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (*models.Twin, bool, bool) {
			return nil, false, false
		},
		func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
			return nil, false
		}, nil, nil)

	batch := map[twinid.ID]models.Metadata{id: models.NewMetadata(id)}
	partitions := f.Run(context.Background(), batch)
	assert.Empty(t, partitions[0])
}

func TestFlowRunEmitsDeleteOnDeletedEvent(t *testing.T) {
	id := mustID(t, "a:b")
	policyID := mustID(t, "a:policy")
	twin := &models.Twin{TwinID: id, PolicyID: policyID, Revision: 5}

	f := New(Config{Partitions: 1, Parallelism: 1},
		func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (*models.Twin, bool, bool) {
			return twin, true, true
		},
		func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
			return allowAllEnforcer(1), true
		}, nil, nil)

	md := models.NewMetadata(id)
	md.Events = []models.Event{{Revision: 6, Timestamp: time.Now(), Kind: models.EventDeleted}}
	batch := map[twinid.ID]models.Metadata{id: md}

	partitions := f.Run(context.Background(), batch)
	assert.Equal(t, models.KindDelete, partitions[0][0].Kind)
}

func TestFlowRunEmitsDeleteWhenPolicyIDMissing(t *testing.T) {
	id := mustID(t, "a:b")
	twin := &models.Twin{TwinID: id, Revision: 5}

	f := New(Config{Partitions: 1, Parallelism: 1},
		func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (*models.Twin, bool, bool) {
			return twin, true, true
		},
		func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
			return allowAllEnforcer(1), true
		}, nil, nil)

	batch := map[twinid.ID]models.Metadata{id: models.NewMetadata(id)}
	partitions := f.Run(context.Background(), batch)
	assert.Equal(t, models.KindDelete, partitions[0][0].Kind)
}

func TestFlowRunEmitsDeleteWhenNoEnforcer(t *testing.T) {
	id := mustID(t, "a:b")
	policyID := mustID(t, "a:policy")
	twin := &models.Twin{TwinID: id, PolicyID: policyID, Revision: 5}

	f := New(Config{Partitions: 1, Parallelism: 1},
		func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (*models.Twin, bool, bool) {
			return twin, true, true
		},
		func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
			return nil, false
		}, nil, nil)

	batch := map[twinid.ID]models.Metadata{id: models.NewMetadata(id)}
	partitions := f.Run(context.Background(), batch)
	assert.Equal(t, models.KindDelete, partitions[0][0].Kind)
}

func TestFlowRunEmitsPutOnSuccess(t *testing.T) {
	id := mustID(t, "a:b")
	policyID := mustID(t, "a:policy")
	twin := &models.Twin{TwinID: id, PolicyID: policyID, Revision: 5, Attributes: map[string]any{"x": 1}}

	f := New(Config{Partitions: 1, Parallelism: 1},
		func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (*models.Twin, bool, bool) {
			return twin, true, true
		},
		func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
			return allowAllEnforcer(2), true
		}, nil, nil)

	batch := map[twinid.ID]models.Metadata{id: models.NewMetadata(id)}
	partitions := f.Run(context.Background(), batch)
	result := partitions[0][0]
	require.Equal(t, models.KindPut, result.Kind)
	assert.Equal(t, int64(2), result.Metadata.PolicyRevision)
}

func TestFlowRunPartitionsByHash(t *testing.T) {
	ids := []twinid.ID{mustID(t, "a:one"), mustID(t, "a:two"), mustID(t, "a:three"), mustID(t, "a:four")}
	policyID := mustID(t, "a:policy")

	f := New(Config{Partitions: 4, Parallelism: 4},
		func(ctx context.Context, twinID twinid.ID, events []models.Event, expectedRevision int64) (*models.Twin, bool, bool) {
			return &models.Twin{TwinID: twinID, PolicyID: policyID, Revision: 1}, true, true
		},
		func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
			return allowAllEnforcer(1), true
		}, nil, nil)

	batch := map[twinid.ID]models.Metadata{}
	for _, id := range ids {
		batch[id] = models.NewMetadata(id)
	}

	partitions := f.Run(context.Background(), batch)
	total := 0
	for _, p := range partitions {
		total += len(p)
	}
	assert.Equal(t, len(ids), total)
}
