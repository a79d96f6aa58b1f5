package enrichment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
)

func TestRetrieveThingFullFetchWhenNoEvents(t *testing.T) {
	id, _ := twinid.Parse("a:b")
	var calls int32
	f := New(10, time.Minute, func(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, error) {
		atomic.AddInt32(&calls, 1)
		return &models.Twin{TwinID: twinID, Revision: 1}, true, nil
	}, nil, nil)

	twin, exists, ok := f.RetrieveThing(context.Background(), id, nil, -1)
	require.True(t, ok)
	require.True(t, exists)
	assert.Equal(t, int64(1), twin.Revision)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRetrieveThingIncrementalApplication(t *testing.T) {
	id, _ := twinid.Parse("a:b")
	var calls int32
	f := New(10, time.Minute, func(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, error) {
		atomic.AddInt32(&calls, 1)
		return &models.Twin{TwinID: twinID, Revision: 1, Attributes: map[string]any{"x": 1}}, true, nil
	}, nil, nil)

	// seed the cache with a full fetch
	_, exists, ok := f.RetrieveThing(context.Background(), id, nil, -1)
	require.True(t, ok)
	require.True(t, exists)

	twin, exists, ok := f.RetrieveThing(context.Background(), id, []models.Event{
		{Revision: 2, Kind: models.EventAttributeModified, Payload: models.EventPayload{AttributePointer: "x", AttributeValue: 2}},
	}, 2)
	require.True(t, ok)
	require.True(t, exists)
	assert.Equal(t, int64(2), twin.Revision)
	assert.EqualValues(t, 2, twin.Attributes["x"])
	// only the initial seed fetch should have hit the fetcher
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRetrieveThingFallsBackOnRevisionGap(t *testing.T) {
	id, _ := twinid.Parse("a:b")
	var calls int32
	f := New(10, time.Minute, func(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, error) {
		n := atomic.AddInt32(&calls, 1)
		return &models.Twin{TwinID: twinID, Revision: int64(n)}, true, nil
	}, nil, nil)

	_, exists, ok := f.RetrieveThing(context.Background(), id, nil, -1)
	require.True(t, ok)
	require.True(t, exists)

	twin, exists, ok := f.RetrieveThing(context.Background(), id, []models.Event{
		{Revision: 5, Kind: models.EventAttributeModified},
	}, 5)
	require.True(t, ok)
	require.True(t, exists)
	// fell back to a full fetch, which bumped revision to 2 (second call)
	assert.Equal(t, int64(2), twin.Revision)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRetrieveThingFetchFailureYieldsSkip(t *testing.T) {
	id, _ := twinid.Parse("a:b")
	f := New(10, time.Minute, func(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, error) {
		return nil, false, assertErr
	}, nil, nil)

	_, exists, ok := f.RetrieveThing(context.Background(), id, nil, -1)
	assert.False(t, ok)
	assert.False(t, exists)
}

func TestRetrieveThingNonexistentTwin(t *testing.T) {
	id, _ := twinid.Parse("a:b")
	f := New(10, time.Minute, func(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, error) {
		return nil, false, nil
	}, nil, nil)

	_, exists, ok := f.RetrieveThing(context.Background(), id, nil, -1)
	require.True(t, ok)
	assert.False(t, exists)
}

var assertErr = errFetch{}

type errFetch struct{}

func (errFetch) Error() string { return "fetch failed" }
