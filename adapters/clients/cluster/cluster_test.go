package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/clusterbus"
)

func TestInMemoryDeliversToSubscribers(t *testing.T) {
	bus := NewInMemory()
	id, _ := twinid.Parse("a:b")

	var received []clusterbus.ChangeNotification
	unsubscribe, err := bus.Subscribe(context.Background(), func(n clusterbus.ChangeNotification) {
		received = append(received, n)
	})
	require.NoError(t, err)
	defer unsubscribe()

	bus.Publish(clusterbus.ChangeNotification{TwinID: id, ThingRevision: 1})
	require.Len(t, received, 1)
	assert.Equal(t, id, received[0].TwinID)
}

func TestInMemoryUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemory()
	id, _ := twinid.Parse("a:b")

	var count int
	unsubscribe, err := bus.Subscribe(context.Background(), func(n clusterbus.ChangeNotification) {
		count++
	})
	require.NoError(t, err)

	bus.Publish(clusterbus.ChangeNotification{TwinID: id})
	unsubscribe()
	bus.Publish(clusterbus.ChangeNotification{TwinID: id})

	assert.Equal(t, 1, count)
}

func TestProductionStubReturnsNotImplemented(t *testing.T) {
	stub := NewProductionStub()
	_, err := stub.Subscribe(context.Background(), func(clusterbus.ChangeNotification) {})
	require.Error(t, err)
}
