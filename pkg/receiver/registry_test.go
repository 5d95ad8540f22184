package receiver_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2008Choco/Networking/pkg/data"
	"github.com/2008Choco/Networking/pkg/receiver"
)

var channel = data.MustKey("example", "channel")

type world struct {
	delivered [][]byte
}

type populated interface {
	Deliver(payload []byte)
}

func (w *world) Deliver(payload []byte) {
	w.delivered = append(w.delivered, payload)
}

func TestProxyExactMatch(t *testing.T) {
	registry := receiver.NewProxyRegistry()
	receiver.RegisterProxy(registry, func(to *world, ch data.NamespacedKey, payload []byte) error {
		assert.Equal(t, channel, ch)
		to.Deliver(payload)
		return nil
	})

	target := &world{}
	require.NoError(t, registry.SendMessage(target, channel, []byte{1, 2}))
	assert.Equal(t, [][]byte{{1, 2}}, target.delivered)
}

func TestProxySupertypeFallback(t *testing.T) {
	registry := receiver.NewProxyRegistry()
	receiver.RegisterProxy(registry, func(to populated, ch data.NamespacedKey, payload []byte) error {
		to.Deliver(payload)
		return nil
	})

	// *world is not registered, but implements populated.
	target := &world{}
	require.NoError(t, registry.SendMessage(target, channel, []byte{3}))
	assert.Equal(t, [][]byte{{3}}, target.delivered)
}

func TestProxyUnknownType(t *testing.T) {
	registry := receiver.NewProxyRegistry()

	err := registry.SendMessage("not registered", channel, []byte{1})
	assert.ErrorIs(t, err, receiver.ErrNoProxy)
}

func TestProxyKnows(t *testing.T) {
	registry := receiver.NewProxyRegistry()
	receiver.RegisterProxy(registry, func(to *world, ch data.NamespacedKey, payload []byte) error {
		return nil
	})

	assert.True(t, registry.Knows(reflect.TypeOf(&world{})))
	assert.False(t, registry.Knows(reflect.TypeOf("string")))
}
