package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watthouse/agent/models"
)

func TestSubscribersFireInRegistrationOrder(t *testing.T) {
	b := New(nil)
	var order []string
	b.Subscribe(func(ev Event) { order = append(order, "first") })
	b.Subscribe(func(ev Event) { order = append(order, "second") })

	b.EmitStart([]Target{{Resource: models.LocalMachine(), Consumer: models.ConsumerProcess(42)}})

	require.Len(t, order, 2)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSubscriberPanicIsIsolated(t *testing.T) {
	b := New(nil)
	calledSecond := false
	b.Subscribe(func(ev Event) { panic("boom") })
	b.Subscribe(func(ev Event) { calledSecond = true })

	b.EmitEnd([]Target{{Resource: models.LocalMachine(), Consumer: models.ConsumerProcess(1)}})
	assert.True(t, calledSecond)
}

func TestSubscribeDoesNotSeePastEmissions(t *testing.T) {
	b := New(nil)
	b.EmitStart([]Target{{Resource: models.LocalMachine(), Consumer: models.ConsumerProcess(1)}})

	called := false
	b.Subscribe(func(ev Event) { called = true })
	assert.False(t, called)
}
