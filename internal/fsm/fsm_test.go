package fsm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/pushdeck/internal/fsm"
)

type order struct {
	state   fsm.State
	paid    bool
	shipped bool
}

func (o *order) CurrentState() fsm.State { return o.state }
func (o *order) SetState(s fsm.State)    { o.state = s }

func newOrderMachine() *fsm.Machine[*order] {
	m := fsm.New[*order]("order")
	m.Transition("ship", []fsm.State{"open"}, "shipped", func(o *order) bool { return o.paid })
	m.Transition("cancel", []fsm.State{"open", "shipped"}, "cancelled", nil)
	m.OnEnter("shipped", func(o *order) { o.shipped = true })
	return m
}

func TestFire_GuardPasses(t *testing.T) {
	m := newOrderMachine()
	o := &order{state: "open", paid: true}

	err := m.Fire(o, "ship")
	require.NoError(t, err)
	assert.Equal(t, fsm.State("shipped"), o.state)
	assert.True(t, o.shipped, "entry callback should run")
}

func TestFire_GuardFails(t *testing.T) {
	m := newOrderMachine()
	o := &order{state: "open", paid: false}

	err := m.Fire(o, "ship")
	require.ErrorIs(t, err, fsm.ErrGuardFailed)
	assert.Equal(t, fsm.State("open"), o.state, "guard failure must not change state")
	assert.False(t, o.shipped)
}

func TestFire_UndefinedForState(t *testing.T) {
	m := newOrderMachine()
	o := &order{state: "cancelled"}

	err := m.Fire(o, "ship")
	require.ErrorIs(t, err, fsm.ErrInvalidTransition)
	assert.Equal(t, fsm.State("cancelled"), o.state)
}

func TestFire_MultipleFromStates(t *testing.T) {
	m := newOrderMachine()

	for _, from := range []fsm.State{"open", "shipped"} {
		o := &order{state: from, paid: true}
		require.NoError(t, m.Fire(o, "cancel"))
		assert.Equal(t, fsm.State("cancelled"), o.state)
	}
}

func TestCan(t *testing.T) {
	m := newOrderMachine()

	assert.True(t, m.Can(&order{state: "open"}, "ship"), "Can ignores guards")
	assert.False(t, m.Can(&order{state: "cancelled"}, "ship"))
}
