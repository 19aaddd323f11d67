package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDeliversToAllListeners(t *testing.T) {
	e := &Emitter{}
	var a, b []Event
	e.Listen(func(ev Event) { a = append(a, ev) })
	e.Listen(func(ev Event) { b = append(b, ev) })

	ev := Event{Kind: KindReady, Fields: map[string]any{"peerCount": 3}}
	e.Emit(ev)

	require := assert.New(t)
	require.Len(a, 1)
	require.Len(b, 1)
	require.Equal(ev, a[0])
	require.Equal(ev, b[0])
}

func TestEmitRecoversPanickingListener(t *testing.T) {
	e := &Emitter{}
	var afterCalled bool
	e.Listen(func(ev Event) { panic("listener exploded") })
	e.Listen(func(ev Event) { afterCalled = true })

	assert.NotPanics(t, func() {
		e.Emit(Event{Kind: KindPhase})
	})
	assert.True(t, afterCalled)
}

func TestEmitWithNoListenersIsNoOp(t *testing.T) {
	e := &Emitter{}
	assert.NotPanics(t, func() {
		e.Emit(Event{Kind: KindAnnounced})
	})
}
