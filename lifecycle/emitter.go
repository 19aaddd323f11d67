// Package lifecycle implements the host-facing event broadcast used by the
// monitor and the bootstrap orchestrator (spec.md §6.5, §9 Design Notes
// "Callback-heavy async composition"): a flat event struct and an emitter
// that isolates each listener behind a recover() boundary so a panicking
// listener cannot corrupt emitter state or stop delivery to others
// (spec.md §5 "Suspension points").
package lifecycle

// Kind enumerates the event kinds the core emits to the host.
type Kind string

const (
	KindPhase            Kind = "phase"
	KindPeerDiscovered   Kind = "peer-discovered"
	KindPeerRegistered   Kind = "peer-registered"
	KindChannelOpened    Kind = "channel-opened"
	KindHandshakeFailed  Kind = "handshake-failed"
	KindAnnounced        Kind = "announced"
	KindAnnounceFailed   Kind = "announce-failed"
	KindPeerDeregistered Kind = "peer-deregistered"
	KindReady            Kind = "ready"
)

// Event is a single emitted occurrence. Fields is a loosely-typed payload
// bag (per spec.md §6.5 "each carries the fields listed in §4.6/§4.5") —
// callers look up the keys documented for the event's Kind.
type Event struct {
	Kind   Kind
	Fields map[string]any
}

// Listener receives emitted events. A panicking Listener is recovered by
// Emitter.Emit and does not affect other listeners.
type Listener func(Event)

// Emitter is a simple, unsynchronized broadcast list. Crosstown components
// register listeners once at construction time and emit from whichever
// goroutine owns the component (the monitor's read loop, the orchestrator's
// single bootstrap goroutine) — concurrent Emit calls from the same
// Emitter are safe because Listen is not expected to mutate listeners
// concurrently with Emit; components that need that guarantee wrap this in
// their own mutex the way the teacher's session manager wraps its maps.
type Emitter struct {
	listeners []Listener
}

// Listen registers a new listener. Not safe to call concurrently with Emit.
func (e *Emitter) Listen(l Listener) {
	e.listeners = append(e.listeners, l)
}

// Emit delivers ev to every registered listener, recovering any panic so
// one bad listener cannot prevent delivery to the rest.
func (e *Emitter) Emit(ev Event) {
	for _, l := range e.listeners {
		func(l Listener) {
			defer func() { _ = recover() }()
			l(ev)
		}(l)
	}
}
