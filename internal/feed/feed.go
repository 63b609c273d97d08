// Package feed turns a push subscription on remote row changes into
// normalized insert, update and delete events.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// State is the connection state of a subscription.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateError        State = "error"
)

// Event names carried by notifications.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Notification is one row change as delivered by a transport. Record holds the
// new row, OldRecord the previous row when the transport provides it.
type Notification struct {
	Event     string          `json:"event"`
	Table     string          `json:"table"`
	Origin    string          `json:"origin,omitempty"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// Transport is a push subscription for one owner's row changes. Listen calls
// ready once the subscription is live, then deliver for every notification,
// and blocks until ctx is done or the subscription fails.
type Transport interface {
	Listen(ctx context.Context, owner string, ready func(), deliver func(Notification)) error
}

// Adapter owns one subscription at a time and reports its state.
type Adapter struct {
	transport Transport
	session   string
	handler   Handler
	onState   func(State)
	log       *slog.Logger

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter creates an adapter. Notifications tagged with session are
// dropped as echoes of this process's own writes. onState may be nil.
func NewAdapter(t Transport, session string, h Handler, onState func(State), log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		transport: t,
		session:   session,
		handler:   h,
		onState:   onState,
		log:       log.With("component", "feed"),
		state:     StateDisconnected,
	}
}

// Subscribe tears down any current subscription and starts a new one for
// owner in the background.
func (a *Adapter) Subscribe(owner string) {
	a.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	a.setState(gen, StateConnecting)
	go a.run(ctx, gen, owner, done)
}

// Unsubscribe stops the current subscription and waits for it to exit.
func (a *Adapter) Unsubscribe() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.setState(gen, StateDisconnected)
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connected reports whether the subscription is live.
func (a *Adapter) Connected() bool {
	return a.State() == StateSubscribed
}

func (a *Adapter) run(ctx context.Context, gen uint64, owner string, done chan struct{}) {
	defer close(done)

	log := a.log.With("owner", owner)
	ready := func() {
		log.Info("feed subscribed")
		a.setState(gen, StateSubscribed)
	}
	deliver := func(n Notification) {
		if ctx.Err() != nil {
			return
		}
		a.dispatch(log, n)
	}

	err := a.transport.Listen(ctx, owner, ready, deliver)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warn("feed subscription failed", "err", err)
		a.setState(gen, StateError)
		return
	}
	a.setState(gen, StateDisconnected)
}

// setState applies s if gen is still the current subscription.
func (a *Adapter) setState(gen uint64, s State) {
	a.mu.Lock()
	if gen != a.gen || a.state == s {
		a.mu.Unlock()
		return
	}
	a.state = s
	a.mu.Unlock()

	if a.onState != nil {
		a.onState(s)
	}
}
