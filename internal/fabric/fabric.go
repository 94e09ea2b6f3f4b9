package fabric

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Transport sends one Envelope to a remote peer over whatever wire
// protocol the node uses. internal/rpc's gRPC client implements this.
type Transport interface {
	Send(ctx context.Context, peer uint64, env Envelope) error
}

// instanceKey identifies one (protocol instance, peer) queue.
type instanceKey struct {
	instanceID string
	peer       uint64
}

// Fabric demultiplexes inbound messages onto per-(instance, peer) Queues
// and forwards outbound messages to a Transport. It also implements the
// waiting-peers bootstrap: a protocol instance's first message from a
// given peer may race the instance's own registration (the peer dials in
// before the local orchestrator has created the instance's queues yet), so
// arriving envelopes for an as-yet-unknown instance are held for a grace
// window rather than dropped.
type Fabric struct {
	mu        sync.Mutex
	queues    map[instanceKey]*Queue
	waiting   map[string][]Envelope // instanceID -> envelopes that arrived before registration
	transport Transport
	queueCap  int
	grace     time.Duration
}

// Config controls Fabric's queue capacity and bootstrap grace window.
type Config struct {
	QueueCapacity int
	GraceWindow   time.Duration
}

// DefaultConfig returns reasonable fabric parameters.
func DefaultConfig() Config {
	return Config{QueueCapacity: 256, GraceWindow: 30 * time.Second}
}

// New constructs a Fabric that forwards outbound messages through
// transport.
func New(cfg Config, transport Transport) *Fabric {
	return &Fabric{
		queues:    map[instanceKey]*Queue{},
		waiting:   map[string][]Envelope{},
		transport: transport,
		queueCap:  cfg.QueueCapacity,
		grace:     cfg.GraceWindow,
	}
}

// RegisterInstance creates the per-peer queues for a new protocol
// instance and replays any envelopes that arrived during the bootstrap
// race window, per the waiting-peers contract above.
func (f *Fabric) RegisterInstance(instanceID string, peers []uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range peers {
		f.queues[instanceKey{instanceID, p}] = NewQueue(f.queueCap)
	}

	for _, env := range f.waiting[instanceID] {
		if q, ok := f.queues[instanceKey{instanceID, env.From}]; ok {
			// Best effort: a full queue here would mean the grace window
			// already produced more backlog than capacity allows, which
			// should not happen for a freshly registered instance.
			_ = q.Push(context.Background(), env)
		}
	}
	delete(f.waiting, instanceID)
}

// UnregisterInstance closes and discards every queue belonging to
// instanceID, called once the instance terminates.
func (f *Fabric) UnregisterInstance(instanceID string, peers []uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range peers {
		key := instanceKey{instanceID, p}
		if q, ok := f.queues[key]; ok {
			q.Close()
			delete(f.queues, key)
		}
	}
}

// Deliver is called by the gRPC server when an envelope arrives from a
// peer. If the destination instance is not yet registered, the envelope
// is held in the bootstrap waiting area instead of being dropped; it will
// be replayed once RegisterInstance runs, or discarded after the grace
// window if the instance never arrives (handled by a background sweep the
// caller schedules via PruneWaiting).
func (f *Fabric) Deliver(env Envelope) error {
	f.mu.Lock()
	q, ok := f.queues[instanceKey{env.InstanceID, env.From}]
	if !ok {
		f.waiting[env.InstanceID] = append(f.waiting[env.InstanceID], env)
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()
	return q.Push(context.Background(), env)
}

// PruneWaiting discards the whole waiting backlog of every instance for
// which registered reports false. Envelopes carry no arrival timestamp
// (to keep Envelope wire-format-neutral), so the age of a backlog is not
// checked here: run on a ticker with the grace window as its period, it
// drops an unregistered instance's backlog at the first tick after it
// arrives, so at most one grace window later.
func (f *Fabric) PruneWaiting(registered func(instanceID string) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.waiting {
		if !registered(id) {
			delete(f.waiting, id)
		}
	}
}

// Recv returns the next envelope destined for (instanceID, fromPeer),
// blocking until one arrives or ctx is canceled.
func (f *Fabric) Recv(ctx context.Context, instanceID string, fromPeer uint64) (Envelope, error) {
	f.mu.Lock()
	q, ok := f.queues[instanceKey{instanceID, fromPeer}]
	f.mu.Unlock()
	if !ok {
		return Envelope{}, fmt.Errorf("fabric: no queue for instance %s peer %d", instanceID, fromPeer)
	}
	return q.Pop(ctx)
}

// SendTo forwards an outbound envelope to its destination peer via the
// configured Transport (or loops it back locally if the destination is
// this node, handled by the caller checking its own peer id first).
func (f *Fabric) SendTo(ctx context.Context, peer uint64, env Envelope) error {
	return f.transport.Send(ctx, peer, env)
}
