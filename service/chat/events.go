package chat

import (
	"sync"

	"SupportChat/tools/safe"
)

// Publisher drains the registry's presence events and delivers them
// to every staff connection in the broadcast room. End-user
// connections never see presence events. Fire-and-forget: there is no
// event log and no replay, a dashboard that was offline reads the
// corrected state from the full online list.
type Publisher struct {
	registry *Registry
	rooms    *Rooms
	sink     func(connID string) Sink
	fanout   *Fanout
	export   EventExporter // optional, nil-safe

	stopCh    chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

func NewPublisher(registry *Registry, rooms *Rooms, sink func(string) Sink, fanout *Fanout, export EventExporter) *Publisher {
	return &Publisher{
		registry: registry,
		rooms:    rooms,
		sink:     sink,
		fanout:   fanout,
		export:   export,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Publisher) Start() {
	p.startOnce.Do(func() {
		p.started = true
		go p.run()
	})
}

// Stop halts the drain loop and shuts the fanout workers down; it
// waits for the loop to exit first so no Broadcast can race the
// close.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.started {
			<-p.done
		}
		p.fanout.Close()
	})
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			return
		case ev := <-p.registry.Events():
			p.publish(ev)
		}
	}
}

func (p *Publisher) publish(ev PresenceEvent) {
	members := p.rooms.Members(BroadcastRoom)
	sinks := make([]Sink, 0, len(members))
	for _, connID := range members {
		if s := p.sink(connID); s != nil {
			sinks = append(sinks, s)
		}
	}
	p.fanout.Broadcast(ev.Identity, sinks, ev)

	if p.export != nil {
		safe.Go(func() { p.export.Export(ev) })
	}
}
