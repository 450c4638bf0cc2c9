package chat

import (
	"sync"
	"time"

	"SupportChat/logger"
	"SupportChat/tools/safe"
)

// ===== config =====

type MonitorConf struct {
	Interval time.Duration // probe cycle, default 25s
	Deadline time.Duration // ack deadline per probe, default 10s
}

func (c *MonitorConf) norm() {
	if c.Interval <= 0 {
		c.Interval = 25 * time.Second
	}
	if c.Deadline <= 0 {
		c.Deadline = 10 * time.Second
	}
}

// Monitor is the only detector of silent disconnects. One scheduling
// loop probes every registered connection each cycle; a connection
// that does not ack before the deadline is evicted through the same
// path as an explicit logout. Everything keys on connection id, never
// on message order.
type Monitor struct {
	conf  MonitorConf
	list  func() []string          // registered conn ids snapshot
	probe func(connID string) error
	evict func(connID string)

	mu      sync.Mutex
	pending map[string]*time.Timer // conn id -> deadline timer
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMonitor(conf MonitorConf, list func() []string, probe func(string) error, evict func(string)) *Monitor {
	conf.norm()
	return &Monitor{
		conf:    conf,
		list:    list,
		probe:   probe,
		evict:   evict,
		pending: make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	for id, t := range m.pending {
		t.Stop()
		delete(m.pending, id)
	}
}

func (m *Monitor) loop() {
	t := time.NewTicker(m.conf.Interval)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			for _, id := range m.list() {
				m.probeOne(id)
			}
		}
	}
}

// probeOne arms the deadline before sending so a racing ack can never
// slip between probe and timer. Each probe is independent: a slow
// connection only stalls its own goroutine, not the cycle.
func (m *Monitor) probeOne(connID string) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if _, waiting := m.pending[connID]; waiting {
		// previous probe still in flight; its deadline decides
		m.mu.Unlock()
		return
	}
	m.pending[connID] = time.AfterFunc(m.conf.Deadline, func() { m.expire(connID) })
	m.mu.Unlock()

	safe.Go(func() {
		if err := m.probe(connID); err != nil {
			// connection already gone; its own close event reaps it
			m.Forget(connID)
		}
	})
}

// Ack cancels the pending deadline. Unsolicited acks (no probe in
// flight) are fine and ignored here.
func (m *Monitor) Ack(connID string) {
	m.Forget(connID)
}

// Forget drops any pending deadline for a connection; called on ack
// and on teardown so no timer outlives its connection.
func (m *Monitor) Forget(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.pending[connID]; ok {
		t.Stop()
		delete(m.pending, connID)
	}
}

func (m *Monitor) expire(connID string) {
	m.mu.Lock()
	_, ok := m.pending[connID]
	if ok {
		delete(m.pending, connID)
	}
	m.mu.Unlock()
	if !ok {
		// acked or forgotten after the timer fired
		return
	}
	logger.Infof("[heartbeat] no ack within %s, evicting conn=%s", m.conf.Deadline, connID)
	m.evict(connID)
}

// Waiting reports whether a deadline is armed for the connection;
// test hook.
func (m *Monitor) Waiting(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[connID]
	return ok
}
