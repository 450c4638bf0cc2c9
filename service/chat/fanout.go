package chat

import "hash/crc32"

type fanoutJob struct {
	sinks []Sink
	ev    PresenceEvent
}

// Fanout is a small worker pool pushing presence events to sinks so
// the publisher loop never waits on a slow batch of staff
// connections. Jobs are partitioned by key onto one queue per worker,
// so two events for the same identity are always delivered by the
// same worker in enqueue order; sinks enqueue non-blocking
// themselves, the pool just bounds the burst work.
type Fanout struct {
	queues []chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	f := &Fanout{queues: make([]chan fanoutJob, workers)}
	for i := range f.queues {
		jobs := make(chan fanoutJob, queue)
		f.queues[i] = jobs
		go func() {
			for job := range jobs {
				for _, s := range job.sinks {
					s.DeliverPresence(job.ev)
				}
			}
		}()
	}
	return f
}

// Broadcast enqueues one delivery job; key picks the worker, so
// callers that key by identity get per-identity ordering.
func (f *Fanout) Broadcast(key string, sinks []Sink, ev PresenceEvent) {
	if len(sinks) == 0 {
		return
	}
	n := crc32.ChecksumIEEE([]byte(key)) % uint32(len(f.queues))
	f.queues[n] <- fanoutJob{sinks: sinks, ev: ev}
}

// Close stops the workers once queued jobs drain. Callers must not
// Broadcast afterwards.
func (f *Fanout) Close() {
	for _, jobs := range f.queues {
		close(jobs)
	}
}
