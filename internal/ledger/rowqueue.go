package ledger

import "sync"

// rowQueue runs jobs for the same row key one at a time, in submission
// order. Jobs for different keys run concurrently.
type rowQueue struct {
	mu      sync.Mutex
	pending map[uint64][]func()
	running map[uint64]bool
	wg      sync.WaitGroup
}

func newRowQueue() *rowQueue {
	return &rowQueue{
		pending: make(map[uint64][]func()),
		running: make(map[uint64]bool),
	}
}

func (q *rowQueue) submit(key uint64, job func()) {
	q.wg.Add(1)

	q.mu.Lock()
	q.pending[key] = append(q.pending[key], job)
	if q.running[key] {
		q.mu.Unlock()
		return
	}
	q.running[key] = true
	q.mu.Unlock()

	go q.drain(key)
}

func (q *rowQueue) drain(key uint64) {
	for {
		q.mu.Lock()
		jobs := q.pending[key]
		if len(jobs) == 0 {
			delete(q.pending, key)
			delete(q.running, key)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[key] = jobs[1:]
		q.mu.Unlock()

		job()
		q.wg.Done()
	}
}

// flush blocks until every job submitted for key so far has run.
func (q *rowQueue) flush(key uint64) {
	done := make(chan struct{})
	q.submit(key, func() { close(done) })
	<-done
}

func (q *rowQueue) wait() {
	q.wg.Wait()
}
