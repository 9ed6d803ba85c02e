package quiz

import "sync"

// saveQueue orders persistence by ticket. A ticket is taken while the
// session mutex is held, so saves run in the order their state changes
// happened even though they run after the mutex is released.
type saveQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64
	turn uint64
}

func (q *saveQueue) take() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.next
	q.next++
	return n
}

func (q *saveQueue) wait(ticket uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cond == nil {
		q.cond = sync.NewCond(&q.mu)
	}
	for q.turn != ticket {
		q.cond.Wait()
	}
}

func (q *saveQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.turn++
	if q.cond != nil {
		q.cond.Broadcast()
	}
}
