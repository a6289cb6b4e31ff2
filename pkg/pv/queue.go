package pv

// Queue is the bounded, per-channel update queue between a Client and the
// Stream draining it. It is implemented as a buffered channel: the channel
// runtime already serializes updates in client-produced order, and a
// non-blocking send with a default case gives drop-on-overflow without any
// extra locking.
type Queue struct {
	ch chan Update
}

// NewQueue creates a queue with the given bound. A depth of 0 is treated as
// 1 to avoid an unusable, always-full queue.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = 1
	}
	return &Queue{ch: make(chan Update, depth)}
}

// Push attempts to enqueue u without blocking. It returns false when the
// queue is full, at which point the caller is responsible for counting
// local_queue_full and dropping the update.
func (q *Queue) Push(u Update) bool {
	select {
	case q.ch <- u:
		return true
	default:
		return false
	}
}

// Chan exposes the receive side for a Stream to drain.
func (q *Queue) Chan() <-chan Update {
	return q.ch
}

// Len reports the number of updates currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}
