package watch

// Notification is one outbound operator message.
type Notification struct {
	ChatID int64
	Text   string
}

// Queue hands notifications from the scan loop to whatever transport sends
// them. The loop enqueues without blocking; a single consumer drains the
// channel and performs the actual sends, so a slow messaging backend never
// stalls scanning.
type Queue struct {
	ch chan Notification
}

// NewQueue returns a queue buffering up to size notifications.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan Notification, size)}
}

// TryEnqueue adds n to the queue, reporting false when the buffer is full.
// Dropped notifications are the caller's to log; the order outcome itself is
// already persisted by then.
func (q *Queue) TryEnqueue(n Notification) bool {
	select {
	case q.ch <- n:
		return true
	default:
		return false
	}
}

// Chan is the receive side for the consumer.
func (q *Queue) Chan() <-chan Notification { return q.ch }
