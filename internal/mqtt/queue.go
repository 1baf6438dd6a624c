package mqtt

import "log"

// bufferedMsg is a serialized MQTT message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// lifecycle reports whether the message is a system event rather than a
// per-cycle record.
func (m bufferedMsg) lifecycle() bool {
	return m.topic == TopicSystem
}

// offlineQueue holds messages produced while the broker is unreachable.
// When full, the oldest cycle record is evicted first; lifecycle events are
// evicted only when nothing else is queued.
// Not safe for concurrent use; caller must synchronize.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // evictions since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &offlineQueue{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if len(q.msgs) == q.capacity {
		if q.dropped == 0 {
			log.Printf("mqtt: offline queue full (%d messages), dropping oldest cycle records", q.capacity)
		}
		q.dropped++
		q.evict()
	}
	q.msgs = append(q.msgs, msg)
}

// evict removes the oldest cycle record, or the oldest message if the queue
// holds only lifecycle events.
func (q *offlineQueue) evict() {
	victim := 0
	for i, m := range q.msgs {
		if !m.lifecycle() {
			victim = i
			break
		}
	}
	q.msgs = append(q.msgs[:victim], q.msgs[victim+1:]...)
}

// drain returns the queued messages oldest first and the number evicted
// since the previous drain, then empties the queue.
func (q *offlineQueue) drain() ([]bufferedMsg, int) {
	dropped := q.dropped
	q.dropped = 0
	if len(q.msgs) == 0 {
		return nil, dropped
	}
	out := q.msgs
	q.msgs = make([]bufferedMsg, 0, q.capacity)
	return out, dropped
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
