package mqtt

// bufferedMsg is a serialized characteristic update held for replay after
// reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the most recent updates while the broker is away.
// When full, the oldest update is overwritten. Not safe for concurrent use;
// the caller synchronizes.
type ringBuffer struct {
	items   []bufferedMsg
	oldest  int // index of the oldest entry
	n       int
	dropped int // entries overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{items: make([]bufferedMsg, capacity)}
}

// push appends msg. It returns true on the first drop after a drain so the
// caller logs once per outage.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	size := len(r.items)
	if r.n < size {
		r.items[(r.oldest+r.n)%size] = msg
		r.n++
		return false
	}
	r.items[r.oldest] = msg
	r.oldest = (r.oldest + 1) % size
	r.dropped++
	return r.dropped == 1
}

// drainAll returns the buffered updates oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.items[(r.oldest+i)%len(r.items)])
	}
	r.oldest, r.n, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.n
}

func (r *ringBuffer) size() int {
	return len(r.items)
}
