package reader

// runeQueue is a FIFO of runes backed by a slice with a moving head.
type runeQueue struct {
	buf  []rune
	head int
}

func (q *runeQueue) Len() int {
	return len(q.buf) - q.head
}

func (q *runeQueue) Push(r rune) {
	q.buf = append(q.buf, r)
}

func (q *runeQueue) PushAll(rs []rune) {
	q.buf = append(q.buf, rs...)
}

func (q *runeQueue) PushString(s string) {
	for _, r := range s {
		q.buf = append(q.buf, r)
	}
}

// Front returns the head rune. The queue must not be empty.
func (q *runeQueue) Front() rune {
	return q.buf[q.head]
}

// Pop removes and returns the head rune. The queue must not be empty.
func (q *runeQueue) Pop() rune {
	r := q.buf[q.head]
	q.head++
	q.compact()
	return r
}

// PopInto moves up to len(dst) runes into dst.
func (q *runeQueue) PopInto(dst []rune) int {
	n := copy(dst, q.buf[q.head:])
	q.head += n
	q.compact()
	return n
}

func (q *runeQueue) compact() {
	switch {
	case q.head == len(q.buf):
		q.buf = q.buf[:0]
		q.head = 0
	case q.head >= 1024 && q.head*2 >= len(q.buf):
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		q.head = 0
	}
}

func (q *runeQueue) Reset() {
	q.buf = nil
	q.head = 0
}
