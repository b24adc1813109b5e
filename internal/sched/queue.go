package sched

// QueueID identifies a queue in the kernel's queue table.
type QueueID int

// NoQueue marks an empty queue reference.
const NoQueue QueueID = -1

// QueueDef declares a queue at build time. The consumer is the task that
// lists the queue in its TaskDef.Queues; a queue nobody lists has none.
type QueueDef struct {
	Name        string
	ElemSize    int
	Capacity    int
	Schedulable bool // inserting makes the consumer ready
}

// QueueInfo holds queue performance counters.
type QueueInfo struct {
	Inserts uint32
	Removes uint32
	Empty   uint32
	Full    uint32
}

// queue is a fixed capacity ring of fixed size elements. Any task or ISR may
// insert; only the consumer removes.
type queue struct {
	def      QueueDef
	buf      []byte
	in, out  int // element indexes
	count    int
	consumer *Task
	info     QueueInfo
}

func newQueue(def QueueDef) *queue {
	return &queue{
		def: def,
		buf: make([]byte, def.ElemSize*def.Capacity),
	}
}

func (q *queue) slot(i int) []byte {
	off := i * q.def.ElemSize
	return q.buf[off : off+q.def.ElemSize]
}

func (k *Kernel) queue(id QueueID) *queue {
	if !k.assert(id >= 0 && int(id) < len(k.queues), ErrCodeQueueID, "bad queue %d", id) {
		return nil
	}
	return k.queues[id]
}

// QueueInsert copies elem into the queue. It returns ErrQueueFull without
// touching the queue when it is full. On a schedulable queue the consumer is
// made ready; if the consumer is suspended or a zombie the element is
// discarded and nil is returned.
func (k *Kernel) QueueInsert(id QueueID, elem []byte) error {
	q := k.queue(id)
	if q == nil {
		return nil
	}
	if !k.assert(len(elem) == q.def.ElemSize, ErrCodeQueueElem,
		"queue %d: element of %d bytes, want %d", id, len(elem), q.def.ElemSize) {
		return nil
	}

	k.enterCritical()
	defer k.exitCritical()

	if q.count >= q.def.Capacity {
		q.info.Full++
		k.trace(TraceQueueFull, NoTask, int(id), 0)
		return ErrQueueFull
	}
	if q.def.Schedulable && q.consumer != nil && !k.setReady(q.consumer) {
		return nil
	}

	k.pending = true
	copy(q.slot(q.in), elem)
	if q.in++; q.in >= q.def.Capacity {
		q.in = 0
	}
	q.count++
	q.info.Inserts++
	k.trace(TraceQueueInsert, NoTask, int(id), int64(q.count))
	return nil
}

// QueueRemove copies the oldest element into out and drops it from the
// queue. It returns ErrQueueEmpty when there is nothing to remove.
func (k *Kernel) QueueRemove(id QueueID, out []byte) error {
	q := k.queue(id)
	if q == nil {
		return ErrQueueEmpty
	}
	if !k.assert(len(out) >= q.def.ElemSize, ErrCodeQueueElem,
		"queue %d: buffer of %d bytes, want %d", id, len(out), q.def.ElemSize) {
		return ErrQueueEmpty
	}

	k.enterCritical()
	defer k.exitCritical()

	if q.count == 0 {
		q.info.Empty++
		return ErrQueueEmpty
	}
	copy(out, q.slot(q.out))
	if q.out++; q.out >= q.def.Capacity {
		q.out = 0
	}
	q.count--
	q.info.Removes++
	k.trace(TraceQueueRemove, NoTask, int(id), int64(q.count))
	return nil
}

// QueueRead copies the oldest element into out without removing it.
func (k *Kernel) QueueRead(id QueueID, out []byte) error {
	q := k.queue(id)
	if q == nil {
		return ErrQueueEmpty
	}
	if !k.assert(len(out) >= q.def.ElemSize, ErrCodeQueueElem,
		"queue %d: buffer of %d bytes, want %d", id, len(out), q.def.ElemSize) {
		return ErrQueueEmpty
	}

	k.enterCritical()
	defer k.exitCritical()

	if q.count == 0 {
		return ErrQueueEmpty
	}
	copy(out, q.slot(q.out))
	return nil
}

// QueueDeplete discards every element of the queue.
func (k *Kernel) QueueDeplete(id QueueID) {
	q := k.queue(id)
	if q == nil {
		return
	}

	k.enterCritical()
	q.count = 0
	q.in, q.out = 0, 0
	k.exitCritical()

	k.trace(TraceQueueDeplete, NoTask, int(id), 0)
}

// QueueLen returns the number of elements waiting in the queue; zero means
// empty.
func (k *Kernel) QueueLen(id QueueID) int {
	q := k.queue(id)
	if q == nil {
		return 0
	}
	k.enterCritical()
	defer k.exitCritical()
	return q.count
}

// QueueCap returns the fixed capacity of the queue.
func (k *Kernel) QueueCap(id QueueID) int {
	q := k.queue(id)
	if q == nil {
		return 0
	}
	return q.def.Capacity
}

// QueueInfo returns the performance counters of the queue.
func (k *Kernel) QueueInfo(id QueueID) QueueInfo {
	q := k.queue(id)
	if q == nil {
		return QueueInfo{}
	}
	k.enterCritical()
	defer k.exitCritical()
	return q.info
}

// QueueClearInfo zeroes the performance counters of the queue.
func (k *Kernel) QueueClearInfo(id QueueID) {
	q := k.queue(id)
	if q == nil {
		return
	}
	k.enterCritical()
	q.info = QueueInfo{}
	k.exitCritical()
}
