package pdqueue

// Queue is a singly-linked list of elements (spec.md §4.3). Insertion order
// is unspecified; iteration order is stable across a single scan. A Queue is
// mutated only by the engine's single worker — no internal locking.
type Queue struct {
	head *Element
	len  int
}

// Insert links e at the head of the queue.
func (q *Queue) Insert(e *Element) {
	e.Next = q.head
	q.head = e
	q.len++
}

// Len returns the number of linked elements.
func (q *Queue) Len() int { return q.len }

// Head returns the first element, or nil if the queue is empty.
func (q *Queue) Head() *Element { return q.head }

// Each calls fn for every element in stable order. fn must not mutate the
// queue's linkage; use DeleteElement for that, driven from a saved next
// pointer as SendDue does.
func (q *Queue) Each(fn func(*Element)) {
	for e := q.head; e != nil; e = e.Next {
		fn(e)
	}
}

// FindByComID returns the first element whose address matches comID, or nil.
func (q *Queue) FindByComID(comID uint32) *Element {
	for e := q.head; e != nil; e = e.Next {
		if e.Address.ComID == comID {
			return e
		}
	}
	return nil
}

// IncomingAddr is the addressing observed on a received frame, used to match
// a subscriber.
type IncomingAddr struct {
	ComID  uint32
	SrcIP  uint32
	DestIP uint32 // unicast destination, or the multicast group it arrived on
}

// FindSubscriber returns the subscriber whose (comID, destIP/mcGroup, optional
// srcIP filter) matches the given incoming address, or nil (spec.md §4.3).
func (q *Queue) FindSubscriber(in IncomingAddr) *Element {
	for e := q.head; e != nil; e = e.Next {
		if e.Address.ComID != in.ComID {
			continue
		}

		wantDest := e.Address.DestIP
		if e.Address.McGroup != 0 {
			wantDest = e.Address.McGroup
		}
		if wantDest != 0 && wantDest != in.DestIP {
			continue
		}

		if e.Address.SrcIP != 0 && e.Address.SrcIP != in.SrcIP {
			continue
		}

		return e
	}
	return nil
}

// DeleteElement unlinks e from the queue in O(n). It is a no-op if e is not
// linked into q.
func (q *Queue) DeleteElement(e *Element) {
	if q.head == e {
		q.head = e.Next
		e.Next = nil
		q.len--
		return
	}

	for cur := q.head; cur != nil && cur.Next != nil; cur = cur.Next {
		if cur.Next == e {
			cur.Next = e.Next
			e.Next = nil
			q.len--
			return
		}
	}
}
