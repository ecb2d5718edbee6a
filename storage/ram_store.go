package storage

import (
	"container/list"
	"sync"
	"time"
)

// RAMStore is an in-memory Adapter, the Go analogue of bplib's store/ram.c:
// every id's bytes live in a map, and a doubly linked list tracks FIFO
// enqueue order for Dequeue. Nothing survives a process restart.
type RAMStore struct {
	mu sync.Mutex

	bytes    map[ID][]byte
	isRecord map[ID]bool
	pending  *list.List // of ID, oldest-enqueued at Front
	queued   map[ID]*list.Element

	nextID ID
	notify chan struct{}
}

// NewRAMStore returns an empty RAMStore.
func NewRAMStore() *RAMStore {
	return &RAMStore{
		bytes:    make(map[ID][]byte),
		isRecord: make(map[ID]bool),
		pending:  list.New(),
		queued:   make(map[ID]*list.Element),
		notify:   make(chan struct{}, 1),
	}
}

func (s *RAMStore) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *RAMStore) Create(isRecord bool, data []byte, timeout time.Duration) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	stored := make([]byte, len(data))
	copy(stored, data)
	s.bytes[id] = stored
	s.isRecord[id] = isRecord

	return id, nil
}

func (s *RAMStore) Enqueue(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bytes[id]; !ok {
		return ErrNotFound{ID: id}
	}
	if _, already := s.queued[id]; already {
		return nil
	}
	s.queued[id] = s.pending.PushBack(id)
	s.wake()
	return nil
}

// Dequeue waits up to timeout for a pending id, following the OS
// abstraction's waiton convention: negative blocks forever, zero returns
// immediately, positive bounds the wait.
func (s *RAMStore) Dequeue(timeout time.Duration) (ID, []byte, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		s.mu.Lock()
		if front := s.pending.Front(); front != nil {
			id := front.Value.(ID)
			s.pending.Remove(front)
			delete(s.queued, id)
			data := s.bytes[id]
			s.mu.Unlock()
			return id, data, nil
		}
		s.mu.Unlock()

		if timeout == 0 {
			return 0, nil, ErrTimeout{}
		}

		var wait time.Duration
		if timeout > 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				return 0, nil, ErrTimeout{}
			}
		} else {
			wait = time.Hour
		}

		select {
		case <-s.notify:
		case <-time.After(wait):
			if timeout > 0 {
				return 0, nil, ErrTimeout{}
			}
		}
	}
}

func (s *RAMStore) Retrieve(id ID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.bytes[id]
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *RAMStore) Release(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.queued[id]; ok {
		s.pending.Remove(elem)
		delete(s.queued, id)
	}
	return nil
}

func (s *RAMStore) Relinquish(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bytes[id]; !ok {
		return ErrNotFound{ID: id}
	}
	if elem, ok := s.queued[id]; ok {
		s.pending.Remove(elem)
		delete(s.queued, id)
	}
	delete(s.bytes, id)
	delete(s.isRecord, id)
	return nil
}

func (s *RAMStore) GetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bytes)
}
