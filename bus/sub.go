package bus

import "sync"

// channelSub is the channel side shared by both implementations. send
// blocks until the subscriber has room or unsubscribes.
type channelSub struct {
	ch   chan *Message
	done chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	onClose func()
}

func newChannelSub(size int, onClose func()) *channelSub {
	return &channelSub{
		ch:      make(chan *Message, size),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (s *channelSub) send(msg *Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	case <-s.done:
		return false
	}
}

func (s *channelSub) Messages() <-chan *Message {
	return s.ch
}

func (s *channelSub) Unsubscribe() error {
	s.once.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}
