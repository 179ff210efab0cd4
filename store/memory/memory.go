// Package memory is an in-process store. Several managers sharing one Store
// behave like browser tabs sharing one storage area.
package memory

import (
	"context"
	"sync"

	"github.com/jrsteele09/lunar-session/store"
)

var (
	_ store.Store              = (*Store)(nil)
	_ store.Watcher            = (*Store)(nil)
	_ store.ConditionalClearer = (*Store)(nil)
)

type Store struct {
	data     []byte
	watchers map[int]func()
	nextID   int
	lock     sync.RWMutex
}

func New() *Store {
	return &Store{watchers: make(map[int]func())}
}

func (s *Store) Load(_ context.Context) (*store.Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.data == nil {
		return nil, nil
	}
	return store.Unmarshal(s.data)
}

func (s *Store) Save(_ context.Context, record *store.Record) error {
	data, err := store.Marshal(record)
	if err != nil {
		return err
	}

	s.lock.Lock()
	s.data = data
	s.lock.Unlock()

	s.notify()
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.lock.Lock()
	s.data = nil
	s.lock.Unlock()

	s.notify()
	return nil
}

func (s *Store) ClearIfHolds(_ context.Context, refreshToken string) (bool, error) {
	s.lock.Lock()
	if s.data == nil {
		s.lock.Unlock()
		return false, nil
	}
	record, err := store.Unmarshal(s.data)
	if err != nil || record.RefreshToken != refreshToken {
		s.lock.Unlock()
		return false, err
	}
	s.data = nil
	s.lock.Unlock()

	s.notify()
	return true, nil
}

// Raw returns the stored bytes; nil when empty.
func (s *Store) Raw() []byte {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]byte(nil), s.data...)
}

// WatcherCount returns the number of active Watch calls.
func (s *Store) WatcherCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.watchers)
}

func (s *Store) Watch(ctx context.Context, onChange func()) error {
	s.lock.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = onChange
	s.lock.Unlock()

	<-ctx.Done()

	s.lock.Lock()
	delete(s.watchers, id)
	s.lock.Unlock()
	return nil
}

func (s *Store) notify() {
	s.lock.RLock()
	callbacks := make([]func(), 0, len(s.watchers))
	for _, cb := range s.watchers {
		callbacks = append(callbacks, cb)
	}
	s.lock.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}
