package docstore

import (
	"context"
	"sync"
)

// feed turns "something changed" signals into versioned snapshots delivered
// to subscribers. Every driver owns one feed per collection.
type feed struct {
	name string
	list func(ctx context.Context) ([]Document, error)

	mu      sync.Mutex
	version uint64
	nextID  int
	subs    map[int]*subscriber
}

func newFeed(name string, list func(ctx context.Context) ([]Document, error)) *feed {
	return &feed{name: name, list: list, subs: map[int]*subscriber{}}
}

// refresh lists the collection and offers the result to every subscriber.
// Listing happens under the feed lock so versions follow read order.
func (f *feed) refresh(ctx context.Context) error {
	f.mu.Lock()
	if len(f.subs) == 0 {
		f.mu.Unlock()
		return nil
	}
	docs, err := f.list(ctx)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.version++
	snap := Snapshot{Collection: f.name, Version: f.version, Docs: docs}
	subs := make([]*subscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.offer(snap)
	}
	return nil
}

func (f *feed) subscribe(ctx context.Context, fn func(Snapshot)) (func(), error) {
	f.mu.Lock()
	docs, err := f.list(ctx)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.version++
	id := f.nextID
	f.nextID++
	sub := newSubscriber(fn)
	f.subs[id] = sub
	snap := Snapshot{Collection: f.name, Version: f.version, Docs: docs}
	f.mu.Unlock()

	go sub.run()
	sub.offer(snap)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			sub.stop()
		})
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-sub.done:
			}
		}()
	}
	return cancel, nil
}

func (f *feed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *feed) closeAll() {
	f.mu.Lock()
	subs := f.subs
	f.subs = map[int]*subscriber{}
	f.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

// subscriber holds at most one pending snapshot. Callbacks run on the
// subscriber's own goroutine, so a callback may safely mutate the store.
type subscriber struct {
	fn func(Snapshot)

	mu      sync.Mutex
	pending *Snapshot
	last    uint64

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscriber(fn func(Snapshot)) *subscriber {
	return &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscriber) offer(snap Snapshot) {
	s.mu.Lock()
	if snap.Version > s.last && (s.pending == nil || snap.Version > s.pending.Version) {
		s.pending = &snap
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		if snap != nil {
			s.last = snap.Version
		}
		s.mu.Unlock()

		if snap == nil {
			continue
		}
		select {
		case <-s.done:
			return
		default:
			s.fn(*snap)
		}
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
