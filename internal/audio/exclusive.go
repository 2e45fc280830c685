package audio

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type exclusiveDevice struct {
	dev Device
	sem *semaphore.Weighted
}

// Exclusive wraps d so that at most one stream is open at a time. Open
// fails with ErrDeviceBusy until the previous stream is released.
func Exclusive(d Device) Device {
	return &exclusiveDevice{dev: d, sem: semaphore.NewWeighted(1)}
}

func (e *exclusiveDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if !e.sem.TryAcquire(1) {
		return nil, ErrDeviceBusy
	}
	s, err := e.dev.Open(ctx, c)
	if err != nil {
		e.sem.Release(1)
		return nil, err
	}
	return &exclusiveStream{Stream: s, sem: e.sem}, nil
}

type exclusiveStream struct {
	Stream
	sem  *semaphore.Weighted
	once sync.Once
}

func (s *exclusiveStream) Release() {
	s.once.Do(func() {
		s.Stream.Release()
		s.sem.Release(1)
	})
}
