package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDevice struct {
	err   error
	opens int
}

func (d *stubDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.opens++
	if d.err != nil {
		return nil, d.err
	}
	return &stubStream{}, nil
}

type stubStream struct {
	releases int
}

func (s *stubStream) Capabilities() Capabilities { return Capabilities{} }
func (s *stubStream) Start(Format, time.Duration, Handler) error { return nil }
func (s *stubStream) Pause() error { return nil }
func (s *stubStream) Resume() error { return nil }
func (s *stubStream) Stop() error { return nil }
func (s *stubStream) Release() { s.releases++ }

func TestExclusive_SecondOpenIsBusy(t *testing.T) {
	dev := Exclusive(&stubDevice{})

	first, err := dev.Open(context.Background(), DefaultConstraints())
	require.NoError(t, err)

	_, err = dev.Open(context.Background(), DefaultConstraints())
	assert.True(t, errors.Is(err, ErrDeviceBusy), "got %v", err)

	first.Release()
	second, err := dev.Open(context.Background(), DefaultConstraints())
	require.NoError(t, err)
	second.Release()
}

func TestExclusive_ReleaseIsIdempotent(t *testing.T) {
	dev := Exclusive(&stubDevice{})

	s, err := dev.Open(context.Background(), DefaultConstraints())
	require.NoError(t, err)

	s.Release()
	s.Release()

	inner := s.(*exclusiveStream).Stream.(*stubStream)
	assert.Equal(t, 1, inner.releases)

	_, err = dev.Open(context.Background(), DefaultConstraints())
	assert.NoError(t, err)
}

func TestExclusive_FailedOpenFreesDevice(t *testing.T) {
	stub := &stubDevice{err: ErrPermissionDenied}
	dev := Exclusive(stub)

	_, err := dev.Open(context.Background(), DefaultConstraints())
	assert.True(t, errors.Is(err, ErrPermissionDenied))

	stub.err = nil
	_, err = dev.Open(context.Background(), DefaultConstraints())
	assert.NoError(t, err)
	assert.Equal(t, 2, stub.opens)
}
