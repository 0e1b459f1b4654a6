package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureCompleteOnce(t *testing.T) {
	f := NewFuture()
	assert.NoError(t, f.Err())
	select {
	case <-f.Done():
		t.Fatal("completed before Complete")
	default:
	}

	f.Complete(nil)
	f.Complete(ErrConnClosed)
	assert.NoError(t, f.Err())
	assert.NoError(t, f.Wait(context.Background()))
}

func TestFutureWaitCancelled(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.Canceled)
}

func TestFutureThen(t *testing.T) {
	f := NewFuture()
	got := make(chan error, 1)
	f.Then(func(err error) { got <- err })
	f.Complete(ErrConnClosed)

	select {
	case err := <-got:
		require.True(t, errors.Is(err, ErrConnClosed))
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestCompletedFuture(t *testing.T) {
	f := CompletedFuture(ErrQueueFull)
	assert.ErrorIs(t, f.Err(), ErrQueueFull)
	<-f.Done()
}
