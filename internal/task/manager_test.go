package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-plm/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartStop(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	var iterations atomic.Int32
	exited := make(chan struct{})

	err := mgr.Start("loop", func() bool {
		iterations.Add(1)
		time.Sleep(time.Millisecond)
		return true
	}, func() { close(exited) })
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return iterations.Load() > 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()

	<-exited
	assert.Equal(t, 0, mgr.TaskCount())

	err = mgr.Start("late", func() bool { return false }, nil)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestManager_TaskReturnsFalse(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	exited := make(chan struct{})
	require.NoError(t, mgr.Start("once", func() bool { return false }, func() { close(exited) }))

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("task did not exit")
	}
	mgr.Wait()
}

func TestManager_Panic(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	require.NoError(t, mgr.Start("panic", func() bool { panic("boom") }, nil))
	mgr.Wait()
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_StartInterval(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	var ticks atomic.Int32
	require.NoError(t, mgr.StartInterval("sweep", func() bool {
		ticks.Add(1)
		return true
	}, 5*time.Millisecond))

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	mgr.Stop()
	mgr.Wait()

	assert.Error(t, NewManager(context.Background(), logger.GetLogger()).StartInterval("bad", nil, 0))
}

func TestManager_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewManager(ctx, logger.GetLogger())

	require.NoError(t, mgr.Start("loop", func() bool {
		time.Sleep(time.Millisecond)
		return true
	}, nil))

	cancel()
	mgr.Wait()
	assert.Error(t, mgr.Context().Err())
}
