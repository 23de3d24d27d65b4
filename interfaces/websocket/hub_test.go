package websocket

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHub_AdmitHonoursCapUnderConcurrency(t *testing.T) {
	hub := NewHub(3, zap.NewNop())

	var (
		wg       sync.WaitGroup
		admitted atomic.Int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hub.Admit() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), admitted.Load())
	assert.Equal(t, 3, hub.Admitted())
	assert.False(t, hub.Admit())

	hub.Release()
	assert.True(t, hub.Admit())
	assert.False(t, hub.Admit())
}

func TestHub_SetMaxConnections(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	assert.True(t, hub.Admit())
	assert.False(t, hub.Admit())

	hub.SetMaxConnections(0)
	assert.True(t, hub.Admit(), "zero means unlimited")

	// lowering the cap keeps existing slots and refuses new ones
	hub.SetMaxConnections(1)
	assert.Equal(t, 2, hub.Admitted())
	assert.False(t, hub.Admit())
}
