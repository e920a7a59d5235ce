package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	assert.NotNil(t, NewInterruptHandler(nil).writer)
	assert.False(t, NewInterruptHandler(&bytes.Buffer{}).WasInterrupted())
}

func TestInterruptHandler_CancelsOnce(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx, cancel := handler.HandleInterrupts(context.Background(), "Stored transactions are kept.")
	defer cancel()

	handler.interrupt()
	handler.interrupt()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		require.Fail(t, "context was not canceled")
	}

	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, bytes.Count([]byte(output.String()), []byte("Scan interrupted!")))
	assert.Contains(t, output.String(), "Stored transactions are kept.")
}

func TestInterruptHandler_CancelWithoutSignal(t *testing.T) {
	handler := NewInterruptHandler(&syncBuffer{})
	ctx, cancel := handler.HandleInterrupts(context.Background(), "")
	cancel()

	<-ctx.Done()
	assert.False(t, handler.WasInterrupted())
}
