package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/spice-sms/internal/model"
)

// StaticSource serves a fixed message list, honoring since and limit.
type StaticSource struct {
	Err   error
	msgs  []model.RawMessage
	mu    sync.Mutex
	calls int
	since time.Time
}

// NewStaticSource returns a source over msgs.
func NewStaticSource(msgs ...model.RawMessage) *StaticSource {
	return &StaticSource{msgs: msgs}
}

// Messages implements service.MessageSource.
func (s *StaticSource) Messages(_ context.Context, since time.Time, limit int) ([]model.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.since = since
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]model.RawMessage, 0, len(s.msgs))
	for _, m := range s.msgs {
		if m.Timestamp.Before(since) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Calls returns how many times Messages was called.
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastSince returns the since bound of the most recent call.
func (s *StaticSource) LastSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.since
}
