package server

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// requestLogger tags each request with an ID and logs its outcome.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)
		start := time.Now()

		c.Next()

		log.Info("request completed",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

type pendingState struct {
	platform oauth.Platform
	expires  time.Time
}

// stateSet remembers issued OAuth states until they are used once or expire.
type stateSet struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]pendingState
}

func newStateSet(ttl time.Duration, now func() time.Time) *stateSet {
	return &stateSet{ttl: ttl, now: now, pending: make(map[string]pendingState)}
}

func (s *stateSet) add(state string, p oauth.Platform) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.pending {
		if now.After(v.expires) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingState{platform: p, expires: now.Add(s.ttl)}
}

// take consumes state and returns the platform it was issued for.
func (s *stateSet) take(state string) (oauth.Platform, bool) {
	if state == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)
	if s.now().After(v.expires) {
		return "", false
	}
	return v.platform, true
}
