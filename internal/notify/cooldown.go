package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/session-coordinator/internal/application"
	"github.com/example/session-coordinator/internal/logging"
)

// DefaultCooldown is the window in which repeated RSVP notifications from the
// same actor for the same session are dropped.
const DefaultCooldown = time.Minute

const defaultCooldownEntries = 1024

// Cooldown suppresses join and leave notifications that repeat within ttl for
// the same session, actor and type. Other types always pass through.
type Cooldown struct {
	next       application.Notifier
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	sentAt     map[string]time.Time
	logger     *slog.Logger
}

// NewCooldown wraps next. Non-positive ttl uses DefaultCooldown.
func NewCooldown(next application.Notifier, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Cooldown {
	if ttl <= 0 {
		ttl = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cooldown{
		next:       next,
		now:        now,
		ttl:        ttl,
		maxEntries: defaultCooldownEntries,
		sentAt:     make(map[string]time.Time),
		logger:     logger,
	}
}

// Notify implements application.Notifier.
func (c *Cooldown) Notify(ctx context.Context, n application.Notification) error {
	if !n.Type.IsRSVPChange() {
		return c.next.Notify(ctx, n)
	}
	key := n.Session.ID + "|" + n.Actor.Identity + "|" + string(n.Type)
	if !c.admit(key) {
		logging.FromContextOr(ctx, c.logger).DebugContext(ctx, "notification suppressed by cooldown",
			"notification_type", n.Type,
			"session_id", n.Session.ID,
		)
		return nil
	}
	return c.next.Notify(ctx, n)
}

func (c *Cooldown) admit(key string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.sentAt[key]; ok && now.Sub(last) < c.ttl {
		return false
	}
	c.cleanupLocked(now)
	if len(c.sentAt) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.sentAt[key] = now
	return true
}

func (c *Cooldown) cleanupLocked(now time.Time) {
	for key, at := range c.sentAt {
		if now.Sub(at) >= c.ttl {
			delete(c.sentAt, key)
		}
	}
}

func (c *Cooldown) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, at := range c.sentAt {
		if oldestKey == "" || at.Before(oldestAt) {
			oldestKey, oldestAt = key, at
		}
	}
	delete(c.sentAt, oldestKey)
}
