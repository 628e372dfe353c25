package memory

import (
	"time"

	"ai-casedraft-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

// NewSessionRepository keeps sessions for ttl after their last save, purging
// expired ones every cleanupInterval. Expired sessions have their run stopped.
func NewSessionRepository(ttl, cleanupInterval time.Duration) *SessionRepository {
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*store.CaseSession); ok {
			go s.StopRun()
		}
	})
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.CaseSession) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

// Add stores session only if no live session has the same ID.
func (r *SessionRepository) Add(session *store.CaseSession) error {
	return r.cache.Add(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.CaseSession, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.CaseSession), true
	}
	return nil, false
}

// Touch extends the session's lifetime.
func (r *SessionRepository) Touch(session *store.CaseSession) {
	r.Save(session)
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// All returns every live session.
func (r *SessionRepository) All() []*store.CaseSession {
	items := r.cache.Items()
	out := make([]*store.CaseSession, 0, len(items))
	for _, item := range items {
		if s, ok := item.Object.(*store.CaseSession); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
