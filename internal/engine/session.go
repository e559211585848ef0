package engine

import (
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"studymaster/internal/index"
	"studymaster/internal/prompt"
)

// Session holds one user's study state: current mode, style and document
// index. It is single-owner: at most one turn is processed at a time, and the
// in-flight flag rejects overlapping turns instead of queueing them.
type Session struct {
	UserID        int64
	Mode          prompt.StudyMode
	Style         prompt.ResponseStyle
	QuizQuestions int

	mu       sync.Mutex
	idx      *index.Index
	inFlight bool
}

func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Session) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Index returns the session's current document index, nil when no document
// is loaded.
func (s *Session) Index() *index.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

func (s *Session) SetIndex(idx *index.Index) {
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
}

// Sessions is the per-user session registry. Entries expire after the
// configured TTL of inactivity; an expired entry simply means the next
// request starts a fresh session with default settings.
type Sessions struct {
	mu           sync.Mutex
	cache        *gocache.Cache
	defaultQuizN int
}

func NewSessions(ttl time.Duration, defaultQuizQuestions int) *Sessions {
	return &Sessions{
		cache:        gocache.New(ttl, 10*time.Minute),
		defaultQuizN: defaultQuizQuestions,
	}
}

func sessionKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Get returns the user's session, creating one with default settings if none
// exists. The TTL is refreshed on every access.
func (r *Sessions) Get(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(userID)
	if v, found := r.cache.Get(key); found {
		sess := v.(*Session)
		r.cache.Set(key, sess, gocache.DefaultExpiration)
		return sess
	}

	sess := &Session{
		UserID:        userID,
		Mode:          prompt.ModeChat,
		Style:         prompt.StyleBalanced,
		QuizQuestions: r.defaultQuizN,
	}
	r.cache.Set(key, sess, gocache.DefaultExpiration)
	return sess
}

// Drop destroys the user's session, e.g. at logout.
func (r *Sessions) Drop(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionKey(userID))
}
