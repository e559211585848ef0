package store

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is the volatile fallback backend: history lives in a TTL cache
// and disappears when the process stops or the entries expire. It fills the
// slot the hosted document store occupied in earlier revisions of the app.
type MemoryStore struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	nextID int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

func (s *MemoryStore) Close() error { return nil }

func userKey(username string) string { return "user:" + username }
func turnsKey(userID int64) string   { return "turns:" + strconv.FormatInt(userID, 10) }

func (s *MemoryStore) CreateUser(username, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.cache.Get(userKey(username)); found {
		return nil, fmt.Errorf("user %q already exists", username)
	}
	s.nextID++
	user := &User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	// Credentials never expire; only histories are volatile.
	s.cache.Set(userKey(username), user, gocache.NoExpiration)
	return user, nil
}

func (s *MemoryStore) GetUserByUsername(username string) (*User, error) {
	if v, found := s.cache.Get(userKey(username)); found {
		return v.(*User), nil
	}
	return nil, nil
}

func (s *MemoryStore) AppendTurn(userID int64, role, content string) (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := Turn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}

	var turns []Turn
	if v, found := s.cache.Get(turnsKey(userID)); found {
		turns = v.([]Turn)
	}
	turns = append(turns, turn)
	s.cache.Set(turnsKey(userID), turns, gocache.DefaultExpiration)
	return &turn, nil
}

func (s *MemoryStore) TurnsByUser(userID int64, limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.cache.Get(turnsKey(userID))
	if !found {
		return nil, nil
	}
	turns := v.([]Turn)
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) DeleteTurnsByUser(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(turnsKey(userID))
	return nil
}
