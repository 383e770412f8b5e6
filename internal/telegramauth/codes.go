package telegramauth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	codeLength     = 6
	maxCodeEntries = 10000
	// maxAttempts wrong guesses burn the code.
	maxAttempts = 5
)

// CodeStore holds pending verification codes keyed by normalized username.
// A multi-instance deployment needs a shared implementation.
type CodeStore interface {
	Put(username, code string, telegramID int64)
	// Consume returns the Telegram ID bound to a matching, unexpired code and
	// removes it. A code can be consumed once.
	Consume(username, code string) (int64, bool)
}

type codeEntry struct {
	code       string
	telegramID int64
	attempts   int
}

// LRUCodeStore is an in-process CodeStore with per-entry expiry.
type LRUCodeStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *codeEntry]
}

func NewLRUCodeStore(ttl time.Duration) *LRUCodeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LRUCodeStore{cache: expirable.NewLRU[string, *codeEntry](maxCodeEntries, nil, ttl)}
}

func (s *LRUCodeStore) Put(username, code string, telegramID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(username, &codeEntry{code: code, telegramID: telegramID})
}

func (s *LRUCodeStore) Consume(username, code string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache.Get(username)
	if !ok {
		return 0, false
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(code)) != 1 {
		entry.attempts++
		if entry.attempts >= maxAttempts {
			s.cache.Remove(username)
		}
		return 0, false
	}
	s.cache.Remove(username)
	return entry.telegramID, true
}

// newCode returns a uniformly random numeric code.
func newCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}
