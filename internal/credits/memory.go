package credits

import (
	"fmt"
	"sync"
)

// Account is a user's balance as held by MemoryLedger.
type Account struct {
	ImagesRemaining      int
	TotalImagesProcessed int
}

// MemoryLedger is the in-process ledger used when no database is configured.
// All mutations are serialized by one mutex, which gives Charge the same
// check-and-decrement atomicity as the conditional UPDATE.
type MemoryLedger struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{accounts: make(map[string]*Account)}
}

// Open creates an account with an initial balance; existing accounts are left untouched.
func (l *MemoryLedger) Open(userID string, initial int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[userID]; !ok {
		l.accounts[userID] = &Account{ImagesRemaining: initial}
	}
}

// Get returns a copy of the account.
func (l *MemoryLedger) Get(userID string) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[userID]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// Charge mirrors the SQL Charge.
func (l *MemoryLedger) Charge(userID string, images int) error {
	if images < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[userID]
	if !ok || acc.ImagesRemaining <= 0 {
		return ErrInsufficientCredit
	}
	acc.ImagesRemaining--
	acc.TotalImagesProcessed += images
	return nil
}

// TopUp mirrors the SQL TopUp.
func (l *MemoryLedger) TopUp(userID string, photoshoots int) error {
	if photoshoots <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[userID]
	if !ok {
		return fmt.Errorf("top up user %s: no such user", userID)
	}
	acc.ImagesRemaining += photoshoots
	return nil
}
