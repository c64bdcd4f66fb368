package service

import "sync"

// PendingKey identifies a delivered invite: the group it opens and the
// traveler it was sent to.
type PendingKey struct {
	ChatID int64
	UserID int64
}

// PendingJoins links delivered invites to the registrations awaiting
// confirmation. It is process-local by design: entries are lost on
// restart and the reconciler falls back to a backend lookup.
type PendingJoins struct {
	mu      sync.Mutex
	entries map[PendingKey]string
}

func NewPendingJoins() *PendingJoins {
	return &PendingJoins{entries: make(map[PendingKey]string)}
}

func (p *PendingJoins) Put(chatID, userID int64, registrationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[PendingKey{ChatID: chatID, UserID: userID}] = registrationID
}

func (p *PendingJoins) Get(chatID, userID int64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	registrationID, ok := p.entries[PendingKey{ChatID: chatID, UserID: userID}]
	return registrationID, ok
}

func (p *PendingJoins) Delete(chatID, userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, PendingKey{ChatID: chatID, UserID: userID})
}

func (p *PendingJoins) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
