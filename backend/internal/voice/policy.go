package voice

import (
	"sort"
	"sync"
)

// SessionPolicy holds the runtime listening restrictions for one guild's
// voice session. The sink consults it on every frame; commands mutate it.
// The auto-kick set lists users forcibly removed from voice on join.
type SessionPolicy struct {
	mu        sync.RWMutex
	listening bool
	ownerOnly string
	blocked   map[string]struct{}
	autoKick  map[string]struct{}
}

// NewSessionPolicy starts with listening enabled and no restrictions.
func NewSessionPolicy() *SessionPolicy {
	return &SessionPolicy{
		listening: true,
		blocked:   map[string]struct{}{},
		autoKick:  map[string]struct{}{},
	}
}

// SetListening toggles audio ingestion entirely.
func (p *SessionPolicy) SetListening(on bool) {
	p.mu.Lock()
	p.listening = on
	p.mu.Unlock()
}

// Listening reports whether ingestion is enabled.
func (p *SessionPolicy) Listening() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listening
}

// Claim restricts responsiveness to a single speaker.
func (p *SessionPolicy) Claim(userID string) {
	p.mu.Lock()
	p.ownerOnly = userID
	p.mu.Unlock()
}

// Reset clears the owner-only restriction.
func (p *SessionPolicy) Reset() {
	p.mu.Lock()
	p.ownerOnly = ""
	p.mu.Unlock()
}

// ClaimedBy returns the owner-only speaker id, empty when unrestricted.
func (p *SessionPolicy) ClaimedBy() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ownerOnly
}

// Block ignores a speaker's audio.
func (p *SessionPolicy) Block(userID string) {
	p.mu.Lock()
	p.blocked[userID] = struct{}{}
	p.mu.Unlock()
}

// Unblock re-admits a speaker.
func (p *SessionPolicy) Unblock(userID string) {
	p.mu.Lock()
	delete(p.blocked, userID)
	p.mu.Unlock()
}

// IsBlocked reports whether a speaker is on the ignore list.
func (p *SessionPolicy) IsBlocked(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.blocked[userID]
	return ok
}

// AddAutoKick flags a user for removal from voice whenever they join.
func (p *SessionPolicy) AddAutoKick(userID string) {
	p.mu.Lock()
	p.autoKick[userID] = struct{}{}
	p.mu.Unlock()
}

// RemoveAutoKick unflags a user. Returns false when they were not flagged.
func (p *SessionPolicy) RemoveAutoKick(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.autoKick[userID]; !ok {
		return false
	}
	delete(p.autoKick, userID)
	return true
}

// IsAutoKick reports whether a user is flagged for removal on join.
func (p *SessionPolicy) IsAutoKick(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.autoKick[userID]
	return ok
}

// AutoKickList returns the flagged user ids in a stable order.
func (p *SessionPolicy) AutoKickList() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.autoKick))
	for id := range p.autoKick {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Admits applies the full filter chain for one frame: listening toggle,
// then owner-only, then the block list.
func (p *SessionPolicy) Admits(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.listening {
		return false
	}
	if p.ownerOnly != "" && userID != p.ownerOnly {
		return false
	}
	_, blocked := p.blocked[userID]
	return !blocked
}
