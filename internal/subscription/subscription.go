// Package subscription keeps the list of e-mail addresses that asked for alerts.
package subscription

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// Subscriber is one stored address.
type Subscriber struct {
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

// Store persists subscribers. Implementations must be safe for concurrent use.
type Store interface {
	Add(ctx context.Context, email string) (Subscriber, error)
	List(ctx context.Context) ([]Subscriber, error)
	Close() error
}

// NormalizeEmail trims and lower-cases the address and checks that it is a bare addr-spec.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// MemoryStore keeps subscribers in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	subs map[string]Subscriber
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]Subscriber), now: time.Now}
}

func (m *MemoryStore) Add(_ context.Context, raw string) (Subscriber, error) {
	email, err := NormalizeEmail(raw)
	if err != nil {
		return Subscriber{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[email]; ok {
		return Subscriber{}, ErrAlreadySubscribed
	}
	sub := Subscriber{Email: email, SubscribedAt: m.now().UTC()}
	m.subs[email] = sub
	return sub, nil
}

func (m *MemoryStore) List(context.Context) ([]Subscriber, error) {
	m.mu.Lock()
	out := make([]Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
