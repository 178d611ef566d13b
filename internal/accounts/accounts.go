// Package accounts is the narrow client surface of the user-account service
// the orchestrator depends on for paid and friend-only lobbies. The real
// service lives elsewhere; the in-memory implementation here backs tests and
// local development.
package accounts

import (
	"context"
	"errors"
	"sync"
)

var ErrUnknownUser = errors.New("unknown user")
var ErrInsufficientFunds = errors.New("insufficient funds")

type User struct {
	ID       string
	Username string
	Balance  float64
}

type Service interface {
	GetUserByID(ctx context.Context, id string) (User, error)
	DebitWallet(ctx context.Context, id string, amount float64) error
	CreditWallet(ctx context.Context, id string, amount float64) error
	IsFriendOf(ctx context.Context, userID, organizerID string) (bool, error)
	// IsBlockedBy reports whether other has blocked userID.
	IsBlockedBy(ctx context.Context, userID, otherID string) (bool, error)
}

type InMemory struct {
	mu      sync.Mutex
	users   map[string]*User
	friends map[string]map[string]bool
	blocks  map[string]map[string]bool // blocker -> blocked
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:   map[string]*User{},
		friends: map[string]map[string]bool{},
		blocks:  map[string]map[string]bool{},
	}
}

func (s *InMemory) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *InMemory) SetFriends(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.friends[a] == nil {
		s.friends[a] = map[string]bool{}
	}
	if s.friends[b] == nil {
		s.friends[b] = map[string]bool{}
	}
	s.friends[a][b] = true
	s.friends[b][a] = true
}

func (s *InMemory) SetBlocked(blocker, blocked string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks[blocker] == nil {
		s.blocks[blocker] = map[string]bool{}
	}
	s.blocks[blocker][blocked] = true
}

func (s *InMemory) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUnknownUser
	}
	return *u, nil
}

func (s *InMemory) DebitWallet(_ context.Context, id string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUnknownUser
	}
	if u.Balance < amount {
		return ErrInsufficientFunds
	}
	u.Balance -= amount
	return nil
}

func (s *InMemory) CreditWallet(_ context.Context, id string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUnknownUser
	}
	u.Balance += amount
	return nil
}

func (s *InMemory) IsFriendOf(_ context.Context, userID, organizerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friends[userID][organizerID], nil
}

func (s *InMemory) IsBlockedBy(_ context.Context, userID, otherID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks[otherID][userID], nil
}
