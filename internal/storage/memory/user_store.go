package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/giridharan-7/my-paytm/internal/interfaces"
	"github.com/giridharan-7/my-paytm/internal/models"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string // lowercased email -> user id
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) CreateUser(ctx context.Context, u models.User) error {
	email := strings.ToLower(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return wallet.ErrAlreadyExists
	}
	if _, ok := s.byID[u.ID]; ok {
		return wallet.ErrAlreadyExists
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return nil
}

func (s *UserStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, wallet.ErrAccountNotFound
	}
	u := s.byID[id]
	return &u, nil
}

func (s *UserStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, wallet.ErrAccountNotFound
	}
	return &u, nil
}

func (s *UserStore) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return wallet.ErrAccountNotFound
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	s.byID[id] = u
	return nil
}

func (s *UserStore) SearchUsers(ctx context.Context, filter string) ([]models.User, error) {
	needle := strings.ToLower(filter)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, u := range s.byID {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.FirstName), needle) ||
			strings.Contains(strings.ToLower(u.LastName), needle) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

var _ interfaces.UserStore = (*UserStore)(nil)
