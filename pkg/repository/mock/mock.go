// Package mock provides in-memory repositories with error injection for
// handler and service tests.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/pkg/repository"
)

type Mocks struct {
	Users   *UserRepo
	Pending *PendingRepo
	Revoked *RevocationRepo
}

func NewMocks() *Mocks {
	users := &UserRepo{byID: map[int64]*models.User{}}
	return &Mocks{
		Users:   users,
		Pending: &PendingRepo{users: users, rows: map[string]*models.PendingRegistration{}},
		Revoked: &RevocationRepo{at: map[int64]time.Time{}},
	}
}

type UserRepo struct {
	mu        sync.Mutex
	byID      map[int64]*models.User
	nextID    int64
	CreateErr error
	GetErr    error
}

func (m *UserRepo) create(u *models.User) (int64, error) {
	email := strings.ToLower(u.Email)
	for _, existing := range m.byID {
		if existing.Email == email {
			return 0, repository.ErrDuplicate
		}
	}
	m.nextID++
	cp := *u
	cp.ID = m.nextID
	cp.Email = email
	cp.Created = time.Now()
	cp.Updated = cp.Created
	m.byID[cp.ID] = &cp
	*u = cp
	return cp.ID, nil
}

func (m *UserRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	return m.create(u)
}

func (m *UserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *UserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	email = strings.ToLower(email)
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *UserRepo) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

type PendingRepo struct {
	mu          sync.Mutex
	users       *UserRepo
	rows        map[string]*models.PendingRegistration
	UpsertErr   error
	CompleteErr error
}

func (m *PendingRepo) UpsertPendingRegistration(ctx context.Context, p *models.PendingRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	cp := *p
	cp.Email = strings.ToLower(p.Email)
	m.rows[cp.Email] = &cp
	return nil
}

func (m *PendingRepo) GetPendingRegistration(ctx context.Context, email string) (*models.PendingRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[strings.ToLower(email)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *PendingRepo) UpdatePendingOTP(ctx context.Context, email, otp string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[strings.ToLower(email)]; ok {
		p.OTP = otp
		p.ExpiresAt = expiresAt
	}
	return nil
}

func (m *PendingRepo) DeletePendingRegistration(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, strings.ToLower(email))
	return nil
}

func (m *PendingRepo) CompleteRegistration(ctx context.Context, email, otp string, u *models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteErr != nil {
		return false, m.CompleteErr
	}
	key := strings.ToLower(email)
	p, ok := m.rows[key]
	if !ok || p.OTP != otp {
		return false, nil
	}
	m.users.mu.Lock()
	_, err := m.users.create(u)
	m.users.mu.Unlock()
	if err != nil {
		return false, err
	}
	delete(m.rows, key)
	return true, nil
}

func (m *PendingRepo) PurgeExpiredRegistrations(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, p := range m.rows {
		if p.ExpiresAt.Before(before) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored pending registrations.
func (m *PendingRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type RevocationRepo struct {
	mu sync.Mutex
	at map[int64]time.Time
}

func (m *RevocationRepo) RevokeUserTokens(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at[userID] = at
	return nil
}

func (m *RevocationRepo) GetUserRevocation(ctx context.Context, userID int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at, ok := m.at[userID]; ok {
		return &at, nil
	}
	return nil, nil
}

var (
	_ repository.UserRepo                = (*UserRepo)(nil)
	_ repository.PendingRegistrationRepo = (*PendingRepo)(nil)
	_ repository.RevocationRepo          = (*RevocationRepo)(nil)
)
