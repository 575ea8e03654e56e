package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryRepo)(nil)

// MemoryRepo is an in-memory Store for tests and local development.
// It enforces the same uniqueness rules as the Postgres schema.
type MemoryRepo struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
	roles   map[string]Role
	clock   func() time.Time
}

func NewMemoryRepo(roles ...Role) *MemoryRepo {
	r := &MemoryRepo{
		users:   map[string]User{},
		byEmail: map[string]string{},
		roles:   map[string]Role{},
		clock:   time.Now,
	}
	for _, role := range roles {
		r.roles[role.ID] = role
	}
	return r
}

func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) Create(ctx context.Context, u User) (User, error) {
	u.Email = NormalizeEmail(u.Email)
	if err := validateNew(u); err != nil {
		return User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[u.RoleID]
	if !ok {
		return User{}, ErrInvalidRole
	}
	if _, taken := r.byEmail[u.Email]; taken {
		return User{}, ErrEmailTaken
	}
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return User{}, ErrUsernameTaken
		}
	}

	now := r.clock().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Role = role.Name

	r.users[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

// SetRole changes a user's role, the way an admin would between two token issuances.
func (r *MemoryRepo) SetRole(id, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	role, ok := r.roles[roleID]
	if !ok {
		return ErrInvalidRole
	}
	u.RoleID = role.ID
	u.Role = role.Name
	u.UpdatedAt = r.clock().UTC()
	r.users[id] = u
	return nil
}

// Delete removes a user. Outstanding tokens for the user stay valid until exp.
func (r *MemoryRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.users, id)
	}
}
