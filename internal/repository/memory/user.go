package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type userRecord struct {
	user model.User
	seq  uint64
}

// UserRepository keeps users in memory. The primary table, the email index,
// the username index and the retired id set are guarded by a single lock.
type UserRepository struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]userRecord
	byEmail    map[string]uuid.UUID
	byUsername map[string]uuid.UUID
	retired    map[uuid.UUID]struct{}
	seq        uint64
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[uuid.UUID]userRecord),
		byEmail:    make(map[string]uuid.UUID),
		byUsername: make(map[string]uuid.UUID),
		retired:    make(map[uuid.UUID]struct{}),
	}
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return model.User{}, model.ErrDuplicateEmail
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return model.User{}, model.ErrDuplicateUsername
	}
	if _, ok := r.users[user.ID]; ok {
		return model.User{}, model.ErrDuplicateID
	}
	if _, ok := r.retired[user.ID]; ok {
		return model.User{}, model.ErrDuplicateID
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	r.seq++
	r.users[user.ID] = userRecord{user: user, seq: r.seq}
	r.byEmail[user.Email] = user.ID
	r.byUsername[user.Username] = user.ID

	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}

	return rec.user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	rec, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}

	return rec.user, nil
}

// List returns the requested page of users, newest first, along with the
// total number of live users.
func (r *UserRepository) List(ctx context.Context, page, size int) ([]model.User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		return nil, 0, model.ErrInvalidPage
	}
	if size < 0 {
		size = 0
	}

	r.mu.RLock()
	snapshot := make([]userRecord, 0, len(r.users))
	for _, rec := range r.users {
		snapshot = append(snapshot, rec)
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		a, b := snapshot[i], snapshot[j]
		if !a.user.CreatedAt.Equal(b.user.CreatedAt) {
			return a.user.CreatedAt.After(b.user.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := len(snapshot)
	// Compare against the page count first so (page-1)*size cannot overflow.
	if size == 0 || page-1 >= model.PageCount(total, size) {
		return []model.User{}, total, nil
	}
	offset := (page - 1) * size
	end := total
	if size < total-offset {
		end = offset + size
	}

	users := make([]model.User, 0, end-offset)
	for _, rec := range snapshot[offset:end] {
		users = append(users, rec.user)
	}

	return users, total, nil
}

// Delete removes the user and its index entries. Deleting an absent user
// reports false without an error.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[id]
	if !ok {
		return false, nil
	}

	delete(r.users, id)
	delete(r.byEmail, rec.user.Email)
	delete(r.byUsername, rec.user.Username)
	r.retired[id] = struct{}{}

	return true, nil
}
