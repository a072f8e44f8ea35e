package users

import (
	"context"
	"sync"
	"time"

	"evms-backend/internal/httpx"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[string]User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[string]User{}}
}

func (m *memoryRepo) Create(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == user.Email {
			return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
		}
	}
	m.items[user.ID] = user
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return User{}, mongo.ErrNoDocuments
	}
	return u, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, mongo.ErrNoDocuments
}

func (m *memoryRepo) matches(u User, filter ListFilter) bool {
	if filter.Role != "" && u.Role != filter.Role {
		return false
	}
	if filter.Disabled != nil && u.Disabled != *filter.Disabled {
		return false
	}
	return true
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter, page httpx.Page, _ httpx.Sort) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []User{}
	for _, u := range m.items {
		if m.matches(u, filter) {
			out = append(out, u)
		}
	}
	if int64(len(out)) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (m *memoryRepo) Count(_ context.Context, filter ListFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.items {
		if m.matches(u, filter) {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) Update(_ context.Context, id string, set bson.M) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return User{}, mongo.ErrNoDocuments
	}
	for k, v := range set {
		switch k {
		case "fullName":
			u.FullName = v.(string)
		case "phone":
			u.Phone = v.(string)
		case "role":
			u.Role = v.(string)
		case "disabled":
			u.Disabled = v.(bool)
		case "passwordHash":
			u.PasswordHash = v.(string)
		case "updatedAt":
			u.UpdatedAt = v.(time.Time)
		}
	}
	m.items[id] = u
	return u, nil
}
