package repository

import (
	"errors"
	"sync"
	"time"

	"medisecure-go/internal/model"
)

// ErrUserNotFound 用户不存在。
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists 用户名已被占用。
var ErrUserExists = errors.New("user already exists")

// memoryUserRepository 是 UserRepository 的内存实现。
// 未配置 MySQL DSN 时作为默认用户存储使用（本地开发、测试）。
type memoryUserRepository struct {
	mu     sync.RWMutex
	byID   map[uint]*model.User
	byName map[string]*model.User
	nextID uint
}

// NewMemoryUserRepository 创建一个空的内存用户存储。
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:   make(map[uint]*model.User),
		byName: make(map[string]*model.User),
		nextID: 1,
	}
}

func (r *memoryUserRepository) Create(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[user.Username]; ok {
		return ErrUserExists
	}
	user.ID = r.nextID
	r.nextID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	r.byID[stored.ID] = &stored
	r.byName[stored.Username] = &stored
	return nil
}

func (r *memoryUserRepository) FindByUsername(username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUserRepository) FindByID(userID uint) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUserRepository) FindAll() ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, *u)
	}
	return users, nil
}
