package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

type UserStore interface {
	CreateUser(ctx context.Context, email string, passwordHash []byte) (int64, error)
	UserByEmail(ctx context.Context, email string) (User, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ UserStore = (*Repo)(nil)

func (r *Repo) CreateUser(ctx context.Context, email string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `INSERT INTO users(email, password_hash, is_admin, created_at)
	                           VALUES ($1,$2,false,now()) RETURNING id`, email, passwordHash).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return 0, ErrEmailTaken
	}
	return id, err
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `SELECT id, email, password_hash, is_admin, created_at
	                           FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// MemUsers: UserStore di memori utk test.
type MemUsers struct {
	mu      sync.Mutex
	byEmail map[string]User
	nextID  int64
}

var _ UserStore = (*MemUsers)(nil)

func NewMemUsers() *MemUsers {
	return &MemUsers{byEmail: make(map[string]User)}
}

func (m *MemUsers) CreateUser(ctx context.Context, email string, passwordHash []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return 0, ErrEmailTaken
	}
	m.nextID++
	m.byEmail[email] = User{
		ID:           m.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	return m.nextID, nil
}

func (m *MemUsers) UserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
