package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
	"github.com/OriginalByteMe/note-taking-backend/internal/repository"
	"github.com/OriginalByteMe/note-taking-backend/pkg/jwt"
)

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			user := *u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		user := *u
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			user := *u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *mockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func newTestAuthService() (*AuthService, *mockUserRepository) {
	users := newMockUserRepository()
	return NewAuthService(users, "test-secret", 15*time.Minute, 24*time.Hour), users
}

func TestAuthService_Register(t *testing.T) {
	svc, users := newTestAuthService()
	ctx := context.Background()

	err := svc.Register(ctx, &domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	user, err := users.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("expected user to be stored, got %v", err)
	}
	if user.Password == "password123" {
		t.Error("expected password to be hashed")
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	req := &domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}
	if err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	req.Username = "alice2"
	if err := svc.Register(ctx, req); err == nil {
		t.Error("expected duplicate email to be rejected")
	}
}

func TestAuthService_RegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if err := svc.Register(ctx, &domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := svc.Register(ctx, &domain.RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password123",
	})
	if err == nil {
		t.Error("expected duplicate username to be rejected")
	}
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	svc.Register(ctx, &domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})

	resp, err := svc.Login(ctx, &domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("expected both tokens in the response")
	}
	if resp.User.Password != "" {
		t.Error("expected password stripped from the response")
	}

	claims, err := jwt.ValidateToken(resp.AccessToken, "test-secret")
	if err != nil {
		t.Fatalf("expected a valid access token, got %v", err)
	}
	if claims.UserID != resp.User.ID {
		t.Errorf("token subject mismatch: %s vs %s", claims.UserID, resp.User.ID)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	svc.Register(ctx, &domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})

	if _, err := svc.Login(ctx, &domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}); err == nil {
		t.Error("expected login to fail with wrong password")
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	svc.Register(ctx, &domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	login, err := svc.Login(ctx, &domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	resp, err := svc.RefreshToken(ctx, &domain.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("expected refresh to succeed, got %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("expected a fresh access token")
	}

	if _, err := svc.RefreshToken(ctx, &domain.RefreshTokenRequest{
		RefreshToken: "not-a-token",
	}); err == nil {
		t.Error("expected garbage refresh token to be rejected")
	}
}
