package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/config"
	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type stubUsuarioRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.Usuario
}

var _ repository.UsuarioRepository = (*stubUsuarioRepo)(nil)

func newStubUsuarioRepo() *stubUsuarioRepo {
	return &stubUsuarioRepo{users: make(map[uuid.UUID]*model.Usuario)}
}

func (r *stubUsuarioRepo) Create(_ context.Context, u *model.Usuario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return nil
}

func (r *stubUsuarioRepo) FindByUsername(_ context.Context, username string) (*model.Usuario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUsuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUsuarioRepo) Update(_ context.Context, u *model.Usuario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return nil
}

var authClock = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newAuthFixture(t *testing.T) (*authService, *stubUsuarioRepo, *model.Usuario) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secreto123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := newStubUsuarioRepo()
	user := &model.Usuario{Username: "caja1", Nombre: "Caja Uno", PasswordHash: string(hash), Rol: "cajero", Activo: true}
	require.NoError(t, repo.Create(context.Background(), user))

	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 12, JWTRefreshHours: 24}
	svc := NewAuthService(repo, cfg).(*authService)
	svc.now = fixedClock(authClock)
	return svc, repo, user
}

func TestLogin_Success(t *testing.T) {
	svc, _, user := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: " caja1 ", Password: "secreto123"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 12*3600, resp.ExpiresIn)
	assert.Equal(t, user.ID.String(), resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, resp.AccessToken, resp.RefreshToken)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return authClock }))
	require.NoError(t, err)
	assert.Equal(t, TokenAccess, claims["typ"])
	assert.Equal(t, "cajero", claims["rol"])
}

func TestLogin_Rejections(t *testing.T) {
	svc, repo, user := newAuthFixture(t)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "caja1", Password: "otra"})
	requireCode(t, err, domainerr.CodeUnauthorized)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "nadie", Password: "secreto123"})
	requireCode(t, err, domainerr.CodeUnauthorized)

	user.Activo = false
	require.NoError(t, repo.Update(context.Background(), user))
	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "caja1", Password: "secreto123"})
	requireCode(t, err, domainerr.CodeUnauthorized)
}

func TestRefresh_AcceptsOnlyRefreshTokens(t *testing.T) {
	svc, _, user := newAuthFixture(t)
	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "caja1", Password: "secreto123"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), login.AccessToken)
	requireCode(t, err, domainerr.CodeUnauthorized)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), refreshed.User.ID)

	_, err = svc.Refresh(context.Background(), "no-es-un-jwt")
	requireCode(t, err, domainerr.CodeUnauthorized)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "caja1", Password: "secreto123"})
	require.NoError(t, err)

	svc.now = fixedClock(authClock.Add(25 * time.Hour))
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	requireCode(t, err, domainerr.CodeUnauthorized)
}

func TestRefresh_InactiveUser(t *testing.T) {
	svc, repo, user := newAuthFixture(t)
	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "caja1", Password: "secreto123"})
	require.NoError(t, err)

	user.Activo = false
	require.NoError(t, repo.Update(context.Background(), user))
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	requireCode(t, err, domainerr.CodeUnauthorized)
}

func TestMe(t *testing.T) {
	svc, _, user := newAuthFixture(t)

	me, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "caja1", me.Username)
	assert.True(t, me.Activo)

	_, err = svc.Me(context.Background(), uuid.New())
	requireCode(t, err, domainerr.CodeNotFound)
}
