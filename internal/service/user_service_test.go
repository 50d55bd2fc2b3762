package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisecure-go/internal/errs"
	"medisecure-go/internal/repository"
	"medisecure-go/pkg/token"
)

func newTestUserService(t *testing.T) UserService {
	t.Helper()
	jwtManager, err := token.NewJWTManager("user-service-test-secret", 1, 7)
	require.NoError(t, err)
	return NewUserService(repository.NewMemoryUserRepository(), jwtManager, nil)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestUserService(t)

	_, err := svc.Register("ab", "password123")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = svc.Register("alice", "short")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestUserService(t)

	user, err := svc.Register("alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user", user.Role)
	// 存储的是哈希而不是明文
	assert.NotEqual(t, "password123", user.Password)

	access, refresh, err := svc.Login("alice", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestUserService(t)

	_, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	_, err = svc.Register("alice", "password456")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

// 不存在的用户与错误密码返回同样的认证错误，不泄露用户是否存在。
func TestLoginInvalidCredentials(t *testing.T) {
	svc := newTestUserService(t)
	_, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	_, _, errGhost := svc.Login("ghost", "password123")
	_, _, errWrong := svc.Login("alice", "wrongpassword")
	assert.Equal(t, errs.KindAuth, errs.KindOf(errGhost))
	assert.Equal(t, errs.KindAuth, errs.KindOf(errWrong))
	assert.Equal(t, errGhost.Error(), errWrong.Error())
}

func TestRefreshTokenFlow(t *testing.T) {
	svc := newTestUserService(t)
	_, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	access, refresh, err := svc.Login("alice", "password123")
	require.NoError(t, err)

	// access token 不能当 refresh token 用
	_, _, err = svc.RefreshToken(access)
	assert.Equal(t, errs.KindAuth, errs.KindOf(err))

	newAccess, newRefresh, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
}

func TestGetProfileUnknownUser(t *testing.T) {
	svc := newTestUserService(t)
	_, err := svc.GetProfile("ghost")
	assert.Equal(t, errs.KindAuth, errs.KindOf(err))
}
