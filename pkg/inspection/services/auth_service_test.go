package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/database"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/repositories"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/services"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(t *testing.T) *services.AuthService {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", nil)
	require.NoError(t, err)
	return services.NewAuthService(repositories.NewUserRepository(db), "test-secret", nil)
}

func TestAuth_RegisterLoginToken(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	u, err := auth.Register(ctx, models.RegisterInput{DisplayName: " Sari ", Username: "sari", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "Sari", u.DisplayName)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	got, token, err := auth.Login(ctx, "sari", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	id, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	byID, err := auth.UserByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "sari", byID.Username)
}

func TestAuth_RegisterRejections(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, models.RegisterInput{DisplayName: "A", Username: "op", Password: "short"})
	assert.ErrorIs(t, err, services.ErrInvalidRegistration)

	_, err = auth.Register(ctx, models.RegisterInput{DisplayName: "A", Username: "op", Password: "long enough"})
	require.NoError(t, err)
	_, err = auth.Register(ctx, models.RegisterInput{DisplayName: "B", Username: "op", Password: "long enough"})
	assert.ErrorIs(t, err, services.ErrUsernameTaken)
}

func TestAuth_LoginFailuresAreIndistinguishable(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, models.RegisterInput{DisplayName: "A", Username: "op", Password: "long enough"})
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "op", "wrong password")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "ghost", "long enough")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestAuth_LoginIsRateLimitedPerUsername(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	var err error
	for range 5 {
		_, _, err = auth.Login(ctx, "target", "guess")
		require.ErrorIs(t, err, services.ErrInvalidCredentials)
	}
	_, _, err = auth.Login(ctx, "target", "guess")
	assert.ErrorIs(t, err, services.ErrTooManyAttempts)

	_, _, err = auth.Login(ctx, "someone-else", "guess")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestAuth_ConcurrentLoginsShareOneLimiter(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	const attempts = 40
	var (
		wg        sync.WaitGroup
		throttled atomic.Int32
	)
	start := make(chan struct{})
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			name := "Target"
			if i%2 == 0 {
				name = "target"
			}
			if _, _, err := auth.Login(ctx, name, "guess"); errors.Is(err, services.ErrTooManyAttempts) {
				throttled.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(attempts-5), throttled.Load())
}

func TestAuth_ParseTokenRejectsForgeries(t *testing.T) {
	auth := newAuth(t)
	other := services.NewAuthService(nil, "another-secret", nil)

	forged, err := other.IssueToken(1)
	require.NoError(t, err)
	_, err = auth.ParseToken(forged)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1", Issuer: "don-defect-register"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ParseToken(unsigned)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = auth.ParseToken("garbage")
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}
