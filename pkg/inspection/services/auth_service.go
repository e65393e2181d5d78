package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "don-defect-register"
	tokenTTL      = 12 * time.Hour
	loginBurst    = 5
	loginInterval = 12 * time.Second
	limiterTTL    = 15 * time.Minute
	minPassword   = 8
)

// ErrInvalidToken is returned for bearer tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// AuthService registers operators, checks their credentials and issues the
// bearer tokens accepted next to the session cookie.
type AuthService struct {
	users    repositories.UserRepository
	secret   []byte
	limiters *ttlcache.Cache[string, *rate.Limiter]
	logger   *log.Logger
	now      func() time.Time
	cost     int
}

func NewAuthService(users repositories.UserRepository, secret string, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](limiterTTL),
		ttlcache.WithDisableTouchOnHit[string, *rate.Limiter](),
	)
	return &AuthService{
		users:    users,
		secret:   []byte(secret),
		limiters: limiters,
		logger:   logger.WithPrefix("auth"),
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

// StartJanitor evicts idle login limiters until ctx is done.
func (s *AuthService) StartJanitor(ctx context.Context) {
	go s.limiters.Start()
	go func() {
		<-ctx.Done()
		s.limiters.Stop()
	}()
}

// Register creates an operator account.
func (s *AuthService) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	displayName := strings.TrimSpace(in.DisplayName)
	username := strings.TrimSpace(in.Username)
	if displayName == "" || username == "" || len(in.Password) < minPassword {
		return nil, fmt.Errorf("%w: displayName, username and a password of at least %d characters are required", ErrInvalidRegistration, minPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{DisplayName: displayName, Username: username, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "id", u.ID, "username", u.Username)
	return u, nil
}

// Login verifies the credentials and returns the user with a fresh token.
// Unknown users and wrong passwords give the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	if !s.limiterFor(username).Allow() {
		s.logger.Warn("login rate limited", "username", username)
		return nil, "", ErrTooManyAttempts
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// limiterFor returns the one limiter shared by every login for username.
func (s *AuthService) limiterFor(username string) *rate.Limiter {
	item, _ := s.limiters.GetOrSet(strings.ToLower(username), rate.NewLimiter(rate.Every(loginInterval), loginBurst))
	return item.Value()
}

// IssueToken signs an HS256 token for userID.
func (s *AuthService) IssueToken(userID uint) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies token and returns the user id it was issued for.
func (s *AuthService) ParseToken(token string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	if !claims.VerifyIssuer(tokenIssuer, true) {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// UserByID returns nil, nil for unknown ids.
func (s *AuthService) UserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}
