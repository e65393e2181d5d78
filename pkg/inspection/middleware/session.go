package middleware

import (
	"crypto/sha256"
	"encoding/gob"
	"net/http"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName   = "defect_register"
	userIDKey     = "user_id"
	sessionMaxAge = 12 * 60 * 60
)

func init() {
	gob.Register(models.Notice{})
}

// Sessions wraps the signed and encrypted session cookie. It carries the
// logged-in user and the pending flash notices.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions derives the cookie keys from secret.
func NewSessions(secret string, secure bool) *Sessions {
	hashKey := sha256.Sum256([]byte("session-hash:" + secret))
	blockKey := sha256.Sum256([]byte("session-block:" + secret))
	store := sessions.NewCookieStore(hashKey[:], blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// get never fails: a tampered or expired cookie yields a fresh session.
func (s *Sessions) get(c *gin.Context) *sessions.Session {
	sess, err := s.store.Get(c.Request, sessionName)
	if err != nil {
		sess, _ = s.store.New(c.Request, sessionName)
	}
	return sess
}

// Login binds userID to the session cookie.
func (s *Sessions) Login(c *gin.Context, userID uint) error {
	sess := s.get(c)
	sess.Values[userIDKey] = userID
	return sess.Save(c.Request, c.Writer)
}

// Logout expires the session cookie.
func (s *Sessions) Logout(c *gin.Context) error {
	sess := s.get(c)
	delete(sess.Values, userIDKey)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request, c.Writer)
}

// UserID returns the user bound to the session cookie.
func (s *Sessions) UserID(c *gin.Context) (uint, bool) {
	id, ok := s.get(c).Values[userIDKey].(uint)
	return id, ok && id != 0
}

// AddNotice queues a flash for the next rendered response.
func (s *Sessions) AddNotice(c *gin.Context, level, message string) error {
	sess := s.get(c)
	sess.AddFlash(models.Notice{Level: level, Message: message})
	return sess.Save(c.Request, c.Writer)
}

// Notices drains the queued flashes.
func (s *Sessions) Notices(c *gin.Context) []models.Notice {
	sess := s.get(c)
	flashes := sess.Flashes()
	out := make([]models.Notice, 0, len(flashes))
	for _, f := range flashes {
		if n, ok := f.(models.Notice); ok {
			out = append(out, n)
		}
	}
	if len(flashes) > 0 {
		_ = sess.Save(c.Request, c.Writer)
	}
	return out
}
