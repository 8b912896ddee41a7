// Package auth issues and verifies the bearer credentials required for
// all signaling and media operations. Accounts live in process memory.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type user struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
}

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID   string
	Username string
}

type Service struct {
	secret []byte
	ttl    time.Duration

	mu    sync.RWMutex
	users map[string]*user
}

func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		users:  make(map[string]*user),
	}
}

func (s *Service) SignUp(username, email, password string) (string, error) {
	if username == "" || email == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return "", ErrEmailExists
	}
	u := &user{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	s.users[email] = u
	return u.ID, nil
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SignIn verifies the password and returns a signed bearer token plus
// the resolved identity.
func (s *Service) SignIn(email, password string) (string, Identity, error) {
	s.mu.RLock()
	u, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return "", Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", Identity{}, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Identity{}, err
	}
	return signed, Identity{UserID: u.ID, Username: u.Username}, nil
}

// Verify resolves a bearer token back to an identity.
func (s *Service) Verify(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, Username: c.Username}, nil
}
