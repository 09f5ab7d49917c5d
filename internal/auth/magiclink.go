package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/intermernet/bowlpickem/internal/database"
	"golang.org/x/crypto/blake2b"
)

// DefaultSignInTTL is how long an emailed sign-in link can be used.
const DefaultSignInTTL = time.Hour

const signInTokenBytes = 32

var (
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrInvalidSignInToken = errors.New("sign-in link is invalid or has expired")
)

// TokenStore persists pending sign-ins.
type TokenStore interface {
	CreateSignInToken(ctx context.Context, t *database.SignInToken) error
	ConsumeSignInToken(ctx context.Context, tokenHash string, now time.Time) (*database.SignInToken, error)
}

// MagicLinks issues and redeems single-use sign-in tokens. Only a keyed
// digest of each token is stored, so a copy of the database cannot be used
// to sign in.
type MagicLinks struct {
	store TokenStore
	key   [32]byte
	ttl   time.Duration
	now   func() time.Time
}

// NewMagicLinks derives the digest key from secret.
func NewMagicLinks(store TokenStore, secret string, ttl time.Duration) *MagicLinks {
	if ttl <= 0 {
		ttl = DefaultSignInTTL
	}
	return &MagicLinks{
		store: store,
		key:   blake2b.Sum256([]byte("bowlpickem sign-in:" + secret)),
		ttl:   ttl,
		now:   time.Now,
	}
}

// NormalizeEmail trims and lower-cases a bare email address.
func NormalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func (m *MagicLinks) digest(token string) (string, error) {
	h, err := blake2b.New256(m.key[:])
	if err != nil {
		return "", err
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Issue stores a new pending sign-in for email and returns the raw token to
// embed in the emailed link.
func (m *MagicLinks) Issue(ctx context.Context, email string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	raw := make([]byte, signInTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate sign-in token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := m.digest(token)
	if err != nil {
		return "", err
	}

	now := m.now().UTC()
	err = m.store.CreateSignInToken(ctx, &database.SignInToken{
		ID:        uuid.NewString(),
		Email:     email,
		TokenHash: hash,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store sign-in token: %w", err)
	}
	return token, nil
}

// Redeem consumes token and returns the email it was issued for. A token can
// be redeemed once, and only before it expires.
func (m *MagicLinks) Redeem(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidSignInToken
	}
	hash, err := m.digest(token)
	if err != nil {
		return "", err
	}
	record, err := m.store.ConsumeSignInToken(ctx, hash, m.now().UTC())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrInvalidSignInToken
		}
		return "", fmt.Errorf("consume sign-in token: %w", err)
	}
	return record.Email, nil
}
