// Package auth implements the identity provider: sign-up, sign-in and
// access-token validation.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrValidation wraps input problems on sign-up.
	ErrValidation = errors.New("validation failed")
)

const minPasswordLen = 6

// Session is what a successful sign-up or sign-in hands back to the caller.
type Session struct {
	AccessToken string          `json:"access_token"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Identity    models.Identity `json:"identity"`
	Profile     models.Profile  `json:"profile"`
}

// Claims are the JWT claims issued for an identity.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and validates access tokens.
type Service struct {
	identities repositories.IdentityRepository
	profiles   repositories.ProfileRepository
	signKey    []byte
	accessTTL  time.Duration
	now        func() time.Time
}

// NewService constructs Service with required dependencies.
func NewService(identities repositories.IdentityRepository, profiles repositories.ProfileRepository, signKey []byte, accessTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &Service{
		identities: identities,
		profiles:   profiles,
		signKey:    signKey,
		accessTTL:  accessTTL,
		now:        time.Now,
	}
}

// SignUp creates an identity with its profile and returns a session.
func (s *Service) SignUp(ctx context.Context, email, password string, displayName *string) (Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, errors.Join(ErrValidation, errors.New("invalid email"))
	}
	if len(password) < minPasswordLen {
		return Session{}, errors.Join(ErrValidation, errors.New("password too short"))
	}
	if displayName == nil || strings.TrimSpace(*displayName) == "" {
		local := models.EmailLocalPart(email)
		displayName = &local
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}

	identity, profile, err := s.identities.CreateIdentity(ctx, email, string(hash), displayName)
	if err != nil {
		return Session{}, err
	}
	return s.newSession(identity, profile)
}

// SignIn verifies credentials, lazily creates a missing profile and returns
// a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	identity, err := s.identities.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrIdentityNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	local := models.EmailLocalPart(identity.Email)
	profile, err := s.profiles.EnsureProfile(ctx, identity, &local)
	if err != nil {
		return Session{}, err
	}
	return s.newSession(identity, profile)
}

// ValidateToken verifies the JWT and returns the authenticated identity id.
func (s *Service) ValidateToken(_ context.Context, token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *Service) newSession(identity models.Identity, profile models.Profile) (Session, error) {
	token, exp, err := s.issueAccessToken(identity)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, ExpiresAt: exp, Identity: identity, Profile: profile}, nil
}

// issueAccessToken creates a signed HS256 JWT for the identity.
func (s *Service) issueAccessToken(identity models.Identity) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
