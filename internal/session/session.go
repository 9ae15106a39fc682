// Package session tracks the signed-in identity on the client side.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"messenger-service/internal/auth"
	"messenger-service/internal/messenger"
	"messenger-service/internal/models"
)

var ErrNotSignedIn = errors.New("not signed in")

// AuthBackend is the part of the API the provider needs.
type AuthBackend interface {
	SignUp(ctx context.Context, email, password string, displayName *string) (auth.Session, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	Me(ctx context.Context) (models.Profile, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.Profile, error)
	SetToken(token string)
}

// State is a snapshot of the current session. The zero value is signed out.
type State struct {
	Token     string
	ExpiresAt time.Time
	Identity  *models.Identity
	Profile   *models.Profile
}

func (s State) SignedIn() bool { return s.Identity != nil && s.Token != "" }

// MessengerIdentity converts the state into the identity the sync engine
// works for.
func (s State) MessengerIdentity() messenger.Identity {
	if s.Identity == nil {
		return messenger.Identity{}
	}
	return messenger.Identity{ID: s.Identity.ID, Email: s.Identity.Email, Profile: s.Profile}
}

// Provider holds the session and informs listeners about every change.
type Provider struct {
	backend AuthBackend

	mu        sync.RWMutex
	state     State
	listeners []func(State)
}

func NewProvider(backend AuthBackend) *Provider {
	return &Provider{backend: backend}
}

// OnChange registers fn for identity and profile changes.
func (p *Provider) OnChange(fn func(State)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *Provider) Current() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Provider) SignUp(ctx context.Context, email, password string, displayName *string) (State, error) {
	s, err := p.backend.SignUp(ctx, email, password, displayName)
	if err != nil {
		return State{}, err
	}
	return p.apply(s), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (State, error) {
	s, err := p.backend.SignIn(ctx, email, password)
	if err != nil {
		return State{}, err
	}
	return p.apply(s), nil
}

// Restore resumes a session from a previously issued token.
func (p *Provider) Restore(ctx context.Context, token string) (State, error) {
	p.backend.SetToken(token)
	profile, err := p.backend.Me(ctx)
	if err != nil {
		p.backend.SetToken(p.Current().Token)
		return State{}, err
	}
	identity := models.Identity{ID: profile.UserID, Email: profile.Email}
	return p.set(State{Token: token, Identity: &identity, Profile: &profile}), nil
}

func (p *Provider) SignOut() {
	p.backend.SetToken("")
	p.set(State{})
}

// UpdateProfile applies update to the signed-in identity's profile.
func (p *Provider) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.Profile, error) {
	cur := p.Current()
	if !cur.SignedIn() {
		return models.Profile{}, ErrNotSignedIn
	}
	profile, err := p.backend.UpdateProfile(ctx, update)
	if err != nil {
		return models.Profile{}, err
	}
	cur.Profile = &profile
	p.set(cur)
	return profile, nil
}

// Refresh reloads the profile of the signed-in identity.
func (p *Provider) Refresh(ctx context.Context) (State, error) {
	cur := p.Current()
	if !cur.SignedIn() {
		return State{}, ErrNotSignedIn
	}
	profile, err := p.backend.Me(ctx)
	if err != nil {
		return State{}, err
	}
	cur.Profile = &profile
	return p.set(cur), nil
}

func (p *Provider) apply(s auth.Session) State {
	identity := s.Identity
	profile := s.Profile
	p.backend.SetToken(s.AccessToken)
	return p.set(State{Token: s.AccessToken, ExpiresAt: s.ExpiresAt, Identity: &identity, Profile: &profile})
}

func (p *Provider) set(s State) State {
	p.mu.Lock()
	p.state = s
	listeners := make([]func(State), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
	return s
}
