package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
)

type authBackendMock struct {
	mock.Mock
	token string
}

var _ AuthBackend = (*authBackendMock)(nil)

func (m *authBackendMock) SignUp(ctx context.Context, email, password string, displayName *string) (auth.Session, error) {
	args := m.Called(ctx, email, password, displayName)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *authBackendMock) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *authBackendMock) Me(ctx context.Context) (models.Profile, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Profile), args.Error(1)
}

func (m *authBackendMock) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.Profile, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(models.Profile), args.Error(1)
}

func (m *authBackendMock) SetToken(token string) { m.token = token }

func aliceSession() auth.Session {
	return auth.Session{
		AccessToken: "jwt",
		ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Identity:    models.Identity{ID: "u1", Email: "alice@example.com"},
		Profile:     models.Profile{ID: "p1", UserID: "u1", Email: "alice@example.com"},
	}
}

func TestProvider_SignInNotifiesAndSetsToken(t *testing.T) {
	ctx := context.Background()
	backend := &authBackendMock{}
	backend.On("SignIn", ctx, "alice@example.com", "secret").Return(aliceSession(), nil)
	p := NewProvider(backend)

	var seen []State
	p.OnChange(func(s State) { seen = append(seen, s) })

	st, err := p.SignIn(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, st.SignedIn())
	assert.Equal(t, "jwt", backend.token)
	require.Len(t, seen, 1)
	assert.Equal(t, "u1", seen[0].Identity.ID)

	id := p.Current().MessengerIdentity()
	assert.Equal(t, "u1", id.ID)
	assert.Equal(t, "alice@example.com", id.Email)
	require.NotNil(t, id.Profile)

	p.SignOut()
	assert.False(t, p.Current().SignedIn())
	assert.Empty(t, backend.token)
	assert.Len(t, seen, 2)
	assert.Empty(t, p.Current().MessengerIdentity().ID)
	backend.AssertExpectations(t)
}

func TestProvider_SignInFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	backend := &authBackendMock{}
	backend.On("SignIn", ctx, "alice@example.com", "wrong").Return(auth.Session{}, auth.ErrInvalidCredentials)
	p := NewProvider(backend)

	_, err := p.SignIn(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.False(t, p.Current().SignedIn())
}

func TestProvider_SignUp(t *testing.T) {
	ctx := context.Background()
	name := "Alice"
	backend := &authBackendMock{}
	backend.On("SignUp", ctx, "alice@example.com", "secret", &name).Return(aliceSession(), nil)
	p := NewProvider(backend)

	st, err := p.SignUp(ctx, "alice@example.com", "secret", &name)
	require.NoError(t, err)
	assert.Equal(t, "jwt", st.Token)
}

func TestProvider_UpdateProfileAndRefresh(t *testing.T) {
	ctx := context.Background()
	backend := &authBackendMock{}
	p := NewProvider(backend)

	_, err := p.UpdateProfile(ctx, models.ProfileUpdate{})
	assert.ErrorIs(t, err, ErrNotSignedIn)
	_, err = p.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)

	backend.On("SignIn", ctx, "alice@example.com", "secret").Return(aliceSession(), nil)
	_, err = p.SignIn(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	name := "Al"
	update := models.ProfileUpdate{DisplayName: &name}
	updated := models.Profile{ID: "p1", UserID: "u1", Email: "alice@example.com", DisplayName: &name}
	backend.On("UpdateProfile", ctx, update).Return(updated, nil)

	var changes int
	p.OnChange(func(State) { changes++ })
	profile, err := p.UpdateProfile(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, "Al", profile.Name())
	assert.Equal(t, "Al", p.Current().Profile.Name())
	assert.Equal(t, 1, changes)

	online := models.StatusOnline
	backend.On("Me", ctx).Return(models.Profile{ID: "p1", UserID: "u1", Email: "alice@example.com", Status: online}, nil)
	st, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, st.Profile.Status)
	assert.Equal(t, "jwt", st.Token)
}

func TestProvider_Restore(t *testing.T) {
	ctx := context.Background()
	backend := &authBackendMock{}
	backend.On("Me", ctx).Return(models.Profile{UserID: "u1", Email: "alice@example.com"}, nil).Once()
	p := NewProvider(backend)

	st, err := p.Restore(ctx, "saved")
	require.NoError(t, err)
	assert.True(t, st.SignedIn())
	assert.Equal(t, "u1", st.Identity.ID)
	assert.Equal(t, "saved", backend.token)

	backend.On("Me", ctx).Return(models.Profile{}, errors.New("unauthorized")).Once()
	p.SignOut()
	_, err = p.Restore(ctx, "expired")
	require.Error(t, err)
	assert.Empty(t, backend.token)
	assert.False(t, p.Current().SignedIn())
}
