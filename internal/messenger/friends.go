package messenger

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"messenger-service/internal/models"
)

// ListFriends refreshes the profiles reachable through accepted friendships.
// On failure the projection is reset to empty.
func (e *Engine) ListFriends(ctx context.Context) ([]models.Profile, error) {
	friends, err := e.fetchFriends(ctx)
	if err != nil {
		e.mu.Lock()
		e.friends = []models.Profile{}
		e.mu.Unlock()
		e.changed()
		e.logger.Warn("list friends failed", zap.Error(err))
		e.notify(LevelError, "Could not load friends", "There was a problem loading your friends.", err)
		return []models.Profile{}, err
	}

	e.mu.Lock()
	e.friends = friends
	out := make([]models.Profile, len(friends))
	copy(out, friends)
	e.mu.Unlock()
	e.changed()
	return out, nil
}

func (e *Engine) fetchFriends(ctx context.Context) ([]models.Profile, error) {
	edges, err := e.backend.AcceptedFriendships(ctx, PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "friendship lookup")
	}
	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.Counterpart(e.self.ID))
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}

	byID, err := e.profileMap(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "profile fetch")
	}
	friends := make([]models.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			friends = append(friends, p)
		}
	}
	return friends, nil
}

// AddFriend befriends the identity owning email. The friendship is accepted
// immediately, without a request step.
func (e *Engine) AddFriend(ctx context.Context, email string) bool {
	email = models.NormalizeEmail(email)
	if email == "" {
		e.failFriend("Enter an email address.", ErrNotFound)
		return false
	}
	if e.self.Email != "" && models.NormalizeEmail(e.self.Email) == email {
		e.failFriend("You cannot add yourself as a friend.", ErrCannotAddSelf)
		return false
	}

	profile, err := e.backend.ProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.failFriend("No user found with that email.", ErrNotFound)
		} else {
			e.failFriend("There was a problem looking up that user.", err)
		}
		return false
	}
	if profile.UserID == e.self.ID {
		e.failFriend("You cannot add yourself as a friend.", ErrCannotAddSelf)
		return false
	}

	_, err = e.backend.FindAcceptedFriendship(ctx, profile.UserID)
	switch {
	case err == nil:
		e.failFriend("You are already friends.", ErrAlreadyFriends)
		return false
	case !errors.Is(err, ErrNotFound):
		e.failFriend("There was a problem checking your friendship.", err)
		return false
	}

	if _, err := e.backend.InsertFriendship(ctx, profile.UserID, models.FriendshipAccepted); err != nil {
		if errors.Is(err, ErrConflict) {
			e.failFriend("You are already friends.", ErrAlreadyFriends)
		} else {
			e.failFriend("There was a problem adding the friend.", err)
		}
		return false
	}

	e.mu.Lock()
	present := false
	for _, f := range e.friends {
		if f.UserID == profile.UserID {
			present = true
			break
		}
	}
	if !present {
		e.friends = append(e.friends, profile)
	}
	e.mu.Unlock()
	e.changed()

	e.notify(LevelSuccess, "Friend added", profile.Name()+" was added to your friends.", nil)
	_, _ = e.ListFriends(ctx)
	return true
}

func (e *Engine) failFriend(message string, err error) {
	e.logger.Debug("add friend rejected", zap.Error(err))
	e.notify(LevelError, "Could not add friend", message, err)
}
