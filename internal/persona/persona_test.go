package persona

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogHasRepliesForEveryPersona(t *testing.T) {
	all := All()
	require.Len(t, all, 6)
	seen := map[string]bool{}
	for _, p := range all {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.SystemPrompt)
		assert.Len(t, cannedReplies[p.ID], 5, p.ID)
	}
	assert.Equal(t, "assistant", Default().ID)
}

func TestAllReturnsACopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	assert.Equal(t, "Assistant", Default().Name)
}

func TestLookup(t *testing.T) {
	p, err := Lookup("tutor")
	require.NoError(t, err)
	assert.Equal(t, "Tutor", p.Name)

	_, err = Lookup("pirate")
	assert.True(t, errors.Is(err, ErrUnknownPersona))
}

func TestGreetingNamesThePersona(t *testing.T) {
	p, err := Lookup("analyst")
	require.NoError(t, err)
	assert.Equal(t, "Hello! I'm Analyst. An AI that analyses data and information. How can I help you today?", Greeting(p))
}

func TestCannedReplyComesFromRepertoire(t *testing.T) {
	r := NewCannedResponder(WithSeed(7))
	p, _ := Lookup("friend")
	for i := 0; i < 20; i++ {
		reply, err := r.Reply(context.Background(), p, "hi", nil)
		require.NoError(t, err)
		assert.Contains(t, cannedReplies["friend"], reply)
	}
}

func TestCannedReplyInsertsPrompt(t *testing.T) {
	r := NewCannedResponder(WithSeed(1))
	p := Default()
	found := false
	for i := 0; i < 200 && !found; i++ {
		reply, err := r.Reply(context.Background(), p, "  why is the sky blue?  ", nil)
		require.NoError(t, err)
		assert.NotContains(t, reply, promptMarker)
		found = reply == "Interesting question. Here is one way to look at it: why is the sky blue?"
	}
	assert.True(t, found)
}

func TestCannedReplyUnknownPersonaFallsBack(t *testing.T) {
	r := NewCannedResponder(WithSeed(3))
	reply, err := r.Reply(context.Background(), Persona{ID: "pirate"}, "ahoy", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestCannedReplyHonorsCancellation(t *testing.T) {
	r := NewCannedResponder(WithThinkTime(time.Hour, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := r.Reply(ctx, Default(), "hello", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithThinkTimeIgnoresInvertedRange(t *testing.T) {
	r := NewCannedResponder(WithThinkTime(2*time.Second, time.Second))
	assert.Zero(t, r.minThink)
	assert.Zero(t, r.maxThink)
}
