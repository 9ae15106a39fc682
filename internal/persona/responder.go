package persona

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"messenger-service/internal/models"
)

// Responder produces a persona's reply to prompt given the room history.
type Responder interface {
	Reply(ctx context.Context, p Persona, prompt string, history []models.MessageView) (string, error)
}

// promptMarker in a canned line is replaced by the user's prompt.
const promptMarker = "{prompt}"

var cannedReplies = map[string][]string{
	"assistant": {
		"Sure, I can help with that. Could you tell me a bit more?",
		"Interesting question. Here is one way to look at it: {prompt}",
		"Good idea! How about developing it further?",
		"Got it. Let's approach this step by step.",
		"Feel free to ask whenever something is unclear.",
	},
	"creative": {
		"✨ What a creative thought! How about this twist?",
		"🎨 That sparks the imagination. Let's brainstorm together!",
		"💡 Looking at it from a new angle could make it even more fun!",
		"🌟 Building on that idea, here is a variation...",
		"🎭 Creativity has no limits! Let's think bigger!",
	},
	"professional": {
		"From a business perspective, consider the following strategy.",
		"Let me suggest an efficient approach.",
		"Decisions grounded in data matter most here.",
		"Weighing ROI, I would set the priorities like this.",
		"Some parts need a closer look from a risk management standpoint.",
	},
	"friend": {
		"Oh, that sounds like fun! 😄 I've thought about that too.",
		"How are you feeling today? Anything special happen?",
		"Totally! I'd have done the same 🤗",
		"Sounds like a rough one... it'll be okay! 💪",
		"Wow, great news! Congratulations! 🎉",
	},
	"tutor": {
		"Great question! Let me explain it step by step.",
		"To understand this, let's start from the basic principle.",
		"An example will make this easier to follow.",
		"Which part feels tricky? I can go into more detail.",
		"You've got it! Shall we move on to the next step?",
	},
	"analyst": {
		"Analysing the data, the following pattern stands out.",
		"Statistically, the trend looks like this.",
		"The correlation analysis shows an interesting result.",
		"Across the variables, the most significant factors are these.",
		"Projecting from the trend analysis...",
	},
}

// CannedResponder answers with a random line from the persona's repertoire
// after an optional think delay. Safe for concurrent use.
type CannedResponder struct {
	minThink time.Duration
	maxThink time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

type CannedOption func(*CannedResponder)

// WithThinkTime delays each reply by a random duration in [lo, hi].
func WithThinkTime(lo, hi time.Duration) CannedOption {
	return func(r *CannedResponder) {
		if lo < 0 || hi < lo {
			return
		}
		r.minThink, r.maxThink = lo, hi
	}
}

// WithSeed makes reply selection deterministic.
func WithSeed(seed uint64) CannedOption {
	return func(r *CannedResponder) {
		r.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

func NewCannedResponder(opts ...CannedOption) *CannedResponder {
	r := &CannedResponder{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CannedResponder) Reply(ctx context.Context, p Persona, prompt string, _ []models.MessageView) (string, error) {
	lines, ok := cannedReplies[p.ID]
	if !ok {
		lines = cannedReplies[Default().ID]
	}

	r.mu.Lock()
	line := lines[r.rng.IntN(len(lines))]
	think := r.minThink
	if span := r.maxThink - r.minThink; span > 0 {
		think += time.Duration(r.rng.Int64N(int64(span) + 1))
	}
	r.mu.Unlock()

	if think > 0 {
		t := time.NewTimer(think)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return strings.ReplaceAll(line, promptMarker, strings.TrimSpace(prompt)), nil
}
