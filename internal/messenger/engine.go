package messenger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/persona"
)

const (
	// PageSize caps room and friendship listings.
	PageSize = 50

	defaultLoadingTimeout = 3 * time.Second
)

// Engine holds the identity-scoped projections. All methods are safe for
// concurrent use; backend calls run without holding the state lock.
type Engine struct {
	backend        Backend
	self           Identity
	notifier       Notifier
	logger         *zap.Logger
	now            func() time.Time
	loadingTimeout time.Duration
	responder      persona.Responder

	mu         sync.Mutex
	rooms      []models.RoomView
	friends    []models.Profile
	messages   []models.MessageView
	selected   string
	loading    bool
	typing     map[string]string
	generation uint64
	pending    *pendingTracker
	onChange   []func()

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	sub     Subscription
	loopWG  sync.WaitGroup
	started bool
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLoadingTimeout bounds how long Loading may report true after Start.
func WithLoadingTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.loadingTimeout = d
		}
	}
}

// WithResponder sets who answers for AI personas.
func WithResponder(r persona.Responder) Option {
	return func(e *Engine) {
		if r != nil {
			e.responder = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine for the signed-in identity.
func New(backend Backend, self Identity, opts ...Option) (*Engine, error) {
	if self.ID == "" {
		return nil, ErrNoIdentity
	}
	e := &Engine{
		backend:        backend,
		self:           self,
		notifier:       discardNotifier{},
		logger:         zap.NewNop(),
		now:            time.Now,
		loadingTimeout: defaultLoadingTimeout,
		responder:      persona.NewCannedResponder(),
		typing:         map[string]string{},
		rooms:          []models.RoomView{},
		friends:        []models.Profile{},
		messages:       []models.MessageView{},
		pending:        newPendingTracker(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("messenger").With(zap.String("user_id", self.ID))
	return e, nil
}

// Start loads friends and rooms concurrently and opens the realtime feed.
// A failing load leaves its projection empty without aborting the other.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.started {
		return nil
	}
	e.started = true

	e.setLoading(true)
	timer := time.AfterFunc(e.loadingTimeout, func() { e.setLoading(false) })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = e.ListFriends(ctx)
	}()
	go func() {
		defer wg.Done()
		_, _ = e.ListRooms(ctx)
	}()
	wg.Wait()
	timer.Stop()
	e.setLoading(false)

	loopCtx, cancel := context.WithCancel(context.Background())
	sub, err := e.backend.SubscribeMessages(loopCtx)
	if err != nil {
		cancel()
		e.logger.Warn("realtime subscription failed", zap.Error(err))
		e.notify(LevelError, "Realtime unavailable", "New messages will not appear until you reconnect.", err)
		return errors.Wrap(err, "subscribe messages")
	}
	e.cancel = cancel
	e.sub = sub
	e.loopWG.Add(1)
	go e.realtimeLoop(loopCtx, sub)
	return nil
}

// Close ends the realtime feed and clears every projection.
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	var err error
	if e.cancel != nil {
		e.cancel()
	}
	if e.sub != nil {
		err = e.sub.Close()
	}
	e.loopWG.Wait()
	e.cancel, e.sub, e.started = nil, nil, false
	e.lifeMu.Unlock()

	e.mu.Lock()
	e.rooms = []models.RoomView{}
	e.friends = []models.Profile{}
	e.messages = []models.MessageView{}
	e.selected = ""
	e.loading = false
	e.typing = map[string]string{}
	e.generation++
	e.pending.reset()
	e.mu.Unlock()
	e.changed()
	return err
}

// OnChange registers fn to be called after any projection change.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = append(e.onChange, fn)
	e.mu.Unlock()
}

// Identity returns the identity the engine works for.
func (e *Engine) Identity() Identity { return e.self }

func (e *Engine) Rooms() []models.RoomView {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.RoomView, len(e.rooms))
	copy(out, e.rooms)
	return out
}

func (e *Engine) Friends() []models.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Profile, len(e.friends))
	copy(out, e.friends)
	return out
}

// Messages returns the selected room's messages, oldest first.
func (e *Engine) Messages() []models.MessageView {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.MessageView, len(e.messages))
	copy(out, e.messages)
	return out
}

func (e *Engine) SelectedRoomID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// SendState reports the state of an optimistic send by correlation id.
func (e *Engine) SendState(clientID string) SendState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.state(clientID)
}

func (e *Engine) setLoading(v bool) {
	e.mu.Lock()
	changed := e.loading != v
	e.loading = v
	e.mu.Unlock()
	if changed {
		e.changed()
	}
}

func (e *Engine) changed() {
	e.mu.Lock()
	listeners := make([]func(), len(e.onChange))
	copy(listeners, e.onChange)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (e *Engine) notify(level Level, title, message string, err error) {
	e.notifier.Notify(Notification{Level: level, Title: title, Message: message, Err: err})
}

// profileMap fetches profiles for ids and indexes them by user id.
func (e *Engine) profileMap(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := map[string]models.Profile{}
	if len(ids) == 0 {
		return out, nil
	}
	profiles, err := e.backend.ProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
