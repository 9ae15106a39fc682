package messenger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"messenger-service/internal/models"
)

// fakeStore is an in-memory backend shared by several identities.
type fakeStore struct {
	mu           sync.Mutex
	seq          int
	clock        time.Time
	profiles     map[string]models.Profile
	friendships  []models.Friendship
	rooms        map[string]models.Room
	participants []models.Participant
	messages     []models.Message
	subs         map[string][]*fakeSub

	// failures maps "method" or "method:userID" to the error to return.
	failures map[string]error
	// gates blocks ListMessages for a room until the channel is closed.
	gates map[string]chan struct{}
	// roomIDsGate blocks ParticipantRoomIDs until the channel is closed.
	roomIDsGate chan struct{}
	// insertGate blocks InsertMessage until the channel is closed;
	// insertWaiting is set while a call is parked on it.
	insertGate    chan struct{}
	insertWaiting bool
	// createRoomFailsAfterInsert leaves the room behind without participants.
	createRoomFailsAfterInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		profiles: map[string]models.Profile{},
		rooms:    map[string]models.Room{},
		subs:     map[string][]*fakeSub{},
		failures: map[string]error{},
		gates:    map[string]chan struct{}{},
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) addUser(id, email string, displayName *string) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Profile{ID: "p-" + id, UserID: id, Email: email, DisplayName: displayName, Status: models.StatusOffline}
	s.profiles[id] = p
	return p
}

func (s *fakeStore) fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *fakeStore) clearFailure(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method)
}

func (s *fakeStore) gate(roomID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[roomID] = ch
	return ch
}

func (s *fakeStore) failure(method, userID string) error {
	if err, ok := s.failures[method+":"+userID]; ok {
		return err
	}
	return s.failures[method]
}

func (s *fakeStore) roomRows(roomID string) (room bool, participants, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, room = s.rooms[roomID]
	for _, p := range s.participants {
		if p.RoomID == roomID {
			participants++
		}
	}
	for _, m := range s.messages {
		if m.RoomID == roomID {
			messages++
		}
	}
	return room, participants, messages
}

func (s *fakeStore) publish(msg models.Message) {
	var targets []*fakeSub
	for _, p := range s.participants {
		if p.RoomID == msg.RoomID {
			targets = append(targets, s.subs[p.UserID]...)
		}
	}
	for _, sub := range targets {
		sub.deliver(models.MessageEvent{Type: models.EventInsert, Message: &msg})
	}
}

func (s *fakeStore) backend(userID string) *fakeBackend {
	return &fakeBackend{store: s, userID: userID}
}

type fakeSub struct {
	mu     sync.Mutex
	ch     chan models.MessageEvent
	closed bool
}

func (f *fakeSub) Events() <-chan models.MessageEvent { return f.ch }

func (f *fakeSub) deliver(ev models.MessageEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.ch <- ev
	}
}

func (f *fakeSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

// fakeBackend is the view of fakeStore for one signed-in identity.
type fakeBackend struct {
	store  *fakeStore
	userID string
}

var _ Backend = (*fakeBackend)(nil)

func (b *fakeBackend) ParticipantRoomIDs(context.Context) ([]string, error) {
	s := b.store
	s.mu.Lock()
	gate := s.roomIDsGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ParticipantRoomIDs", b.userID); err != nil {
		return nil, err
	}
	ids := []string{}
	for _, p := range s.participants {
		if p.UserID == b.userID {
			ids = append(ids, p.RoomID)
		}
	}
	return ids, nil
}

func (b *fakeBackend) Rooms(_ context.Context, roomIDs []string, limit int) ([]models.RoomDetails, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Rooms", b.userID); err != nil {
		return nil, err
	}
	out := []models.RoomDetails{}
	for _, id := range roomIDs {
		room, ok := s.rooms[id]
		if !ok {
			continue
		}
		d := models.RoomDetails{Room: room, Participants: []models.ParticipantView{}}
		for _, p := range s.participants {
			if p.RoomID == id {
				view := models.ParticipantView{Participant: p}
				if prof, ok := s.profiles[p.UserID]; ok {
					prof := prof
					view.Profile = &prof
				}
				d.Participants = append(d.Participants, view)
			}
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *fakeBackend) CreateRoom(_ context.Context, room models.NewRoom) (models.Room, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateRoom", b.userID); err != nil {
		return models.Room{}, err
	}
	now := s.tick()
	created := models.Room{ID: s.nextID("room"), Name: room.Name, IsGroup: room.IsGroup, CreatedBy: b.userID, AIPersona: room.AIPersona, CreatedAt: now, UpdatedAt: now}
	s.rooms[created.ID] = created
	if s.createRoomFailsAfterInsert {
		return models.Room{}, fmt.Errorf("participant insert failed")
	}
	for _, id := range append([]string{b.userID}, room.ParticipantIDs...) {
		s.participants = append(s.participants, models.Participant{ID: s.nextID("part"), RoomID: created.ID, UserID: id, JoinedAt: now})
	}
	return created, nil
}

func (b *fakeBackend) TouchRoom(_ context.Context, roomID string) error {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("TouchRoom", b.userID); err != nil {
		return err
	}
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.UpdatedAt = s.tick()
	s.rooms[roomID] = room
	return nil
}

func (b *fakeBackend) LeaveRoom(_ context.Context, roomID string) (models.LeaveResult, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("LeaveRoom", b.userID); err != nil {
		return models.LeaveResult{}, err
	}
	if _, ok := s.rooms[roomID]; !ok {
		return models.LeaveResult{}, ErrNotFound
	}
	kept := s.participants[:0:0]
	remaining := 0
	for _, p := range s.participants {
		if p.RoomID == roomID && p.UserID == b.userID {
			continue
		}
		if p.RoomID == roomID {
			remaining++
		}
		kept = append(kept, p)
	}
	s.participants = kept
	if remaining > 0 {
		return models.LeaveResult{Remaining: remaining}, nil
	}
	msgs := s.messages[:0:0]
	for _, m := range s.messages {
		if m.RoomID != roomID {
			msgs = append(msgs, m)
		}
	}
	s.messages = msgs
	delete(s.rooms, roomID)
	return models.LeaveResult{RoomDeleted: true}, nil
}

func (b *fakeBackend) AcceptedFriendships(_ context.Context, limit int) ([]models.Friendship, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("AcceptedFriendships", b.userID); err != nil {
		return nil, err
	}
	out := []models.Friendship{}
	for _, f := range s.friendships {
		if f.Status == models.FriendshipAccepted && (f.RequesterID == b.userID || f.AddresseeID == b.userID) {
			out = append(out, f)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *fakeBackend) FindAcceptedFriendship(_ context.Context, otherID string) (models.Friendship, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindAcceptedFriendship", b.userID); err != nil {
		return models.Friendship{}, err
	}
	for _, f := range s.friendships {
		if f.Status != models.FriendshipAccepted {
			continue
		}
		if (f.RequesterID == b.userID && f.AddresseeID == otherID) || (f.RequesterID == otherID && f.AddresseeID == b.userID) {
			return f, nil
		}
	}
	return models.Friendship{}, ErrNotFound
}

func (b *fakeBackend) InsertFriendship(_ context.Context, addresseeID string, status models.FriendshipStatus) (models.Friendship, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertFriendship", b.userID); err != nil {
		return models.Friendship{}, err
	}
	for _, f := range s.friendships {
		if f.RequesterID == b.userID && f.AddresseeID == addresseeID {
			return models.Friendship{}, ErrConflict
		}
	}
	now := s.tick()
	f := models.Friendship{ID: s.nextID("fr"), RequesterID: b.userID, AddresseeID: addresseeID, Status: status, CreatedAt: now, UpdatedAt: now}
	s.friendships = append(s.friendships, f)
	return f, nil
}

func (b *fakeBackend) ProfilesByIDs(_ context.Context, userIDs []string) ([]models.Profile, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ProfilesByIDs", b.userID); err != nil {
		return nil, err
	}
	out := []models.Profile{}
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *fakeBackend) ProfileByEmail(_ context.Context, email string) (models.Profile, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ProfileByEmail", b.userID); err != nil {
		return models.Profile{}, err
	}
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return models.Profile{}, ErrNotFound
}

func (b *fakeBackend) ListMessages(_ context.Context, roomID string) ([]models.Message, error) {
	s := b.store
	s.mu.Lock()
	gate := s.gates[roomID]
	delete(s.gates, roomID)
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListMessages", b.userID); err != nil {
		return nil, err
	}
	out := []models.Message{}
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (b *fakeBackend) InsertMessage(_ context.Context, roomID string, msg models.NewMessage) (models.Message, error) {
	s := b.store
	s.mu.Lock()
	if gate := s.insertGate; gate != nil {
		s.insertGate = nil
		s.insertWaiting = true
		s.mu.Unlock()
		<-gate
		s.mu.Lock()
		s.insertWaiting = false
	}
	defer s.mu.Unlock()
	if err := s.failure("InsertMessage", b.userID); err != nil {
		return models.Message{}, err
	}
	now := s.tick()
	stored := models.Message{
		ID:          s.nextID("msg"),
		RoomID:      roomID,
		SenderID:    b.userID,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		AIPersona:   msg.AIPersona,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.messages = append(s.messages, stored)
	s.publish(stored)
	return stored, nil
}

func (b *fakeBackend) SubscribeMessages(context.Context) (Subscription, error) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("SubscribeMessages", b.userID); err != nil {
		return nil, err
	}
	sub := &fakeSub{ch: make(chan models.MessageEvent, 64)}
	s.subs[b.userID] = append(s.subs[b.userID], sub)
	return sub, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Notification{}
	}
	return r.notes[len(r.notes)-1]
}

func (r *recordingNotifier) errors() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notes {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}

// gateTaken reports whether a ListMessages call has picked up the gate.
func (s *fakeStore) gateTaken(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, waiting := s.gates[roomID]
	return !waiting
}

// gateInsert parks the next InsertMessage call until the returned channel is
// closed.
func (s *fakeStore) gateInsert() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.insertGate = ch
	return ch
}

func (s *fakeStore) insertParked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertWaiting
}
