package messenger

import "github.com/pkg/errors"

// SendState is the lifecycle of an optimistic send.
type SendState int

const (
	SendUnknown SendState = iota
	SendPending
	SendConfirmed
	SendRolledBack
)

func (s SendState) String() string {
	switch s {
	case SendPending:
		return "pending"
	case SendConfirmed:
		return "confirmed"
	case SendRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

var errNotPending = errors.New("send is not pending")

type pendingSend struct {
	roomID    string
	state     SendState
	messageID string
}

// pendingTracker follows optimistic sends keyed by client correlation id.
// A send moves from Pending to exactly one of Confirmed or RolledBack.
// Not safe for concurrent use; the engine guards it with its mutex.
type pendingTracker struct {
	sends map[string]*pendingSend
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{sends: map[string]*pendingSend{}}
}

func (t *pendingTracker) begin(clientID, roomID string) {
	t.sends[clientID] = &pendingSend{roomID: roomID, state: SendPending}
}

func (t *pendingTracker) confirm(clientID, messageID string) error {
	s, ok := t.sends[clientID]
	if !ok || s.state != SendPending {
		return errNotPending
	}
	s.state = SendConfirmed
	s.messageID = messageID
	return nil
}

func (t *pendingTracker) rollBack(clientID string) error {
	s, ok := t.sends[clientID]
	if !ok || s.state != SendPending {
		return errNotPending
	}
	s.state = SendRolledBack
	return nil
}

func (t *pendingTracker) state(clientID string) SendState {
	if s, ok := t.sends[clientID]; ok {
		return s.state
	}
	return SendUnknown
}

// isPending reports whether clientID is an unresolved send for roomID.
func (t *pendingTracker) isPending(clientID, roomID string) bool {
	s, ok := t.sends[clientID]
	return ok && s.state == SendPending && s.roomID == roomID
}

func (t *pendingTracker) reset() {
	t.sends = map[string]*pendingSend{}
}
