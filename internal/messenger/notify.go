package messenger

// Level classifies a user-facing notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a short message for the user. Err carries the condition
// behind an error notification.
type Notification struct {
	Level   Level
	Title   string
	Message string
	Err     error
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}
