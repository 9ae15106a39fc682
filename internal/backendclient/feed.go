package backendclient

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"messenger-service/internal/messenger"
	"messenger-service/internal/models"
)

// SubscribeMessages opens the realtime insert feed for the caller.
func (c *Client) SubscribeMessages(ctx context.Context) (messenger.Subscription, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + "/ws/messages"

	header := http.Header{}
	if tok := c.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, res, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if res != nil && res.StatusCode == http.StatusUnauthorized {
			return nil, errors.WithMessage(ErrUnauthorized, "message feed")
		}
		return nil, errors.Wrap(err, "dial message feed")
	}

	sub := &feedSubscription{
		conn:   conn,
		events: make(chan models.MessageEvent, 32),
		done:   make(chan struct{}),
		logger: c.logger.With(zap.String("feed", redact(u))),
	}
	go sub.readLoop()
	return sub, nil
}

type feedSubscription struct {
	conn      *websocket.Conn
	events    chan models.MessageEvent
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func (s *feedSubscription) Events() <-chan models.MessageEvent { return s.events }

func (s *feedSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = s.conn.Close()
	})
	return err
}

func (s *feedSubscription) readLoop() {
	defer close(s.events)
	for {
		var ev models.MessageEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("message feed read failed", zap.Error(err))
				}
			}
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func redact(u url.URL) string {
	u.RawQuery = ""
	return u.String()
}
