package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pusher/pusher-http-go/v5"
	"golang.org/x/exp/slog"

	"go-fairdice/internal/lib/logger/sl"
)

// Notifier fans state changes out to listeners. Delivery is best effort:
// callers log failures and never roll a transaction back over one.
type Notifier interface {
	Notify(channel string, eventName string, data map[string]interface{}) error
}

type Message struct {
	Channel string                 `json:"channel"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data"`
}

type WebsocketEvent struct {
	log  *slog.Logger
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWebsocketEvent(log *slog.Logger, conn *websocket.Conn) *WebsocketEvent {
	return &WebsocketEvent{
		log:  log,
		conn: conn,
	}
}

func (w *WebsocketEvent) Notify(channel string, eventName string, data map[string]interface{}) error {
	const op = "handlers.event.WebsocketEvent.Notify"

	msg, err := json.Marshal(Message{
		Channel: channel,
		Event:   eventName,
		Data:    data,
	})
	if err != nil {
		w.log.Error("failed to marshal event message", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	// gorilla connections do not allow concurrent writers.
	w.mu.Lock()
	defer w.mu.Unlock()

	if err = w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		w.log.Error("failed to trigger event", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type PusherEvent struct {
	log    *slog.Logger
	pusher *pusher.Client
}

func NewPusherEvent(log *slog.Logger, pusherClient *pusher.Client) *PusherEvent {
	return &PusherEvent{
		log:    log,
		pusher: pusherClient,
	}
}

func (p *PusherEvent) Notify(channel string, eventName string, data map[string]interface{}) error {
	if err := p.pusher.Trigger(channel, eventName, data); err != nil {
		p.log.Error("failed to trigger pusher event", sl.Err(err))

		return err
	}

	return nil
}
