package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/notify"
)

const maxEventBackoff = 30 * time.Second

// EventSubscriber listens on /api/events and calls OnChange for every
// change frame, reconnecting with backoff until its context ends.
type EventSubscriber struct {
	http     *HTTPClient
	OnChange func(notify.Change)
}

// NewEventSubscriber creates a subscriber that calls onChange per change.
func NewEventSubscriber(httpClient *HTTPClient, onChange func(notify.Change)) *EventSubscriber {
	return &EventSubscriber{http: httpClient, OnChange: onChange}
}

// eventsURL maps the http(s) base URL to ws(s).
func (s *EventSubscriber) eventsURL() string {
	u := s.http.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/events"
}

// Run connects and reads until ctx is done.
func (s *EventSubscriber) Run(ctx context.Context) error {
	retry := 0
	for {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			retry = 0
		}
		delay := min(time.Second<<retry, maxEventBackoff)
		retry = min(retry+1, 5)
		log.Warn().Err(err).Dur("retryIn", delay).Msg("Event stream disconnected")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// listen holds one connection. It returns nil if the connection was
// established and later dropped.
func (s *EventSubscriber) listen(ctx context.Context) error {
	header := make(http.Header)
	if s.http.deviceID != "" {
		header.Set("X-Device-ID", s.http.deviceID)
	}
	switch {
	case s.http.token != "":
		header.Set("Authorization", "Bearer "+s.http.token)
	case s.http.debugSub != "":
		header.Set("X-Debug-Sub", s.http.debugSub)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, s.eventsURL(), &websocket.DialOptions{
		HTTPHeader: header,
	})
	cancel()
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	log.Info().Str("url", s.eventsURL()).Msg("Event stream connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
			}
			return nil
		}
		var msg notify.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("Ignoring malformed event frame")
			continue
		}
		if msg.Type == notify.MessageChange && msg.Change != nil && s.OnChange != nil {
			s.OnChange(*msg.Change)
		}
	}
}
