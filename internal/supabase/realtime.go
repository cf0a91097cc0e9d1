package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the server.
	maxMessageSize = 1 << 20
)

// ErrSubscriptionClosed is returned by WaitFor after the socket closed.
var ErrSubscriptionClosed = errors.New("realtime subscription closed")

// ChangeFilter selects postgres_changes events. Event is INSERT, UPDATE,
// DELETE or "*".
type ChangeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// Change is one database change delivered over realtime.
type Change struct {
	Type            string         `json:"type"`
	Schema          string         `json:"schema"`
	Table           string         `json:"table"`
	Record          map[string]any `json:"record"`
	OldRecord       map[string]any `json:"old_record"`
	CommitTimestamp string         `json:"commit_timestamp"`
}

// phoenix channel frame
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type systemPayload struct {
	Status    string `json:"status"`
	Extension string `json:"extension"`
	Message   string `json:"message"`
}

type changePayload struct {
	Data Change `json:"data"`
}

// Subscription is a joined realtime channel.
type Subscription struct {
	conn  *websocket.Conn
	topic string

	writeMu sync.Mutex
	ref     int

	changes  chan Change
	control  chan frame // replies and system frames on topic
	readDone chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// RealtimeURL returns the websocket endpoint for the project.
func (c *Client) RealtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	u.RawQuery = url.Values{"apikey": {c.key}, "vsn": {"1.0.0"}}.Encode()
	return u.String(), nil
}

// Subscribe joins a channel listening for filter. It returns once the server
// accepted the join and confirmed the postgres_changes subscription, or
// JoinGrace after the join reply if no confirmation arrives.
func (c *Client) Subscribe(ctx context.Context, filter ChangeFilter) (*Subscription, error) {
	if filter.Schema == "" {
		filter.Schema = c.schema
	}
	if filter.Event == "" {
		filter.Event = "*"
	}
	wsURL, err := c.RealtimeURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	s := &Subscription{
		conn:     conn,
		topic:    "realtime:e2e-" + uuid.NewString(),
		changes:  make(chan Change, 64),
		control:  make(chan frame, 8),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()

	join := map[string]any{
		"config": map[string]any{
			"broadcast":        map[string]any{"self": false},
			"presence":         map[string]any{"key": ""},
			"postgres_changes": []ChangeFilter{filter},
		},
		"access_token": c.key,
	}
	joinRef, err := s.send(s.topic, "phx_join", join)
	if err != nil {
		s.abort()
		return nil, fmt.Errorf("realtime join: %w", err)
	}
	confirmed, err := s.awaitJoin(ctx, joinRef, c.JoinGrace)
	if err != nil {
		s.abort()
		return nil, err
	}
	if !confirmed {
		c.log.Debug("realtime joined without postgres_changes confirmation", "topic", s.topic, "grace", c.JoinGrace)
	}
	c.log.Debug("realtime subscribed", "topic", s.topic, "table", filter.Table, "event", filter.Event)

	s.wg.Add(1)
	go s.heartbeat(c.HeartbeatInterval)
	return s, nil
}

// awaitJoin waits for an ok join reply, then up to grace for the
// postgres_changes system confirmation. confirmed reports whether it came.
func (s *Subscription) awaitJoin(ctx context.Context, joinRef string, grace time.Duration) (confirmed bool, err error) {
	joined := false
	var graceC <-chan time.Time
	for {
		select {
		case f := <-s.control:
			switch {
			case f.Event == "phx_reply" && f.Ref == joinRef && !joined:
				var reply replyPayload
				if err := json.Unmarshal(f.Payload, &reply); err != nil {
					return false, fmt.Errorf("realtime join reply: %w", err)
				}
				if reply.Status != "ok" {
					return false, fmt.Errorf("realtime join rejected: %s %s", reply.Status, string(reply.Response))
				}
				if confirmed || grace <= 0 {
					return confirmed, nil
				}
				joined = true
				timer := time.NewTimer(grace)
				defer timer.Stop()
				graceC = timer.C
			case f.Event == "system":
				var sys systemPayload
				if err := json.Unmarshal(f.Payload, &sys); err != nil || sys.Extension != "postgres_changes" {
					continue
				}
				if sys.Status != "ok" {
					return false, fmt.Errorf("realtime subscribe failed: %s", sys.Message)
				}
				confirmed = true
				if joined {
					return true, nil
				}
			case f.Event == "phx_error":
				return false, fmt.Errorf("realtime channel error: %s", string(f.Payload))
			}
		case <-graceC:
			return false, nil
		case <-s.readDone:
			if err := s.Err(); err != nil {
				return false, fmt.Errorf("realtime join: %w", err)
			}
			return false, fmt.Errorf("realtime join: %w", ErrSubscriptionClosed)
		case <-ctx.Done():
			return false, fmt.Errorf("realtime join: %w", ctx.Err())
		}
	}
}

// abort tears down a subscription that never finished joining.
func (s *Subscription) abort() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		s.wg.Wait()
	})
}

func (s *Subscription) send(topic, event string, payload any) (string, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ref++
	ref := strconv.Itoa(s.ref)
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ref, s.conn.WriteJSON(frame{Topic: topic, Event: event, Payload: p, Ref: ref})
}

func (s *Subscription) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)
	defer close(s.changes)
	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			select {
			case <-s.done:
			default:
				s.setErr(err)
			}
			return
		}
		if f.Topic != s.topic {
			continue
		}
		if f.Event != "postgres_changes" {
			select {
			case s.control <- f:
			default:
			}
			continue
		}
		var p changePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			continue
		}
		select {
		case s.changes <- p.Data:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) heartbeat(interval time.Duration) {
	defer s.wg.Done()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.send("phoenix", "heartbeat", map[string]any{}); err != nil {
				s.setErr(err)
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Err returns the error that ended the read loop, if any.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Changes delivers changes in arrival order. It is closed when the
// subscription ends.
func (s *Subscription) Changes() <-chan Change {
	return s.changes
}

// WaitFor blocks until a change satisfying match arrives or ctx is done.
// Non-matching changes are discarded.
func (s *Subscription) WaitFor(ctx context.Context, match func(Change) bool) (Change, error) {
	for {
		select {
		case ch, ok := <-s.changes:
			if !ok {
				if err := s.Err(); err != nil {
					return Change{}, fmt.Errorf("%w: %v", ErrSubscriptionClosed, err)
				}
				return Change{}, ErrSubscriptionClosed
			}
			if match == nil || match(ch) {
				return ch, nil
			}
		case <-ctx.Done():
			return Change{}, ctx.Err()
		}
	}
}

// Close leaves the channel and closes the socket.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.send(s.topic, "phx_leave", map[string]any{})
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}
