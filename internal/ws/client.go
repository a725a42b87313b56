package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

// Client is one WebSocket peer. It renders its session's output by
// queueing messages, so every Renderer method returns immediately.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	remote  string
	session *tracker.Session
	log     *logger.Logger

	send      chan *Message
	done      chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

var (
	_ tracker.Renderer      = (*Client)(nil)
	_ tracker.CycleObserver = (*Client)(nil)
)

func newClient(h *Hub, conn *websocket.Conn, id, remote string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:    h,
		conn:   conn,
		remote: remote,
		log:    h.log.With(logger.String("session", id)),
		send:   make(chan *Message, sendBuffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	c.session = tracker.NewSession(id, h.src, c, h.dir, h.cfg, h.log, h.recorder)
	return c
}

// SetFeatures sends the published feature set.
func (c *Client) SetFeatures(fc feature.Collection) {
	c.enqueue(&Message{Type: TypeFeatures, Data: fc})
}

// SetFilter sends the compiled filter and its map expression.
func (c *Client) SetFilter(p filter.Predicate) {
	c.enqueue(&Message{Type: TypeFilter, Data: newFilterPayload(p)})
}

// Recenter asks the map to fly to a point.
func (c *Client) Recenter(d tracker.RecenterDirective) {
	c.enqueue(&Message{Type: TypeRecenter, Data: d})
}

// ShowPopup opens a details popup.
func (c *Client) ShowPopup(d tracker.PopupDirective) {
	c.enqueue(&Message{Type: TypePopup, Data: d})
}

// CycleCompleted sends the poll status. Failures carry the user message.
func (c *Client) CycleCompleted(r tracker.CycleReport) {
	if r.Outcome == tracker.OutcomeSuperseded {
		return
	}
	payload := StatusPayload{CycleReport: r}
	if r.Outcome == tracker.OutcomeFailed {
		payload.Message = tracker.UserMessage(r.Err)
	}
	c.enqueue(&Message{Type: TypeStatus, Data: payload})
}

func (c *Client) sendError(request string, err error) {
	c.enqueue(&Message{Type: TypeError, Data: ErrorPayload{Request: request, Message: errorMessage(err)}})
}

// enqueue drops the client if it cannot keep up.
func (c *Client) enqueue(m *Message) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- m:
	default:
		c.log.Warn("Send buffer full, dropping client", logger.String("message_type", m.Type))
		c.close()
	}
}

// close stops the session and both pumps. Safe to call more than once,
// including from a poll cycle, so the session is torn down asynchronously.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		c.conn.Close()
		go c.session.Close()
	})
}

// readPump decodes client messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.hub.remove(c)
		c.log.Info("WebSocket session ended")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket read error", logger.Error(err))
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", badRequest(fmt.Errorf("invalid message: %w", err)))
			continue
		}

		c.log.Debug("Received WebSocket message", logger.String("type", msg.Type))

		if err := c.handle(msg); err != nil {
			c.sendError(msg.Type, err)
		}
	}
}

// handle applies one client message to the session.
func (c *Client) handle(msg Inbound) error {
	switch msg.Type {
	case TypeViewport:
		var req ViewportRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		if err := c.session.ViewportChanged(req.BoundingBox()); err != nil {
			return badRequest(err)
		}

	case TypeFilter:
		var req FilterRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		c.session.SetFilter(req.Text)

	case TypeLocate:
		var req LocateRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		go c.locate(req.Callsign)

	case TypeSelect:
		var req SelectRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		if _, err := c.session.Select(req.ICAO24, coordinates.Geographic{Latitude: req.Lat, Longitude: req.Lng}); err != nil {
			return err
		}

	case TypeRefresh:
		c.session.Refresh()

	default:
		return badRequest(fmt.Errorf("unknown message type %q", msg.Type))
	}
	return nil
}

// locate runs off the read loop so a slow search never blocks viewport updates.
func (c *Client) locate(callsign string) {
	_, err := c.session.Locate(c.ctx, callsign)
	if err == nil || errors.Is(err, tracker.ErrSuperseded) {
		return
	}
	if c.ctx.Err() != nil {
		return
	}
	c.sendError(TypeLocate, err)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return badRequest(errors.New("missing data"))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badRequest(fmt.Errorf("invalid data: %w", err))
	}
	return nil
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case m := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
				c.log.Debug("WebSocket write failed", logger.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
