package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"cinematch/auth"
	"cinematch/domain/event"
	"cinematch/session"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4 << 10

	// Inbound frames are join/leave switches, nothing a human does
	// five times a second for long.
	inboundRate  = 5
	inboundBurst = 10
)

// inboundFrame is what clients may send over the socket. Messages
// themselves go through REST so they share validation, moderation and
// persistence with every other write.
type inboundFrame struct {
	Action string `json:"action"`
	RoomID string `json:"room_id,omitempty"`
}

// wsFrame is the single outbound envelope. Type is either an event
// kind or one of the control acks: joined, left, error.
type wsFrame struct {
	Type       string         `json:"type"`
	Error      string         `json:"error,omitempty"`
	Room       *roomDTO       `json:"room,omitempty"`
	Message    *messageDTO    `json:"message,omitempty"`
	Disclosure *disclosureDTO `json:"disclosure,omitempty"`
	EnqueuedAt *time.Time     `json:"enqueued_at,omitempty"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())

	// Open before upgrading: once the client sees the 101 its user
	// feed is already attached, so no pairing can slip past.
	sess := s.sessions.Open(user)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		s.log.Warn("Websocket upgrade refused", "user", user.ID, "error", err)
		sess.Close()
		return
	}
	client := &wsClient{
		log:      s.log,
		conn:     conn,
		session:  sess,
		limiter:  rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		outbound: make(chan wsFrame, 8),
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	client.run()
}

// wsClient bridges one websocket connection and one session. The read
// pump is the sole reader, the write pump the sole writer; control
// acks cross from reader to writer through the outbound channel.
type wsClient struct {
	log      *slog.Logger
	conn     *websocket.Conn
	session  *session.Session
	limiter  *rate.Limiter
	outbound chan wsFrame
	refresh  chan struct{}
	done     chan struct{}
}

func (c *wsClient) run() {
	go c.writePump()
	c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		c.session.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Websocket closed unexpectedly", "user", c.session.User().ID, "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.control(wsFrame{Type: "error", Error: "slow down"})
			continue
		}
		c.handle(frame)
	}
}

func (c *wsClient) handle(frame inboundFrame) {
	switch frame.Action {
	case "join":
		roomID, err := uuid.Parse(frame.RoomID)
		if err != nil {
			c.control(wsFrame{Type: "error", Error: "invalid room id"})
			return
		}
		room, err := c.session.Join(roomID)
		if err != nil {
			c.control(wsFrame{Type: "error", Error: err.Error()})
			return
		}
		c.control(wsFrame{Type: "joined", Room: lo.ToPtr(toRoomDTO(room))})
		c.nudge()
	case "leave":
		c.session.Leave()
		c.control(wsFrame{Type: "left"})
		c.nudge()
	default:
		c.control(wsFrame{Type: "error", Error: "unknown action"})
	}
}

func (c *wsClient) control(frame wsFrame) {
	select {
	case c.outbound <- frame:
	default:
		// The writer is wedged; the dropped ack is the least of it.
	}
}

// nudge makes the write pump re-enter its select, so a feed swapped
// by join or leave gets armed right away instead of at the next ping.
func (c *wsClient) nudge() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbound:
			if err := c.write(frame); err != nil {
				return
			}
		case evt := <-c.session.UserEvents():
			if !c.forward(evt) {
				return
			}
		case evt := <-c.session.Events():
			if !c.forward(evt) {
				return
			}
		case <-c.refresh:
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) forward(evt event.DomainEvent) bool {
	frame, ok := toFrame(evt, c.session.User().ID)
	if !ok {
		return true
	}
	return c.write(frame) == nil
}

func (c *wsClient) write(frame wsFrame) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func toFrame(evt event.DomainEvent, viewer string) (wsFrame, bool) {
	switch e := evt.(type) {
	case event.MessageAppended:
		return wsFrame{
			Type:    string(e.Kind()),
			Message: lo.ToPtr(toMessageDTO(e.Message, viewer)),
		}, true
	case event.MatchFound:
		return wsFrame{
			Type: string(e.Kind()),
			Room: lo.ToPtr(toRoomDTO(e.Room)),
		}, true
	case event.IdentityRevealed:
		return wsFrame{
			Type:       string(e.Kind()),
			Disclosure: lo.ToPtr(toDisclosureDTO(e.Disclosure)),
		}, true
	case event.SearchExpired:
		return wsFrame{
			Type:       string(e.Kind()),
			EnqueuedAt: lo.ToPtr(e.EnqueuedAt),
		}, true
	default:
		return wsFrame{}, false
	}
}
