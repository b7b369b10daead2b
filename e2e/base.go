package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"cinematch/auth"
	"cinematch/bus"
	"cinematch/infrastructure/http/server"
	"cinematch/moderation"
	"cinematch/observability"
	"cinematch/repositories"
	"cinematch/runtime"
	"cinematch/runtime/workers"
	"cinematch/search"
	"cinematch/services"
	"cinematch/session"
	"cinematch/sink"
)

// BaseSuite boots the entire stack in one process: BadgerDB and Bluge
// in throwaway directories, the embedded NATS broker, the engine with
// its supervised workers, and the HTTP server the scenarios drive.
// Unlike the unit tests, events here really cross the bus.
type BaseSuite struct {
	suite.Suite
	Config Config

	cancel   context.CancelFunc
	db       *badger.DB
	index    *search.Index
	broker   *bus.EmbeddedServer
	eventBus *bus.Bus
	engine   *runtime.Engine
	ts       *httptest.Server
}

// SetupSuite wires the components exactly like the server binary does.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	log := logs.GetLoggerFromString(s.Config.LogLevel)

	// 1. Stores
	opts := badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR)
	s.db, err = badger.Open(opts)
	s.Require().NoError(err)

	s.index, err = search.Open(s.T().TempDir(), log, 20, 10)
	s.Require().NoError(err)

	// 2. Real bus on a free port
	s.broker, err = bus.StartEmbeddedServer("127.0.0.1", -1)
	s.Require().NoError(err)
	s.eventBus, err = bus.Connect(s.broker.ClientURL(), log)
	s.Require().NoError(err)

	// 3. Repositories & services
	roomRepo := repositories.NewRoomRepository(s.db, log)
	messageRepo := repositories.NewMessageRepository(s.db, log, nil)
	matchRepo := repositories.NewMatchRepository(s.db, log)
	revealRepo := repositories.NewRevealRepository(s.db, log)

	metrics := observability.NewMetrics()
	moderator, err := moderation.NewModerator([]string{"spoiler"}, '*', log)
	s.Require().NoError(err)

	chat := services.NewChatService(log, roomRepo, messageRepo, &moderator,
		s.index, s.eventBus, metrics, 500)
	match := services.NewMatchService(log, matchRepo, s.eventBus, metrics)
	rooms := services.NewRoomService(log, roomRepo)
	reveal := services.NewRevealService(log, roomRepo, messageRepo, revealRepo,
		s.eventBus, metrics, s.Config.RevealThreshold)
	s.Require().NoError(rooms.Provision([]string{"cinema"}))

	// 4. Engine with the queue janitor disabled (TTL 0)
	registry := runtime.NewRegistry()
	s.engine = runtime.NewEngine(log, workers.NewSupervisor(log), registry,
		s.eventBus, metrics, matchRepo, 64, time.Second, 0, time.Minute, time.Minute)
	s.engine.Add(sink.NewMetrics(metrics.BusEvents), search.NewIndexer(s.index, log))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		_ = s.engine.Start(ctx)
	}()

	// The engine subscribes before its workers run; wait for both
	// subscriptions so no scenario publishes into the void.
	s.Require().Eventually(func() bool {
		return s.broker.Subscriptions() >= 2
	}, 5*time.Second, 10*time.Millisecond, "Engine never subscribed to the bus")

	// 5. HTTP server
	sessions := session.NewManager(log, chat, match, rooms, reveal, s.engine.Registry(), 16)
	tokens := auth.NewManager("e2e-secret", time.Hour)
	srv := server.NewServer(log, "127.0.0.1:0", tokens, match, rooms, chat, reveal,
		sessions, metrics, []string{"*"}, 1000, 1000)
	s.ts = httptest.NewServer(srv.Handler())
}

func (s *BaseSuite) TearDownSuite() {
	if s.ts != nil {
		s.ts.Close()
	}
	if s.engine != nil {
		s.engine.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.eventBus != nil {
		s.eventBus.Close()
	}
	if s.broker != nil {
		s.broker.Shutdown()
	}
	if s.index != nil {
		_ = s.index.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Wire shapes the scenarios assert on.
type (
	roomJSON struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
		Name string `json:"name"`
	}

	messageJSON struct {
		ID        string    `json:"id"`
		RoomID    string    `json:"room_id"`
		Author    string    `json:"author"`
		AuthorID  string    `json:"author_id"`
		Content   string    `json:"content"`
		Anonymous bool      `json:"anonymous"`
		Mine      bool      `json:"mine"`
		CreatedAt time.Time `json:"created_at"`
	}

	disclosureJSON struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}

	revealJSON struct {
		Messages    int              `json:"messages"`
		Threshold   int              `json:"threshold"`
		Phase       string           `json:"phase"`
		Disclosures []disclosureJSON `json:"disclosures"`
	}

	matchJSON struct {
		Status string    `json:"status"`
		Room   *roomJSON `json:"room"`
	}

	searchJSON struct {
		Hits []struct {
			Author  string `json:"author"`
			Content string `json:"content"`
		} `json:"hits"`
		Total uint64 `json:"total"`
	}

	frameJSON struct {
		Type       string          `json:"type"`
		Error      string          `json:"error"`
		Room       *roomJSON       `json:"room"`
		Message    *messageJSON    `json:"message"`
		Disclosure *disclosureJSON `json:"disclosure"`
	}
)

// testClient is one authenticated user with an open event feed.
type testClient struct {
	suite  *BaseSuite
	UserID string
	token  string
	conn   *websocket.Conn
}

// Client authenticates an identity and opens its websocket feed. The
// colorized header marks where each actor enters the scenario logs.
func (s *BaseSuite) Client(name, userID, username string) *testClient {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	c := &testClient{suite: s, UserID: userID}

	var resp struct {
		Token string `json:"token"`
	}
	status := c.do(http.MethodPost, "/api/auth/token",
		map[string]string{"user_id": userID, "username": username}, &resp)
	s.Require().Equal(http.StatusOK, status, "Token request for %s failed", userID)
	c.token = resp.Token

	wsURL := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws?token=" + c.token
	conn, httpResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if httpResp != nil && httpResp.Body != nil {
		defer func() { _ = httpResp.Body.Close() }()
	}
	s.Require().NoError(err)
	c.conn = conn
	s.T().Cleanup(func() { _ = conn.Close() })
	return c
}

// do issues one REST call and decodes the body into out on 2xx.
func (c *testClient) do(method, path string, body, out any) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		c.suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.suite.ts.URL+path, reader)
	c.suite.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.suite.ts.Client().Do(req)
	c.suite.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.suite.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// Match asks for a partner. paired reports whether a room came back
// immediately; otherwise the pairing arrives on the feed.
func (c *testClient) Match() (paired bool, room *roomJSON) {
	var result matchJSON
	status := c.do(http.MethodPost, "/api/match", nil, &result)
	switch status {
	case http.StatusOK:
		return true, result.Room
	case http.StatusAccepted:
		return false, nil
	default:
		c.suite.Require().Failf("Match request failed", "unexpected status %d", status)
		return false, nil
	}
}

func (c *testClient) Post(roomID, content string) messageJSON {
	var posted messageJSON
	status := c.do(http.MethodPost, "/api/rooms/"+roomID+"/messages",
		map[string]string{"content": content}, &posted)
	c.suite.Require().Equal(http.StatusCreated, status, "Posting to %s failed", roomID)
	return posted
}

func (c *testClient) Rooms() []roomJSON {
	var list struct {
		Rooms []roomJSON `json:"rooms"`
	}
	status := c.do(http.MethodGet, "/api/rooms", nil, &list)
	c.suite.Require().Equal(http.StatusOK, status)
	return list.Rooms
}

func (c *testClient) History(roomID string) []messageJSON {
	var page struct {
		Messages []messageJSON `json:"messages"`
	}
	status := c.do(http.MethodGet, "/api/rooms/"+roomID+"/messages", nil, &page)
	c.suite.Require().Equal(http.StatusOK, status)
	return page.Messages
}

func (c *testClient) RevealState(roomID string) revealJSON {
	var state revealJSON
	status := c.do(http.MethodGet, "/api/rooms/"+roomID+"/reveal", nil, &state)
	c.suite.Require().Equal(http.StatusOK, status)
	return state
}

// TryReveal returns the raw status so scenarios can assert the gate.
func (c *testClient) TryReveal(roomID string) (int, revealJSON) {
	var state revealJSON
	status := c.do(http.MethodPost, "/api/rooms/"+roomID+"/reveal", nil, &state)
	return status, state
}

func (c *testClient) Search(roomID, terms string) searchJSON {
	var result searchJSON
	status := c.do(http.MethodGet, "/api/rooms/"+roomID+"/search?q="+terms, nil, &result)
	c.suite.Require().Equal(http.StatusOK, status)
	return result
}

// Join switches the feed to the room and waits for the ack.
func (c *testClient) Join(roomID string) {
	err := c.conn.WriteJSON(map[string]string{"action": "join", "room_id": roomID})
	c.suite.Require().NoError(err)
	ack := c.ExpectFrame("joined", 5*time.Second)
	c.suite.Require().NotNil(ack.Room)
}

// NextFrame reads one frame off the feed within the timeout.
func (c *testClient) NextFrame(timeout time.Duration) frameJSON {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(timeout)))
	var frame frameJSON
	c.suite.Require().NoError(c.conn.ReadJSON(&frame), "Feed of %s went silent", c.UserID)
	return frame
}

// ExpectFrame reads until a frame of the wanted type arrives, skipping
// acks and unrelated events queued in between.
func (c *testClient) ExpectFrame(kind string, timeout time.Duration) frameJSON {
	deadline := time.Now().Add(timeout)
	for {
		frame := c.NextFrame(time.Until(deadline))
		if frame.Type == kind {
			return frame
		}
	}
}
