package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"cinematch/search"
)

// Wire types mirroring the server responses. The client keeps its own
// copies so it only depends on the HTTP contract, not server internals.
type (
	tokenRequest struct {
		UserID    string `json:"user_id"`
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url,omitempty"`
	}

	tokenResponse struct {
		Token string `json:"token"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}

	roomInfo struct {
		ID        string    `json:"id"`
		Kind      string    `json:"kind"`
		Name      string    `json:"name,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	roomList struct {
		Rooms []roomInfo `json:"rooms"`
	}

	matchResult struct {
		Status string    `json:"status"`
		Room   *roomInfo `json:"room,omitempty"`
	}

	cancelResult struct {
		Cancelled bool `json:"cancelled"`
	}

	messageInfo struct {
		ID        string    `json:"id"`
		RoomID    string    `json:"room_id"`
		Author    string    `json:"author"`
		AuthorID  string    `json:"author_id,omitempty"`
		Content   string    `json:"content"`
		Lang      string    `json:"lang,omitempty"`
		Anonymous bool      `json:"anonymous"`
		Mine      bool      `json:"mine"`
		CreatedAt time.Time `json:"created_at"`
	}

	historyPage struct {
		Messages   []messageInfo `json:"messages"`
		NextCursor *string       `json:"next_cursor,omitempty"`
	}

	searchHit struct {
		MessageID string    `json:"message_id"`
		Author    string    `json:"author"`
		Content   string    `json:"content"`
		At        time.Time `json:"at"`
	}

	searchResult struct {
		Hits  []searchHit `json:"hits"`
		Total uint64      `json:"total"`
	}

	disclosureInfo struct {
		UserID    string    `json:"user_id"`
		Username  string    `json:"username"`
		AvatarURL string    `json:"avatar_url,omitempty"`
		At        time.Time `json:"at"`
	}

	revealState struct {
		RoomID      string           `json:"room_id"`
		Messages    int              `json:"messages"`
		Threshold   int              `json:"threshold"`
		Phase       string           `json:"phase"`
		Disclosures []disclosureInfo `json:"disclosures"`
	}

	// wsEvent is one frame of the websocket feed.
	wsEvent struct {
		Type       string          `json:"type"`
		Error      string          `json:"error,omitempty"`
		Room       *roomInfo       `json:"room,omitempty"`
		Message    *messageInfo    `json:"message,omitempty"`
		Disclosure *disclosureInfo `json:"disclosure,omitempty"`
		EnqueuedAt *time.Time      `json:"enqueued_at,omitempty"`
	}

	// wsCommand switches the room feed. Everything else goes over REST.
	wsCommand struct {
		Action string `json:"action"`
		RoomID string `json:"room_id,omitempty"`
	}
)

// apiError carries the server's message together with the HTTP status,
// so callers can branch on statuses like 412 without string matching.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// api wraps the REST surface of the server. All calls reuse one
// http.Client and attach the bearer token obtained by Authenticate.
type api struct {
	base  string
	http  *http.Client
	token string
}

func newAPI(base string) *api {
	return &api{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// do runs one request and decodes the JSON response into out when the
// status is 2xx. Other statuses come back as *apiError.
func (a *api) do(method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = resp.Status
		}
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Authenticate trades the identity for a bearer token and stores it
// for every later call.
func (a *api) Authenticate(userID, username, avatarURL string) error {
	var resp tokenResponse
	_, err := a.do(http.MethodPost, "/api/auth/token",
		tokenRequest{UserID: userID, Username: username, AvatarURL: avatarURL}, &resp)
	if err != nil {
		return err
	}
	a.token = resp.Token
	return nil
}

// RequestMatch asks for a partner. paired is false when the caller was
// queued instead; the pairing then arrives on the websocket feed.
func (a *api) RequestMatch() (*roomInfo, bool, error) {
	var resp matchResult
	status, err := a.do(http.MethodPost, "/api/match", nil, &resp)
	if err != nil {
		return nil, false, err
	}
	return resp.Room, status == http.StatusOK, nil
}

func (a *api) CancelMatch() (bool, error) {
	var resp cancelResult
	_, err := a.do(http.MethodDelete, "/api/match", nil, &resp)
	return resp.Cancelled, err
}

func (a *api) Rooms() ([]roomInfo, error) {
	var resp roomList
	_, err := a.do(http.MethodGet, "/api/rooms", nil, &resp)
	return resp.Rooms, err
}

// History walks every page of the room history. The retention cap on
// the server bounds the total, so draining all cursors stays cheap.
func (a *api) History(roomID string) ([]messageInfo, error) {
	var all []messageInfo
	cursor := ""
	for {
		path := "/api/rooms/" + roomID + "/messages"
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}
		var page historyPage
		if _, err := a.do(http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Messages...)
		if page.NextCursor == nil || *page.NextCursor == "" {
			return all, nil
		}
		cursor = *page.NextCursor
	}
}

func (a *api) Post(roomID, content string) (messageInfo, error) {
	var resp messageInfo
	_, err := a.do(http.MethodPost, "/api/rooms/"+roomID+"/messages",
		map[string]string{"content": content}, &resp)
	return resp, err
}

func (a *api) Search(roomID string, query *search.Query) (searchResult, error) {
	params := url.Values{}
	params.Set("q", query.Terms)
	if query.Author != "" {
		params.Set("author", query.Author)
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}

	var resp searchResult
	_, err := a.do(http.MethodGet, "/api/rooms/"+roomID+"/search?"+params.Encode(), nil, &resp)
	return resp, err
}

func (a *api) RevealState(roomID string) (revealState, error) {
	var resp revealState
	_, err := a.do(http.MethodGet, "/api/rooms/"+roomID+"/reveal", nil, &resp)
	return resp, err
}

func (a *api) Reveal(roomID string) (revealState, error) {
	var resp revealState
	_, err := a.do(http.MethodPost, "/api/rooms/"+roomID+"/reveal", nil, &resp)
	return resp, err
}

// Dial opens the event feed. Browsers cannot set headers on the
// handshake and the server accepts ?token= for that reason; reusing it
// here keeps one auth path.
func (a *api) Dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := a.base
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	wsURL += "/ws?token=" + url.QueryEscape(a.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}
