package server

import (
	"time"

	"github.com/samber/lo"

	"cinematch/domain"
	"cinematch/search"
)

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type matchResponse struct {
	Status string   `json:"status"`
	Room   *roomDTO `json:"room,omitempty"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type roomDTO struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// toRoomDTO deliberately drops the member list: in a match room it
// would name the peer before any reveal.
func toRoomDTO(room domain.Room) roomDTO {
	return roomDTO{
		ID:        room.ID.String(),
		Kind:      string(room.Kind),
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
	}
}

type messageDTO struct {
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

// toMessageDTO shapes a message for one reader. Anonymous messages
// keep their author ID server side; the reader only learns whether
// the message is their own.
func toMessageDTO(m domain.Message, viewer string) messageDTO {
	dto := messageDTO{
		ID:        m.ID.String(),
		RoomID:    m.RoomID.String(),
		Author:    m.DisplayName(),
		Content:   m.Content,
		Lang:      m.Lang,
		Anonymous: m.Anonymous,
		Mine:      m.AuthorID == viewer,
		CreatedAt: m.CreatedAt,
	}
	if !m.Anonymous {
		dto.AuthorID = m.AuthorID
	}
	return dto
}

type appendRequest struct {
	Content string `json:"content"`
}

type historyResponse struct {
	Messages   []messageDTO `json:"messages"`
	NextCursor *string      `json:"next_cursor,omitempty"`
}

type roomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type searchHitDTO struct {
	MessageID string    `json:"message_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	At        time.Time `json:"at"`
}

func toSearchHitDTO(hit search.Hit) searchHitDTO {
	return searchHitDTO{
		MessageID: hit.MessageID.String(),
		Author:    hit.Author,
		Content:   hit.Content,
		At:        hit.At,
	}
}

type searchResponse struct {
	Hits  []searchHitDTO `json:"hits"`
	Total uint64         `json:"total"`
}

type disclosureDTO struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	At        time.Time `json:"at"`
}

func toDisclosureDTO(d domain.Disclosure) disclosureDTO {
	return disclosureDTO{
		UserID:    d.UserID,
		Username:  d.Username,
		AvatarURL: d.AvatarURL,
		At:        d.At,
	}
}

type revealStateDTO struct {
	RoomID      string          `json:"room_id"`
	Messages    int             `json:"messages"`
	Threshold   int             `json:"threshold"`
	Phase       string          `json:"phase"`
	Disclosures []disclosureDTO `json:"disclosures"`
}

func toRevealStateDTO(state domain.RevealState) revealStateDTO {
	return revealStateDTO{
		RoomID:    state.RoomID.String(),
		Messages:  state.Messages,
		Threshold: state.Threshold,
		Phase:     string(state.Phase()),
		Disclosures: lo.Map(state.Disclosures, func(d domain.Disclosure, _ int) disclosureDTO {
			return toDisclosureDTO(d)
		}),
	}
}
