package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"cinematch/auth"
	"cinematch/domain"
	"cinematch/search"
)

// maxBodyBytes bounds request bodies well above the longest legal
// message, so oversized content still reaches the service and gets a
// proper validation error instead of a connection reset.
const maxBodyBytes = 64 << 10

func decode(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleToken exchanges a claimed identity for a signed token. There
// is no account store behind it; whoever claims an ID first within a
// token lifetime owns it, which is all an anonymous chat needs.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req auth.TokenRequest
	if err := decode(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body"})
		return
	}
	if err := auth.ValidateTokenRequest(req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	token, err := s.tokens.Generate(domain.User{
		ID:        req.UserID,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// handleRequestMatch answers 200 with the room when a partner was
// already waiting, 202 when the caller became the waiter. The pairing
// then arrives on their websocket feed.
func (s *Server) handleRequestMatch(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	result, err := s.match.Request(r.Context(), user)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if result.Paired() {
		respondJSON(w, http.StatusOK, matchResponse{
			Status: string(result.Status),
			Room:   lo.ToPtr(toRoomDTO(*result.Room)),
		})
		return
	}
	respondJSON(w, http.StatusAccepted, matchResponse{Status: string(result.Status)})
}

func (s *Server) handleCancelMatch(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	cancelled, err := s.match.Cancel(r.Context(), user)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cancelResponse{Cancelled: cancelled})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	rooms, err := s.rooms.List(user)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, roomsResponse{
		Rooms: lo.Map(rooms, func(room domain.Room, _ int) roomDTO {
			return toRoomDTO(room)
		}),
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	room, err := s.rooms.Get(user, roomID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRoomDTO(room))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	messages, next, err := s.chat.History(user, roomID, cursor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, historyResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) messageDTO {
			return toMessageDTO(m, user.ID)
		}),
		NextCursor: next,
	})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	var req appendRequest
	if err := decode(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body"})
		return
	}
	message, err := s.chat.Append(r.Context(), user, roomID, req.Content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMessageDTO(message, user.ID))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	params := r.URL.Query()
	query := search.Query{
		Terms:  params.Get("q"),
		Author: params.Get("author"),
	}
	if n, err := strconv.Atoi(params.Get("limit")); err == nil {
		query.Limit = n
	}
	if n, err := strconv.Atoi(params.Get("offset")); err == nil {
		query.Offset = n
	}
	hits, total, err := s.chat.Search(r.Context(), user, roomID, query)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, searchResponse{
		Hits: lo.Map(hits, func(hit search.Hit, _ int) searchHitDTO {
			return toSearchHitDTO(hit)
		}),
		Total: total,
	})
}

func (s *Server) handleRevealState(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	state, err := s.reveal.State(user, roomID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRevealStateDTO(state))
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	state, err := s.reveal.Reveal(r.Context(), user, roomID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRevealStateDTO(state))
}

func (s *Server) roomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid room id"})
		return uuid.Nil, false
	}
	return roomID, true
}
