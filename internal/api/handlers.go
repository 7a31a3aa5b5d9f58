package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/types"
)

type CreateMessageRequest struct {
	ReceiverId int    `json:"receiver_id"`
	Content    string `json:"content"`
	ParentId   *int   `json:"parent_id,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

func (s *MessagingApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *MessagingApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Println(errResp.Error())
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func pathId(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isParticipant(msg database.Message, userId int) bool {
	return msg.SenderId == userId || msg.ReceiverId == userId
}

func (s *MessagingApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *MessagingApp) createMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	msg, err := s.svc.CreateMessage(r.Context(), userId, req.ReceiverId, req.Content, req.ParentId)
	if err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, types.NewMessage(msg))
}

// loadOwnMessage fetches the message named in the path and checks that the
// caller passes allowed. It writes the error response itself.
func (s *MessagingApp) loadOwnMessage(w http.ResponseWriter, r *http.Request, allowed func(database.Message, int) bool) (database.Message, int, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return database.Message{}, 0, false
	}

	messageId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return database.Message{}, 0, false
	}

	msg, err := s.svc.GetMessage(r.Context(), messageId)
	if err != nil {
		s.writeError(w, serviceError(err))
		return database.Message{}, 0, false
	}

	if !allowed(msg, userId) {
		s.writeError(w, NewForbiddenError())
		return database.Message{}, 0, false
	}

	return msg, userId, true
}

func (s *MessagingApp) editMessage(w http.ResponseWriter, r *http.Request) {
	msg, userId, ok := s.loadOwnMessage(w, r, func(m database.Message, userId int) bool {
		return m.SenderId == userId
	})
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	edited, err := s.svc.EditMessageContent(r.Context(), msg.Id, req.Content, userId)
	if err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.NewMessage(edited))
}

func (s *MessagingApp) markRead(w http.ResponseWriter, r *http.Request) {
	msg, _, ok := s.loadOwnMessage(w, r, func(m database.Message, userId int) bool {
		return m.ReceiverId == userId
	})
	if !ok {
		return
	}

	if err := s.svc.MarkRead(r.Context(), msg.Id); err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *MessagingApp) getThread(w http.ResponseWriter, r *http.Request) {
	msg, _, ok := s.loadOwnMessage(w, r, isParticipant)
	if !ok {
		return
	}

	thread, err := s.svc.GetThread(r.Context(), msg.Id)
	if err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.NewThreadNode(thread))
}

func (s *MessagingApp) getHistory(w http.ResponseWriter, r *http.Request) {
	msg, _, ok := s.loadOwnMessage(w, r, isParticipant)
	if !ok {
		return
	}

	history, err := s.svc.GetHistory(r.Context(), msg.Id)
	if err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.NewHistory(history))
}

func (s *MessagingApp) getUnread(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	resp := types.UnreadMessages{}
	if r.URL.Query().Get("count_only") != "true" {
		messages, err := s.svc.ListUnread(r.Context(), userId)
		if err != nil {
			s.writeError(w, serviceError(err))
			return
		}
		resp.Messages = types.NewMessages(messages)
		resp.Count = len(messages)
	} else {
		count, err := s.svc.CountUnread(r.Context(), userId)
		if err != nil {
			s.writeError(w, serviceError(err))
			return
		}
		resp.Count = count
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *MessagingApp) getConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	otherUserId, ok := pathId(r, "userId")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	roots, err := s.svc.ListConversation(r.Context(), userId, otherUserId)
	if err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.NewThreadNodes(roots))
}

func (s *MessagingApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	notifications, err := s.svc.ListNotifications(r.Context(), userId)
	if err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.NewNotifications(notifications))
}

func (s *MessagingApp) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	notificationId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	notifications, err := s.svc.ListNotifications(r.Context(), userId)
	if err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	owned := false
	for _, n := range notifications {
		if n.Id == notificationId {
			owned = true
			break
		}
	}
	if !owned {
		s.writeError(w, NewNotFoundError())
		return
	}

	if err := s.svc.MarkNotificationRead(r.Context(), notificationId); err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *MessagingApp) deleteAccount(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	if err := s.svc.DeleteUser(r.Context(), userId); err != nil {
		s.writeError(w, serviceError(err))
		return
	}

	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	s.writeJson(w, http.StatusNoContent, nil)
}
