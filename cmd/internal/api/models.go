package api

import (
	"time"

	"pulse/cmd/internal/chat"
	"pulse/cmd/internal/directory"
)

type sendRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type messageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

func toMessageResponse(m chat.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
	}
}

type historyResponse struct {
	Messages []messageResponse `json:"messages"`
}

type conversationResponse struct {
	OtherUserID     string             `json:"other_user_id"`
	LastMessage     string             `json:"last_message"`
	LastMessageTime time.Time          `json:"last_message_time"`
	UnreadCount     int                `json:"unread_count"`
	Profile         *directory.Profile `json:"profile"`
}

type conversationListResponse struct {
	Conversations []conversationResponse `json:"conversations"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequestResponse struct {
	Email            string `json:"email"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type registerVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type registerVerifyResponse struct {
	PendingProfileID string `json:"pending_profile_id"`
	Email            string `json:"email"`
	Username         string `json:"username"`
}
