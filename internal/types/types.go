package types

import (
	"github.com/mejiasimon/chatbotTravelAgency/internal/dialogue"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

type MessageRequest struct {
	Message string `json:"message"`
}

type OptionRequest struct {
	Option string `json:"option"`
}

// ChatResponse carries the turns that changed since the caller's last
// revision, plus the conversation flags.
type ChatResponse struct {
	SessionID string          `json:"sessionId"`
	Revision  int64           `json:"revision"`
	Turns     []dialogue.Turn `json:"turns"`
	State     dialogue.State  `json:"state"`
	// Navigate is set when the frontend should leave the chat, e.g. to sign in.
	Navigate string `json:"navigate,omitempty"`
}

func NewChatResponse(snap dialogue.Snapshot) ChatResponse {
	turns := snap.Turns
	if turns == nil {
		turns = []dialogue.Turn{}
	}
	return ChatResponse{
		SessionID: snap.SessionID,
		Revision:  snap.Revision,
		Turns:     turns,
		State:     snap.State,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *identity.User `json:"user,omitempty"`
	// SessionID is set on sign-in, when the session id is rotated.
	SessionID string `json:"sessionId,omitempty"`
}

type OAuthStartResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
