package realtime

import (
	"time"

	"github.com/dukerupert/studyhall/internal/model"
)

// Wire event names. Client→server events arrive tagged with one of the
// inbound names; everything the server emits carries an outbound name.
const (
	// client → server
	EventJoin        = "session:join"
	EventLeave       = "session:leave"
	EventTypingStart = "session:typing-start"
	EventTypingStop  = "session:typing-stop"
	EventCursorMove  = "session:cursor-move"

	// server → client
	EventJoined        = "session:joined"
	EventUserJoined    = "session:user-joined"
	EventUserLeft      = "session:user-left"
	EventTyping        = "session:typing"
	EventCursor        = "session:cursor-move"
	EventNewMessage    = "session:new-message"
	EventMemberAdded   = "session:member-added"
	EventMemberUpdated = "session:member-updated"
	EventMemberRemoved = "session:member-removed"
	EventEnded         = "session:ended"
)

// inboundEvent is the envelope for all client→server events. Fields beyond
// Type and SessionID are only meaningful for specific event types.
type inboundEvent struct {
	Type      string  `json:"type"`
	SessionID int64   `json:"session_id"`
	Page      int     `json:"page,omitempty"`
	ScrollPos float64 `json:"scroll_pos,omitempty"`
}

// OnlineMember is one entry of the online-member list sent in the join ack.
type OnlineMember struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// joinAck is the direct reply to a successful room join. It is sent only to
// the joining connection, never broadcast.
type joinAck struct {
	Type      string         `json:"type"`
	SessionID int64          `json:"session_id"`
	Members   []OnlineMember `json:"members"`
}

type userJoinedEvent struct {
	Type        string `json:"type"`
	SessionID   int64  `json:"session_id"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type userLeftEvent struct {
	Type        string `json:"type"`
	SessionID   int64  `json:"session_id"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type typingEvent struct {
	Type        string `json:"type"`
	SessionID   int64  `json:"session_id"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Typing      bool   `json:"typing"`
}

type cursorEvent struct {
	Type      string  `json:"type"`
	SessionID int64   `json:"session_id"`
	UserID    int64   `json:"user_id"`
	Page      int     `json:"page"`
	ScrollPos float64 `json:"scroll_pos"`
}

// Message is the durable chat message payload pushed through the broadcast
// contract. Message persistence lives outside this subsystem.
type Message struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type newMessageEvent struct {
	Type      string  `json:"type"`
	SessionID int64   `json:"session_id"`
	Message   Message `json:"message"`
}

type memberEvent struct {
	Type      string       `json:"type"`
	SessionID int64        `json:"session_id"`
	Member    model.Member `json:"member"`
}

type memberRemovedEvent struct {
	Type      string `json:"type"`
	SessionID int64  `json:"session_id"`
	UserID    int64  `json:"user_id"`
}

type sessionEndedEvent struct {
	Type      string `json:"type"`
	SessionID int64  `json:"session_id"`
}
