package realtime

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/studyhall/internal/auth"
	"github.com/dukerupert/studyhall/internal/model"
	"github.com/dukerupert/studyhall/internal/store"
)

// Gateway manages live connections: it authenticates them at the handshake,
// maps them into session rooms, relays ephemeral events between peers, and
// exposes the broadcast contract the durable-state components call after
// their writes commit.
type Gateway struct {
	hub      *Hub
	presence Registry
	members  *store.MembershipStore
	users    *store.UserStore
	verifier CredentialVerifier
	logger   *slog.Logger
}

// CredentialVerifier validates a handshake credential and returns the
// identity it carries.
type CredentialVerifier interface {
	Verify(credential string) (auth.Identity, error)
}

func NewGateway(presence Registry, members *store.MembershipStore, users *store.UserStore, verifier CredentialVerifier, logger *slog.Logger) *Gateway {
	return &Gateway{
		hub:      NewHub(logger),
		presence: presence,
		members:  members,
		users:    users,
		verifier: verifier,
		logger:   logger,
	}
}

// Handler upgrades connections to WebSocket. A connection without a
// credential, or with one that fails validation, is closed immediately
// without error detail.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.verifier.Verify(r.URL.Query().Get("token"))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			g.logger.Debug("websocket accept", "error", err)
			return
		}

		// Keep display data fresh for member listings.
		if _, err := g.users.Upsert(identity.UserID, identity.DisplayName, identity.AvatarURL); err != nil {
			g.logger.Error("upsert user", "user_id", identity.UserID, "error", err)
		}

		client := newClient(g, conn, identity)
		client.Run(r.Context())
	}
}

// dispatch routes one inbound event. Invoked from the connection's read pump,
// so per-client state needs no locking.
func (g *Gateway) dispatch(c *Client, ev inboundEvent) {
	switch ev.Type {
	case EventJoin:
		g.handleJoin(c, ev.SessionID)
	case EventLeave:
		g.leaveRoom(c)
	case EventTypingStart:
		g.relayTyping(c, true)
	case EventTypingStop:
		g.relayTyping(c, false)
	case EventCursorMove:
		g.relayCursor(c, ev.Page, ev.ScrollPos)
	default:
		g.logger.Debug("unknown client event", "type", ev.Type, "conn", c.connID)
	}
}

// handleJoin admits the connection into a session room after a membership
// access check. On success the joiner gets the online-member list as a direct
// reply and the rest of the room is told who arrived.
func (g *Gateway) handleJoin(c *Client, sessionID int64) {
	member, err := g.members.GetMember(sessionID, c.identity.UserID)
	if err != nil {
		g.logger.Error("room join access check", "session_id", sessionID, "user_id", c.identity.UserID, "error", err)
		return
	}
	if member == nil || !member.IsActive {
		// Rejected: no room membership changes.
		return
	}

	// Moving between sessions implicitly leaves the previous room.
	if c.sessionID != 0 && c.sessionID != sessionID {
		g.leaveRoom(c)
	}

	c.sessionID = sessionID
	g.hub.Join(sessionID, c)
	g.presence.Register(Presence{
		ConnID:      c.connID,
		UserID:      c.identity.UserID,
		SessionID:   sessionID,
		DisplayName: c.identity.DisplayName,
		AvatarURL:   c.identity.AvatarURL,
	})

	g.hub.BroadcastExcept(sessionID, c, userJoinedEvent{
		Type:        EventUserJoined,
		SessionID:   sessionID,
		UserID:      c.identity.UserID,
		DisplayName: c.identity.DisplayName,
		AvatarURL:   c.identity.AvatarURL,
	})

	online := g.presence.ListBySession(sessionID)
	members := make([]OnlineMember, 0, len(online))
	seen := make(map[int64]struct{}, len(online))
	for _, p := range online {
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		seen[p.UserID] = struct{}{}
		members = append(members, OnlineMember{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		})
	}
	c.deliver(joinAck{Type: EventJoined, SessionID: sessionID, Members: members})
}

// leaveRoom removes the connection from its current room and notifies the
// remaining occupants. Independent of durable membership changes.
func (g *Gateway) leaveRoom(c *Client) {
	if c.sessionID == 0 {
		return
	}
	sessionID := c.sessionID
	c.sessionID = 0

	g.hub.Leave(sessionID, c)
	g.presence.Unregister(c.connID)

	g.hub.Broadcast(sessionID, userLeftEvent{
		Type:        EventUserLeft,
		SessionID:   sessionID,
		UserID:      c.identity.UserID,
		DisplayName: c.identity.DisplayName,
	})
}

// disconnect is the raw-connection-closed path.
func (g *Gateway) disconnect(c *Client) {
	g.leaveRoom(c)
}

func (g *Gateway) relayTyping(c *Client, typing bool) {
	if c.sessionID == 0 {
		return
	}
	g.hub.BroadcastExcept(c.sessionID, c, typingEvent{
		Type:        EventTyping,
		SessionID:   c.sessionID,
		UserID:      c.identity.UserID,
		DisplayName: c.identity.DisplayName,
		Typing:      typing,
	})
}

func (g *Gateway) relayCursor(c *Client, page int, scrollPos float64) {
	if c.sessionID == 0 {
		return
	}
	g.hub.BroadcastExcept(c.sessionID, c, cursorEvent{
		Type:      EventCursor,
		SessionID: c.sessionID,
		UserID:    c.identity.UserID,
		Page:      page,
		ScrollPos: scrollPos,
	})
}

// BroadcastMessage pushes a durable chat message to the session's room.
// Invoked by the message component after its write commits.
func (g *Gateway) BroadcastMessage(sessionID int64, msg Message) {
	g.hub.Broadcast(sessionID, newMessageEvent{Type: EventNewMessage, SessionID: sessionID, Message: msg})
}

// BroadcastMemberAdded announces a committed join to the room.
func (g *Gateway) BroadcastMemberAdded(sessionID int64, member model.Member) {
	g.hub.Broadcast(sessionID, memberEvent{Type: EventMemberAdded, SessionID: sessionID, Member: member})
}

// BroadcastMemberUpdated announces a committed membership change (rejoin,
// role change) to the room.
func (g *Gateway) BroadcastMemberUpdated(sessionID int64, member model.Member) {
	g.hub.Broadcast(sessionID, memberEvent{Type: EventMemberUpdated, SessionID: sessionID, Member: member})
}

// BroadcastMemberRemoved announces a committed leave or removal to the room.
func (g *Gateway) BroadcastMemberRemoved(sessionID, userID int64) {
	g.hub.Broadcast(sessionID, memberRemovedEvent{Type: EventMemberRemoved, SessionID: sessionID, UserID: userID})
}

// BroadcastSessionEnded announces the terminal transition to the room.
func (g *Gateway) BroadcastSessionEnded(sessionID int64) {
	g.hub.Broadcast(sessionID, sessionEndedEvent{Type: EventEnded, SessionID: sessionID})
}

// Hub exposes the room registry for tests and diagnostics.
func (g *Gateway) Hub() *Hub {
	return g.hub
}
