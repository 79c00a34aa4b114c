// Package session owns the collaborative session lifecycle: creation with
// content cloning, invite-token joins, membership changes, and the terminal
// end transition. Durable writes commit before any broadcast is emitted, so a
// client acting on a success response always observes post-mutation state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/studyhall/internal/content"
	"github.com/dukerupert/studyhall/internal/model"
	"github.com/dukerupert/studyhall/internal/store"
)

// Broadcaster is the contract the manager uses to push durable events to
// connected clients. Delivery is best-effort with no acknowledgment; clients
// that connect later fetch current state through the read API instead.
type Broadcaster interface {
	BroadcastMemberAdded(sessionID int64, member model.Member)
	BroadcastMemberUpdated(sessionID int64, member model.Member)
	BroadcastMemberRemoved(sessionID, userID int64)
	BroadcastSessionEnded(sessionID int64)
}

// Manager orchestrates session lifecycle operations across the stores, the
// content-cloning collaborator, and the realtime broadcast contract.
type Manager struct {
	sessions    *store.SessionStore
	memberships *store.MembershipStore
	invites     *store.InviteStore
	users       *store.UserStore
	cloner      content.Cloner
	broadcaster Broadcaster
	baseURL     string
	logger      *slog.Logger
}

func NewManager(
	ss *store.SessionStore,
	ms *store.MembershipStore,
	is *store.InviteStore,
	us *store.UserStore,
	cloner content.Cloner,
	broadcaster Broadcaster,
	baseURL string,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		sessions:    ss,
		memberships: ms,
		invites:     is,
		users:       us,
		cloner:      cloner,
		broadcaster: broadcaster,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// CreateOptions bounds a new session.
type CreateOptions struct {
	MaxMembers int
	// SourceConversationID, when set, asks the content service to copy the
	// prior message history and annotations onto the clone.
	SourceConversationID string
}

// CreateResult is returned from Create.
type CreateResult struct {
	Session    *model.Session `json:"session"`
	Invite     *model.Invite  `json:"invite"`
	InviteLink string         `json:"invite_link"`
}

// Create clones the source content and creates the session, its OWNER
// membership, and one unlimited-use invite atomically. Fails with
// ErrForbidden when the caller does not own the source content. Content
// enrichment from a prior conversation runs in the background and never
// surfaces as a user-facing failure.
func (m *Manager) Create(ctx context.Context, ownerID int64, ownerName, ownerAvatar, sourceContentID string, opts CreateOptions) (*CreateResult, error) {
	owns, err := m.cloner.OwnsContent(ctx, ownerID, sourceContentID)
	if err != nil {
		return nil, fmt.Errorf("check content ownership: %w", err)
	}
	if !owns {
		return nil, ErrForbidden
	}

	if _, err := m.users.Upsert(ownerID, ownerName, ownerAvatar); err != nil {
		return nil, fmt.Errorf("upsert owner: %w", err)
	}

	cloneID, err := m.cloner.Clone(ctx, sourceContentID)
	if err != nil {
		return nil, fmt.Errorf("clone content: %w", err)
	}

	maxMembers := opts.MaxMembers
	if maxMembers == 0 {
		maxMembers = model.MinMembers
	}

	sess, inv, err := m.sessions.CreateCollaborative(cloneID, ownerID, maxMembers)
	if err != nil {
		return nil, err
	}

	if opts.SourceConversationID != "" {
		go m.enrichClone(cloneID, opts.SourceConversationID)
	}

	return &CreateResult{
		Session:    sess,
		Invite:     inv,
		InviteLink: m.inviteLink(inv.Token),
	}, nil
}

// enrichClone retries the content-processing step with exponential backoff.
// Best-effort: failures are logged, the session stays usable either way.
func (m *Manager) enrichClone(contentID, conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backoff := retry.WithMaxRetries(5, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.cloner.EnrichClone(ctx, contentID, conversationID); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("content enrichment failed", "content_id", contentID, "conversation_id", conversationID, "error", err)
		return
	}
	m.logger.Info("content enrichment complete", "content_id", contentID)
}

func (m *Manager) inviteLink(token string) string {
	return m.baseURL + "/join?token=" + token
}

// JoinResult is returned from Join.
type JoinResult struct {
	SessionID int64          `json:"session_id"`
	Role      string         `json:"role"`
	Members   []model.Member `json:"members"`
}

// Join admits a user via an invite token and broadcasts the membership change
// to the room after the transaction commits. Re-joins from client retries are
// idempotent and broadcast nothing.
func (m *Manager) Join(userID int64, displayName, avatarURL, token string) (*JoinResult, error) {
	if _, err := m.users.Upsert(userID, displayName, avatarURL); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	res, err := m.memberships.Join(userID, token)
	if err != nil {
		return nil, err
	}

	members, err := m.memberships.ListActive(res.Session.ID)
	if err != nil {
		return nil, err
	}

	if !res.AlreadyActive {
		member := model.Member{
			UserID:      userID,
			DisplayName: displayName,
			AvatarURL:   avatarURL,
			Role:        res.Membership.Role,
			JoinedAt:    res.Membership.JoinedAt,
		}
		if res.Reactivated {
			m.broadcaster.BroadcastMemberUpdated(res.Session.ID, member)
		} else {
			m.broadcaster.BroadcastMemberAdded(res.Session.ID, member)
		}
	}

	return &JoinResult{
		SessionID: res.Session.ID,
		Role:      res.Membership.Role,
		Members:   members,
	}, nil
}

// Leave deactivates the caller's membership. Any active member, including the
// owner, may leave; the session remains usable for the rest.
func (m *Manager) Leave(userID, sessionID int64) error {
	sess, err := m.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return store.ErrSessionNotFound
	}

	changed, err := m.memberships.Deactivate(sessionID, userID)
	if err != nil {
		return err
	}
	if !changed {
		return store.ErrNotMember
	}

	m.broadcaster.BroadcastMemberRemoved(sessionID, userID)
	return nil
}

// End performs the terminal transition: every active membership deactivated,
// every outstanding invite revoked, the collaborative flag cleared, all in
// one transaction. Only the OWNER membership may end a session; the check
// accepts an inactive owner row so a second call still reports success.
func (m *Manager) End(callerID, sessionID int64) error {
	sess, err := m.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return store.ErrSessionNotFound
	}

	member, err := m.memberships.GetMember(sessionID, callerID)
	if err != nil {
		return err
	}
	if member == nil || member.Role != model.RoleOwner {
		return ErrForbidden
	}

	if _, err := m.sessions.End(sessionID); err != nil {
		return err
	}

	m.broadcaster.BroadcastSessionEnded(sessionID)
	return nil
}

// RemoveMember deactivates the target's membership. Owner-only; self-removal
// must go through Leave.
func (m *Manager) RemoveMember(callerID, sessionID, targetUserID int64) error {
	caller, err := m.memberships.GetMember(sessionID, callerID)
	if err != nil {
		return err
	}
	if caller == nil || !caller.IsActive || caller.Role != model.RoleOwner {
		return ErrForbidden
	}
	if callerID == targetUserID {
		return ErrSelfRemoval
	}

	target, err := m.memberships.GetMember(sessionID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil {
		return store.ErrNotMember
	}

	if _, err := m.memberships.Deactivate(sessionID, targetUserID); err != nil {
		return err
	}

	m.broadcaster.BroadcastMemberRemoved(sessionID, targetUserID)
	return nil
}

// Members lists the active members of a session. Member-only.
func (m *Manager) Members(callerID, sessionID int64) ([]model.Member, error) {
	if err := m.requireActiveMember(callerID, sessionID); err != nil {
		return nil, err
	}
	return m.memberships.ListActive(sessionID)
}

// Detail describes a session for one of its members.
type Detail struct {
	Session     *model.Session `json:"session"`
	ActiveCount int            `json:"active_count"`
	CallerRole  string         `json:"caller_role"`
}

// GetDetail returns the session with the caller's role and the active member
// count. Member-only.
func (m *Manager) GetDetail(callerID, sessionID int64) (*Detail, error) {
	sess, err := m.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, store.ErrSessionNotFound
	}

	member, err := m.memberships.GetMember(sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if member == nil || !member.IsActive {
		return nil, ErrForbidden
	}

	count, err := m.memberships.CountActive(sessionID)
	if err != nil {
		return nil, err
	}

	return &Detail{Session: sess, ActiveCount: count, CallerRole: member.Role}, nil
}

// CreateInvite issues a new invite token. Any active member may invite.
func (m *Manager) CreateInvite(callerID, sessionID int64, opts store.CreateOptions) (*model.Invite, string, error) {
	sess, err := m.sessions.GetByID(sessionID)
	if err != nil {
		return nil, "", err
	}
	if sess == nil {
		return nil, "", store.ErrSessionNotFound
	}
	if sess.Ended() {
		return nil, "", store.ErrSessionEnded
	}
	if err := m.requireActiveMember(callerID, sessionID); err != nil {
		return nil, "", err
	}

	inv, err := m.invites.Create(sessionID, callerID, opts)
	if err != nil {
		return nil, "", err
	}
	return inv, m.inviteLink(inv.Token), nil
}

// RevokeInvite marks an invite unusable. Any active member of the invite's
// session may revoke; already-admitted members are unaffected.
func (m *Manager) RevokeInvite(callerID int64, token string) error {
	inv, err := m.invites.GetByToken(token)
	if err != nil {
		return err
	}
	if inv == nil {
		return store.ErrInviteNotFound
	}
	if err := m.requireActiveMember(callerID, inv.SessionID); err != nil {
		return err
	}

	_, err = m.invites.Revoke(token)
	return err
}

// ResetInvites rotates a compromised link: all outstanding invites revoked,
// one fresh unlimited-use non-expiring token issued, atomically.
func (m *Manager) ResetInvites(callerID, sessionID int64) (*model.Invite, string, error) {
	sess, err := m.sessions.GetByID(sessionID)
	if err != nil {
		return nil, "", err
	}
	if sess == nil {
		return nil, "", store.ErrSessionNotFound
	}
	if sess.Ended() {
		return nil, "", store.ErrSessionEnded
	}
	if err := m.requireActiveMember(callerID, sessionID); err != nil {
		return nil, "", err
	}

	inv, err := m.invites.Reset(sessionID, callerID)
	if err != nil {
		return nil, "", err
	}
	return inv, m.inviteLink(inv.Token), nil
}

// ListInvites returns the session's invites with tokens masked except for
// those the caller issued. Member-only.
func (m *Manager) ListInvites(callerID, sessionID int64) ([]model.Invite, error) {
	if err := m.requireActiveMember(callerID, sessionID); err != nil {
		return nil, err
	}

	invites, err := m.invites.ListForSession(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range invites {
		if invites[i].IssuerID != callerID {
			invites[i].Token = maskToken(invites[i].Token)
		}
	}
	return invites, nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "…" + token[len(token)-4:]
}

func (m *Manager) requireActiveMember(userID, sessionID int64) error {
	member, err := m.memberships.GetMember(sessionID, userID)
	if err != nil {
		return err
	}
	if member == nil || !member.IsActive {
		return ErrForbidden
	}
	return nil
}
