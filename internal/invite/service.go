// Package invite manages organization invitations: token issue, mail
// dispatch, acceptance and expiry.
package invite

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"labops/internal/store"
)

const (
	InvitationFQN   = "org.invitation"
	OrganizationFQN = "org.organization"
	MembershipFQN   = "org.membership"

	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusExpired  = "expired"
	StatusRevoked  = "revoked"

	mailTemplate = "org_invitation"
)

const DefaultTTL = 7 * 24 * time.Hour

type Invitation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	Token          string    `json:"token"`
	Status         string    `json:"status"`
	InvitedBy      string    `json:"invited_by,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	AcceptedAt     time.Time `json:"accepted_at,omitempty"`
}

type Service struct {
	store  store.Store
	mailer Mailer
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, mailer Mailer, opts ...Option) *Service {
	s := &Service{store: st, mailer: mailer, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create issues a pending invitation and dispatches the mail. A mail
// failure does not roll the invitation back; the token can be re-sent.
func (s *Service) Create(ctx context.Context, organizationID, email, role, invitedBy string) (Invitation, error) {
	if email == "" {
		return Invitation{}, store.Invalid(store.ErrRequired, "email", "email is required")
	}
	org, err := s.store.Get(ctx, OrganizationFQN, organizationID)
	if err != nil {
		return Invitation{}, err
	}

	pending, err := s.store.Select(ctx, store.Query{
		Entity: InvitationFQN,
		Filters: []store.Filter{
			store.Eq("organization_id", organizationID),
			store.Eq("email", email),
			store.Eq("status", StatusPending),
		},
	})
	if err != nil {
		return Invitation{}, err
	}
	if len(pending) > 0 {
		return Invitation{}, store.Invalid(store.ErrUniqueViolation, "email",
			fmt.Sprintf("a pending invitation for %q already exists", email))
	}

	rec, err := s.store.Insert(ctx, InvitationFQN, map[string]any{
		"organization_id": organizationID,
		"email":           email,
		"role":            role,
		"token":           uuid.NewString(),
		"status":          StatusPending,
		"invited_by":      invitedBy,
		"expires_at":      s.now().Add(s.ttl).UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Invitation{}, err
	}
	inv := fromRecord(rec)

	if err := s.mailer.Send(ctx, mailTemplate, email, map[string]string{
		"organization": asString(org.Data["name"]),
		"role":         role,
		"token":        inv.Token,
	}); err != nil {
		log.Printf("invitation %s: mail to %s failed: %v", inv.ID, email, err)
	}
	return inv, nil
}

// Accept redeems a token: the invitation must be pending and unexpired.
// A membership row is created for the accepting user.
func (s *Service) Accept(ctx context.Context, token, userID string) (Invitation, error) {
	recs, err := s.store.Select(ctx, store.Query{
		Entity:  InvitationFQN,
		Filters: []store.Filter{store.Eq("token", token)},
		Limit:   1,
	})
	if err != nil {
		return Invitation{}, err
	}
	if len(recs) == 0 {
		return Invitation{}, store.ErrNotFound
	}
	inv := fromRecord(recs[0])

	if inv.Status != StatusPending {
		return Invitation{}, store.Invalid(store.ErrBadState, "status",
			fmt.Sprintf("invitation is %s", inv.Status))
	}
	if !inv.ExpiresAt.IsZero() && !s.now().Before(inv.ExpiresAt) {
		if _, err := s.store.Patch(ctx, InvitationFQN, inv.ID, store.NoVersionCheck,
			map[string]any{"status": StatusExpired}); err != nil {
			return Invitation{}, err
		}
		return Invitation{}, store.Invalid(store.ErrExpired, "token", "invitation has expired")
	}

	// membership first: a failed write leaves the invitation pending and
	// the token still redeemable
	if _, err := s.store.Insert(ctx, MembershipFQN, map[string]any{
		"organization_id": inv.OrganizationID,
		"user_id":         userID,
		"role":            inv.Role,
		"assigned_by":     inv.InvitedBy,
	}); err != nil {
		return Invitation{}, fmt.Errorf("create membership: %w", err)
	}
	rec, err := s.store.Patch(ctx, InvitationFQN, inv.ID, store.NoVersionCheck, map[string]any{
		"status":      StatusAccepted,
		"accepted_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Invitation{}, err
	}
	return fromRecord(rec), nil
}

// Revoke withdraws a pending invitation.
func (s *Service) Revoke(ctx context.Context, id string) error {
	rec, err := s.store.Get(ctx, InvitationFQN, id)
	if err != nil {
		return err
	}
	if asString(rec.Data["status"]) != StatusPending {
		return store.Invalid(store.ErrBadState, "status", "only pending invitations can be revoked")
	}
	_, err = s.store.Patch(ctx, InvitationFQN, id, store.NoVersionCheck,
		map[string]any{"status": StatusRevoked})
	return err
}

// ExpireOld sweeps pending invitations past their expiry and returns how
// many were flipped.
func (s *Service) ExpireOld(ctx context.Context) (int, error) {
	recs, err := s.store.Select(ctx, store.Query{
		Entity: InvitationFQN,
		Filters: []store.Filter{
			store.Eq("status", StatusPending),
			store.Lte("expires_at", s.now().UTC().Format(time.RFC3339)),
		},
	})
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if _, err := s.store.Patch(ctx, InvitationFQN, rec.ID, store.NoVersionCheck,
			map[string]any{"status": StatusExpired}); err != nil {
			return 0, fmt.Errorf("expire invitation %s: %w", rec.ID, err)
		}
	}
	return len(recs), nil
}

func fromRecord(rec *store.Record) Invitation {
	inv := Invitation{
		ID:             rec.ID,
		OrganizationID: asString(rec.Data["organization_id"]),
		Email:          asString(rec.Data["email"]),
		Role:           asString(rec.Data["role"]),
		Token:          asString(rec.Data["token"]),
		Status:         asString(rec.Data["status"]),
		InvitedBy:      asString(rec.Data["invited_by"]),
	}
	inv.ExpiresAt = asTime(rec.Data["expires_at"])
	inv.AcceptedAt = asTime(rec.Data["accepted_at"])
	return inv
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
