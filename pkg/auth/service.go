// Package auth turns signed Telegram initData into a session token that
// carries the caller's role in the group the Mini App was opened from.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/metrics"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/permissions"
	"tgspace-backend/pkg/telegram/initdata"
	"tgspace-backend/pkg/utils"
)

// Error is an authentication rejection. Message is shown to the client verbatim.
type Error struct {
	Outcome string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInvalidSignature = &Error{Outcome: "invalid_signature", Message: "Invalid Telegram authentication"}
	ErrExpired          = &Error{Outcome: "expired", Message: "Authentication expired"}
	ErrNoUser           = &Error{Outcome: "no_user", Message: "User data not found in initData"}
	ErrNoChat           = &Error{Outcome: "no_chat", Message: "Chat data not found. Mini App must be opened from a group."}
	ErrMembershipCheck  = &Error{Outcome: "membership_error", Message: "Failed to verify group membership"}
	ErrNotMember        = &Error{Outcome: "not_member", Message: "You are not a member of this group"}
	ErrBypassForbidden  = &Error{Outcome: "bypass_forbidden", Message: "Mock auth not allowed in production"}
)

// Fixed identity used by the development bypass.
const (
	devTelegramID = 123456789
	devChatID     = -1001234567890
	devChatTitle  = "Dev Test Group"
)

// Store persists users and spaces discovered during login.
type Store interface {
	UpsertUser(ctx context.Context, p models.TelegramProfile) (*models.User, error)
	FindOrCreateSpace(ctx context.Context, chatID int64, title string) (*models.Space, error)
}

// Options wires a Service.
type Options struct {
	Store    Store
	Oracle   permissions.MembershipOracle
	Verifier initdata.Verifier
	Tokens   *utils.JWTService

	// MaxAge bounds now - auth_date. Zero means one hour.
	MaxAge         time.Duration
	DevBypassToken string
	Production     bool

	Logger  logging.Logger
	Metrics *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// Identity is the outcome of every stage before token issuance.
type Identity struct {
	User  *models.User
	Space *models.Space
	Role  models.Role
	// SectionID is the section named by the deep link, if any.
	SectionID *int64
}

// Session is returned to the Mini App after a successful login.
type Session struct {
	AccessToken    string                  `json:"accessToken"`
	ExpiresAt      time.Time               `json:"expiresAt"`
	User           *models.User            `json:"user"`
	Space          *models.Space           `json:"space"`
	Role           models.Role             `json:"role"`
	Permissions    permissions.Permissions `json:"permissions"`
	StartSectionID *int64                  `json:"startSectionId,omitempty"`
}

type Service struct {
	opts Options
}

func NewService(opts Options) *Service {
	if opts.MaxAge <= 0 {
		opts.MaxAge = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{opts: opts}
}

// Authenticate runs ResolveIdentity then IssueToken.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Session, error) {
	id, err := s.ResolveIdentity(ctx, raw)
	if err != nil {
		s.record(err)
		return nil, err
	}
	sess, err := s.IssueToken(id)
	if err != nil {
		s.record(err)
		return nil, err
	}
	if raw == s.opts.DevBypassToken {
		s.opts.Metrics.RecordAuth("bypass")
	} else {
		s.opts.Metrics.RecordAuth("ok")
	}
	return sess, nil
}

func (s *Service) record(err error) {
	var ae *Error
	if errors.As(err, &ae) {
		s.opts.Metrics.RecordAuth(ae.Outcome)
		return
	}
	s.opts.Metrics.RecordAuth("error")
}

// ResolveIdentity verifies raw, upserts the user and the space and checks
// that the user still belongs to the group.
func (s *Service) ResolveIdentity(ctx context.Context, raw string) (*Identity, error) {
	if s.opts.DevBypassToken != "" && raw == s.opts.DevBypassToken {
		return s.devIdentity(ctx)
	}

	data, err := initdata.Parse(raw)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if !s.opts.Verifier.Verify(ctx, raw) {
		s.opts.Logger.Warn(ctx, "invalid initData signature")
		return nil, ErrInvalidSignature
	}

	age := s.opts.Now().Sub(data.AuthTime())
	if age > s.opts.MaxAge {
		s.opts.Logger.Warn(ctx, "initData is too old", "age", age.String())
		return nil, ErrExpired
	}

	if data.User == nil {
		return nil, ErrNoUser
	}

	chatID, chatTitle, sectionID, err := resolveChat(data)
	if err != nil {
		return nil, err
	}

	user, err := s.opts.Store.UpsertUser(ctx, models.TelegramProfile{
		TelegramID: data.User.ID,
		Username:   data.User.Username,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	space, err := s.opts.Store.FindOrCreateSpace(ctx, chatID, chatTitle)
	if err != nil {
		return nil, fmt.Errorf("find or create space: %w", err)
	}

	role, err := s.resolveRole(ctx, chatID, data.User.ID)
	if err != nil {
		s.opts.Logger.Warn(ctx, "membership lookup failed",
			"telegram_id", data.User.ID, "chat_id", chatID, "error", err)
		return nil, ErrMembershipCheck
	}
	if !role.IsMember() {
		return nil, ErrNotMember
	}

	return &Identity{User: user, Space: space, Role: role, SectionID: sectionID}, nil
}

// resolveChat prefers the chat object and falls back to the start param.
func resolveChat(data *initdata.InitData) (int64, string, *int64, error) {
	var sectionID *int64
	if data.StartParam != "" {
		if link, err := initdata.ParseStartParam(data.StartParam); err == nil {
			sectionID = link.SectionID
		}
	}

	if data.Chat != nil {
		return data.Chat.ID, data.Chat.Title, sectionID, nil
	}
	if data.StartParam == "" {
		return 0, "", nil, ErrNoChat
	}
	link, err := initdata.ParseStartParam(data.StartParam)
	if err != nil {
		return 0, "", nil, ErrNoChat
	}
	return link.ChatID, "", link.SectionID, nil
}

func (s *Service) resolveRole(ctx context.Context, chatID, telegramID int64) (models.Role, error) {
	if s.opts.Oracle == nil {
		return "", errors.New("no membership oracle configured")
	}
	start := time.Now()
	role, err := s.opts.Oracle.ResolveMembership(ctx, chatID, telegramID)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.opts.Metrics.RecordMembershipCheck(status, time.Since(start))
	return role, err
}

func (s *Service) devIdentity(ctx context.Context) (*Identity, error) {
	if s.opts.Production {
		return nil, ErrBypassForbidden
	}
	s.opts.Logger.Warn(ctx, "development login bypass used")

	user, err := s.opts.Store.UpsertUser(ctx, models.TelegramProfile{
		TelegramID: devTelegramID,
		Username:   "devuser",
		FirstName:  "Dev",
		LastName:   "User",
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	space, err := s.opts.Store.FindOrCreateSpace(ctx, devChatID, devChatTitle)
	if err != nil {
		return nil, fmt.Errorf("find or create space: %w", err)
	}
	return &Identity{User: user, Space: space, Role: models.RoleAdministrator}, nil
}

// IssueToken signs a session for id.
func (s *Service) IssueToken(id *Identity) (*Session, error) {
	token, expiresAt, err := s.opts.Tokens.GenerateSessionToken(utils.SessionSubject{
		UserID:     id.User.ID,
		TelegramID: id.User.TelegramID,
		SpaceID:    id.Space.ID,
		ChatID:     id.Space.ChatID,
		Role:       id.Role,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:    token,
		ExpiresAt:      expiresAt,
		User:           id.User,
		Space:          id.Space,
		Role:           id.Role,
		Permissions:    permissions.ForRole(id.Role),
		StartSectionID: id.SectionID,
	}, nil
}
