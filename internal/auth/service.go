package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/auditlog"
	"github.com/frahmantamala/ward-census/internal/core/cache"
	"github.com/frahmantamala/ward-census/internal/session"
	"github.com/frahmantamala/ward-census/internal/user"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	TouchLastActive(ctx context.Context, id int64) error
}

// SessionManager is the part of session.Manager the auth flow drives.
type SessionManager interface {
	CreateSession(ctx context.Context, userID int64, device session.DeviceInfo) (string, error)
	Heartbeat(ctx context.Context, userID int64, sessionID string) error
	EndSession(ctx context.Context, userID int64, sessionID string, reason session.EndReason) error
	EndAllForUser(ctx context.Context, userID int64, reason session.EndReason) error
	CurrentSessionID(ctx context.Context, userID int64) (string, error)
	Validate(ctx context.Context, userID int64, sessionID string) error
}

type AuditRecorder interface {
	Event(ctx context.Context, e auditlog.Entry)
}

// ServiceAPI is what the handler and middleware need.
type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO, device session.DeviceInfo) (*LoginResult, error)
	Logout(ctx context.Context, claims *Claims, reason session.EndReason) error
	ParseToken(token string) (*Claims, error)
	ResolveSession(ctx context.Context, token string) (*internal.Principal, error)
	CheckSession(ctx context.Context, token string) (*SessionStatus, error)
	Heartbeat(ctx context.Context, p *internal.Principal) error
}

// Service is the main auth service with dependencies
type Service struct {
	users    UserRepository
	sessions SessionManager
	tokens   TokenIssuer
	audit    AuditRecorder
	// active users seen recently; misses go back to the repository
	active *cache.TTL[int64, *user.User]
	logger *slog.Logger
	now    func() time.Time

	dummyHash []byte
}

// NewService creates a new auth service. activeCheckTTL bounds how long a
// deactivation can go unnoticed by a signed-in user.
func NewService(users UserRepository, sessions SessionManager, tokens TokenIssuer, audit AuditRecorder, activeCheckTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	// compared against for unknown usernames so response timing matches
	dummy, _ := bcrypt.GenerateFromPassword([]byte("ward-census-placeholder"), bcrypt.MinCost)
	return &Service{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		audit:     audit,
		active:    cache.NewTTL[int64, *user.User](activeCheckTTL),
		logger:    logger,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// Authenticate validates credentials. Deactivated accounts are refused
// here, before any session exists.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*user.User, error) {
	username := strings.TrimSpace(dto.Username)
	if username == "" || dto.Password == "" {
		return nil, internal.ErrInvalidCredentials
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(dto.Password))
			return nil, internal.ErrInvalidCredentials
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive
	}
	return u, nil
}

// Login authenticates, opens a session that replaces any other session of
// the user and signs a token bound to it.
func (s *Service) Login(ctx context.Context, dto LoginDTO, device session.DeviceInfo) (*LoginResult, error) {
	u, err := s.Authenticate(ctx, dto)
	if err != nil {
		s.recordFailure(ctx, dto.Username, err)
		return nil, err
	}

	sessionID, err := s.sessions.CreateSession(ctx, u.ID, device)
	if err != nil {
		s.logger.Error("Login: failed to create session", "user_id", u.ID, "error", err)
		return nil, internal.NewInternalError("Failed to create session", err)
	}

	token, expiresAt, err := s.tokens.Issue(Claims{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		SessionID: sessionID,
	})
	if err != nil {
		if endErr := s.sessions.EndSession(ctx, u.ID, sessionID, session.ReasonLogout); endErr != nil {
			s.logger.Warn("Login: failed to roll back session", "session_id", sessionID, "error", endErr)
		}
		return nil, internal.NewInternalError("Failed to issue token", err)
	}

	if err := s.users.TouchLastActive(ctx, u.ID); err != nil {
		s.logger.Warn("Login: failed to update last active", "user_id", u.ID, "error", err)
	}
	s.active.Set(u.ID, u)

	uid := u.ID
	s.record(ctx, auditlog.Entry{
		Type:     auditlog.TypeLogin,
		UserID:   &uid,
		Username: u.Username,
		Message:  "user logged in",
		Details:  auditlog.Details(map[string]string{"session_id": sessionID, "role": string(u.Role)}),
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: sessionID,
		User:      ProfileFromUser(u),
	}, nil
}

// Logout ends the session named by claims. A session that was already
// replaced is closed without touching its replacement.
func (s *Service) Logout(ctx context.Context, claims *Claims, reason session.EndReason) error {
	if claims == nil {
		return nil
	}
	if reason != session.ReasonTabClosed {
		reason = session.ReasonLogout
	}

	if err := s.sessions.EndSession(ctx, claims.UserID, claims.SessionID, reason); err != nil {
		s.logger.Error("Logout: failed to end session", "user_id", claims.UserID, "error", err)
		return internal.NewInternalError("Failed to end session", err)
	}
	s.active.Delete(claims.UserID)

	uid := claims.UserID
	s.record(ctx, auditlog.Entry{
		Type:     auditlog.TypeLogout,
		UserID:   &uid,
		Username: claims.Username,
		Message:  "user logged out",
		Details:  auditlog.Details(map[string]string{"session_id": claims.SessionID, "reason": string(reason)}),
	})
	return nil
}

func (s *Service) ParseToken(token string) (*Claims, error) {
	if token == "" {
		return nil, internal.ErrMissingToken
	}
	return s.tokens.Parse(token)
}

// ResolveSession turns a token into the signed-in principal. The session
// must still be the user's current one and the account must still be
// active; a deactivated account has every session ended.
func (s *Service) ResolveSession(ctx context.Context, token string) (*internal.Principal, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Validate(ctx, claims.UserID, claims.SessionID); err != nil {
		if s.deactivated(ctx, claims.UserID, err) {
			return nil, internal.ErrAccountDeactivated
		}
		return nil, sessionError(err)
	}

	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return ProfileFromUser(u).Principal(claims.SessionID), nil
}

// CheckSession reports whether the token's session is still current. A
// replaced or expired session is a normal answer, not an error.
func (s *Service) CheckSession(ctx context.Context, token string) (*SessionStatus, error) {
	status := &SessionStatus{CheckedAt: s.now().UTC()}

	p, err := s.ResolveSession(ctx, token)
	if err == nil {
		profile := Profile{ID: p.UserID, Username: p.Username, FirstName: p.FirstName, LastName: p.LastName, Role: p.Role, Wards: p.Wards}
		status.Valid = true
		status.SessionID = p.SessionID
		status.User = &profile
		return status, nil
	}

	appErr, ok := internal.IsAppError(err)
	if !ok || (appErr.Code != internal.ErrCodeSessionSuperseded && appErr.Code != internal.ErrCodeSessionExpired) {
		return nil, err
	}

	status.Reason = string(appErr.Code)
	// the caller compares this against the session it holds
	if claims, perr := s.ParseToken(token); perr == nil {
		if current, cerr := s.sessions.CurrentSessionID(ctx, claims.UserID); cerr == nil {
			status.SessionID = current
		}
	}
	return status, nil
}

func (s *Service) Heartbeat(ctx context.Context, p *internal.Principal) error {
	if p == nil {
		return internal.ErrMissingToken
	}
	if err := s.sessions.Heartbeat(ctx, p.UserID, p.SessionID); err != nil {
		if s.deactivated(ctx, p.UserID, err) {
			return internal.ErrAccountDeactivated
		}
		return sessionError(err)
	}
	return nil
}

func (s *Service) activeUser(ctx context.Context, userID int64) (*user.User, error) {
	if u, ok := s.active.Get(userID); ok {
		return u, nil
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if u == nil || !u.IsActive {
		s.forceOut(ctx, userID)
		return nil, internal.ErrAccountDeactivated
	}

	s.active.Set(userID, u)
	return u, nil
}

// deactivated reports whether a session that is no longer current was
// ended because the account was deactivated. Deactivation clears the
// session pointer before any poll sees it, so the account is read
// uncached here.
func (s *Service) deactivated(ctx context.Context, userID int64, validateErr error) bool {
	if !errors.Is(validateErr, session.ErrSessionSuperseded) && !errors.Is(validateErr, session.ErrSessionExpired) {
		return false
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		s.logger.Warn("failed to recheck account", "user_id", userID, "error", err)
		return false
	}
	if u != nil && u.IsActive {
		return false
	}
	s.active.Delete(userID)
	return true
}

func (s *Service) forceOut(ctx context.Context, userID int64) {
	s.active.Delete(userID)
	if err := s.sessions.EndAllForUser(ctx, userID, session.ReasonDeactivated); err != nil {
		s.logger.Error("failed to end sessions of deactivated user", "user_id", userID, "error", err)
	}

	uid := userID
	s.record(ctx, auditlog.Entry{
		Level:   auditlog.LevelWarn,
		Type:    auditlog.TypeForced,
		UserID:  &uid,
		Message: "deactivated account signed out",
	})
}

func (s *Service) recordFailure(ctx context.Context, username string, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok || appErr.StatusCode >= 500 {
		return
	}
	s.record(ctx, auditlog.Entry{
		Level:    auditlog.LevelWarn,
		Type:     auditlog.TypeLoginFailed,
		Username: strings.TrimSpace(username),
		Message:  appErr.Message,
		Details:  auditlog.Details(map[string]string{"code": string(appErr.Code)}),
	})
}

func (s *Service) record(ctx context.Context, e auditlog.Entry) {
	if s.audit != nil {
		s.audit.Event(ctx, e)
	}
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionSuperseded):
		return internal.ErrSessionSuperseded
	case errors.Is(err, session.ErrSessionExpired):
		return internal.ErrSessionExpired
	}
	return internal.NewInternalError("failed to validate session", err)
}
