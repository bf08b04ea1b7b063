package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"ivisionary/internal/util"
	"ivisionary/pkg/auth"
	"ivisionary/pkg/domain"
	"ivisionary/pkg/mail"
	"ivisionary/pkg/store"
	"ivisionary/services/api/internal/audit"
	"ivisionary/services/api/internal/security"
)

// DemoAdminID is the session id of the built-in administrator.
const DemoAdminID = "admin"

const maxUsernameSuffix = 100

// Login checks the demo administrator first, then registered accounts,
// and stores a new session under the returned token.
func (a *App) Login(ctx context.Context, email, password string) (domain.Session, string, error) {
	email = normalizeEmail(email)
	session, err := a.authenticate(ctx, email, password)
	if err != nil {
		a.audit.Add(ctx, audit.ActionLoginFailed, map[string]any{"email": email, "reason": err.Error()})
		a.observeFailure(ctx, security.EventLogin, security.OutcomeFail)
		return domain.Session{}, "", err
	}
	token, err := a.issueSession(ctx, session)
	if err != nil {
		return domain.Session{}, "", err
	}
	a.audit.Add(ctx, audit.ActionLogin, map[string]any{"email": email, "userId": session.ID})
	return session, token, nil
}

func (a *App) authenticate(ctx context.Context, email, password string) (domain.Session, error) {
	if email == "" || password == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	if a.isDemoAdmin(email, password) {
		return a.demoAdminSession(), nil
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.Session{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || user.Status == domain.StatusLocked || user.PasswordHash == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.Session{}, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return domain.Session{}, ErrEmailNotVerified
	}
	now := a.now()
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.Session{}, fmt.Errorf("update last login: %w", err)
	}
	return user.Session(), nil
}

func (a *App) isDemoAdmin(email, password string) bool {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.adminEmail)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.adminPassword)) == 1
	return emailOK && passwordOK
}

func (a *App) demoAdminSession() domain.Session {
	return domain.Session{
		ID:         DemoAdminID,
		Email:      a.adminEmail,
		Username:   "Admin",
		Role:       domain.RoleAdmin,
		IsVerified: true,
	}
}

func (a *App) issueSession(ctx context.Context, session domain.Session) (string, error) {
	token, sessionID, err := a.signer.Issue(session.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if err := a.sessions.SaveSession(ctx, sessionID, session, a.signer.TTL()); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return token, nil
}

// SessionFromToken resolves the session stored for token.
func (a *App) SessionFromToken(ctx context.Context, token string) (domain.Session, bool) {
	claims, err := a.signer.Verify(token)
	if err != nil {
		return domain.Session{}, false
	}
	session, ok, err := a.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("session lookup failed", "err", err)
		return domain.Session{}, false
	}
	return session, ok
}

// Logout removes the session for token. Unknown or invalid tokens are ignored.
func (a *App) Logout(ctx context.Context, token string) error {
	claims, err := a.signer.Verify(token)
	if err != nil {
		return nil
	}
	session, ok, err := a.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}
	if _, err := a.sessions.DeleteSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if ok {
		a.audit.Add(ctx, audit.ActionLogout, map[string]any{"email": session.Email, "userId": session.ID})
	}
	return nil
}

// UpdateProfile shallow-merges the non-empty fields of update into the
// session held by token. Registered accounts are updated as well.
func (a *App) UpdateProfile(ctx context.Context, token string, update domain.ProfileUpdate) (domain.Session, error) {
	claims, err := a.signer.Verify(token)
	if err != nil {
		return domain.Session{}, ErrNoActiveSession
	}
	session, ok, err := a.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("fetch session: %w", err)
	}
	if !ok {
		return domain.Session{}, ErrNoActiveSession
	}

	if v := auth.SanitizeText(update.Username); v != "" {
		session.Username = v
	}
	if v := normalizeEmail(update.Email); v != "" {
		if _, err := netmail.ParseAddress(v); err != nil {
			verr := &ValidationError{}
			verr.add("email", "Please enter a valid email")
			return domain.Session{}, verr
		}
		session.Email = v
	}
	if v := strings.TrimSpace(update.Subscription); v != "" {
		session.Subscription = v
	}

	if session.ID != DemoAdminID {
		if err := a.syncProfile(ctx, session); err != nil {
			return domain.Session{}, err
		}
	}
	ttl, ok := a.remainingTTL(claims)
	if !ok {
		return domain.Session{}, ErrNoActiveSession
	}
	if err := a.sessions.SaveSession(ctx, claims.SessionID, session, ttl); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// remainingTTL is the stored-session lifetime that keeps pace with the
// token's exp claim. It reports false once the token has run out.
func (a *App) remainingTTL(claims store.TokenClaims) (time.Duration, bool) {
	if a.signer.TTL() <= 0 || claims.ExpiresAt.IsZero() {
		return 0, true
	}
	left := claims.ExpiresAt.Sub(a.now())
	return left, left > 0
}

func (a *App) syncProfile(ctx context.Context, session domain.Session) error {
	user, ok, err := a.store.GetUserByID(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return nil
	}
	if session.Email != user.Email {
		if session.Email == a.adminEmail {
			return ErrUserAlreadyExists
		}
		if other, found, err := a.store.GetUserByEmail(ctx, session.Email); err != nil {
			return fmt.Errorf("check email: %w", err)
		} else if found && other.ID != user.ID {
			return ErrUserAlreadyExists
		}
	}
	if session.Username != user.Username {
		if other, found, err := a.store.GetUserByUsername(ctx, session.Username); err != nil {
			return fmt.Errorf("check username: %w", err)
		} else if found && other.ID != user.ID {
			return ErrUserAlreadyExists
		}
	}
	user.Email = session.Email
	user.Username = session.Username
	user.Subscription = session.Subscription
	user.UpdatedAt = a.now()
	if err := a.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func validateRegistration(in RegisterInput) error {
	verr := &ValidationError{}
	if utf8.RuneCountInString(in.Username) < 3 {
		verr.add("username", "Username must be at least 3 characters long")
	}
	if _, err := netmail.ParseAddress(in.Email); err != nil || in.Email == "" {
		verr.add("email", "Please enter a valid email")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		verr.add("password", err.Error())
	}
	return verr.err()
}

// Register creates an unverified account and mails its verification link.
// When the mail cannot be sent the account is kept without a token.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Username = auth.SanitizeText(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := validateRegistration(in); err != nil {
		return domain.User{}, err
	}
	if err := a.ensureAvailable(ctx, in.Email, in.Username); err != nil {
		return domain.User{}, err
	}
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	token, tokenHash, err := auth.NewVerificationToken()
	if err != nil {
		return domain.User{}, fmt.Errorf("verification token: %w", err)
	}
	now := a.now()
	expires := now.Add(auth.VerificationTTL)
	user := domain.User{
		ID:                       util.NewUUID(),
		Username:                 in.Username,
		Email:                    in.Email,
		PasswordHash:             passwordHash,
		Role:                     domain.RoleUser,
		Status:                   domain.StatusActive,
		VerificationTokenHash:    tokenHash,
		VerificationTokenExpires: &expires,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}

	if err := a.sendVerification(ctx, user, token); err != nil {
		util.LoggerFromContext(ctx).Error("verification email failed", "user_id", user.ID, "err", err)
		a.observeFailure(ctx, security.EventRegister, security.OutcomeFail)
		user.VerificationTokenHash = ""
		user.VerificationTokenExpires = nil
		user.UpdatedAt = a.now()
		if saveErr := a.store.SaveUser(ctx, user); saveErr != nil {
			return domain.User{}, errors.Join(ErrVerificationEmail, fmt.Errorf("clear verification token: %w", saveErr))
		}
		return user, fmt.Errorf("%w (%v)", ErrVerificationEmail, err)
	}
	return user, nil
}

func (a *App) sendVerification(ctx context.Context, user domain.User, token string) error {
	if a.mailer == nil {
		return mail.ErrMailerNotConfigured
	}
	return a.mailer.SendVerification(ctx, user.Email, user.Username, mail.VerificationURL(a.frontendURL, token))
}

func (a *App) ensureAvailable(ctx context.Context, email, username string) error {
	if email == a.adminEmail {
		return ErrUserAlreadyExists
	}
	if _, ok, err := a.store.GetUserByEmail(ctx, email); err != nil {
		return fmt.Errorf("check email: %w", err)
	} else if ok {
		return ErrUserAlreadyExists
	}
	if _, ok, err := a.store.GetUserByUsername(ctx, username); err != nil {
		return fmt.Errorf("check username: %w", err)
	} else if ok {
		return ErrUserAlreadyExists
	}
	return nil
}

// VerifyEmail marks the holder of an unexpired token as verified.
func (a *App) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrInvalidVerificationToken
	}
	user, ok, err := a.store.GetUserByVerificationHash(ctx, auth.HashToken(token), a.now())
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrInvalidVerificationToken
	}
	user.IsVerified = true
	user.VerificationTokenHash = ""
	user.VerificationTokenExpires = nil
	user.UpdatedAt = a.now()
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("verify user: %w", err)
	}
	return user, nil
}

// Identity is an account asserted by the external identity provider.
type Identity struct {
	Provider      string `json:"provider"`
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoURL"`
	EmailVerified bool   `json:"emailVerified"`
}

// UpsertIdentity creates or refreshes the account of a provider identity
// and opens a session for it.
func (a *App) UpsertIdentity(ctx context.Context, id Identity) (domain.Session, string, error) {
	id.Provider = strings.ToLower(strings.TrimSpace(id.Provider))
	id.UID = strings.TrimSpace(id.UID)
	id.Email = normalizeEmail(id.Email)
	verr := &ValidationError{}
	if id.Provider == "" {
		verr.add("provider", "Provider is required")
	}
	if id.UID == "" {
		verr.add("uid", "Provider uid is required")
	}
	if _, err := netmail.ParseAddress(id.Email); err != nil {
		verr.add("email", "Please enter a valid email")
	}
	if err := verr.err(); err != nil {
		return domain.Session{}, "", err
	}

	if id.Email == a.adminEmail {
		return domain.Session{}, "", ErrUserAlreadyExists
	}

	now := a.now()
	user, err := a.identityAccount(ctx, id)
	if err != nil {
		return domain.Session{}, "", err
	}
	if user.Status == domain.StatusLocked {
		return domain.Session{}, "", ErrInvalidCredentials
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	base := auth.SanitizeText(id.DisplayName)
	if base == "" && user.Username == "" {
		base = strings.SplitN(id.Email, "@", 2)[0]
	}
	if base != "" && base != user.Username {
		if user.Username, err = a.freeUsername(ctx, base, user.ID); err != nil {
			return domain.Session{}, "", err
		}
	}
	user.Email = id.Email
	user.IsVerified = user.IsVerified || id.EmailVerified
	user.PhotoURL = strings.TrimSpace(id.PhotoURL)
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.Session{}, "", fmt.Errorf("save user: %w", err)
	}

	session := user.Session()
	token, err := a.issueSession(ctx, session)
	if err != nil {
		return domain.Session{}, "", err
	}
	a.audit.Add(ctx, audit.ActionLogin, map[string]any{"email": user.Email, "userId": user.ID, "provider": id.Provider})
	return session, token, nil
}

// identityAccount finds the account bound to the provider uid, links an
// existing account that owns the same verified e-mail, or starts a new one.
func (a *App) identityAccount(ctx context.Context, id Identity) (domain.User, error) {
	user, ok, err := a.store.GetUserByProvider(ctx, id.Provider, id.UID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	owner, owned, err := a.store.GetUserByEmail(ctx, id.Email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if ok {
		if owned && owner.ID != user.ID {
			return domain.User{}, ErrUserAlreadyExists
		}
		return user, nil
	}
	if owned {
		if !id.EmailVerified || owner.Provider != "" {
			return domain.User{}, ErrUserAlreadyExists
		}
		owner.Provider = id.Provider
		owner.ProviderUID = id.UID
		return owner, nil
	}
	return domain.User{
		ID:          util.NewUUID(),
		Role:        domain.RoleUser,
		Status:      domain.StatusActive,
		Provider:    id.Provider,
		ProviderUID: id.UID,
	}, nil
}

// freeUsername returns base, or base with the first numeric suffix no other
// account holds.
func (a *App) freeUsername(ctx context.Context, base, selfID string) (string, error) {
	candidate := base
	for n := 2; n <= maxUsernameSuffix; n++ {
		other, taken, err := a.store.GetUserByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken || other.ID == selfID {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, n)
	}
	return base + "-" + util.NewID()[:8], nil
}
