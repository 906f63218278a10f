package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/repository"
	"github.com/iliyamo/room-booking/internal/utils"
)

// ErrCodesUnavailable is returned by one-time code flows when no code
// store is configured.
var ErrCodesUnavailable = fmt.Errorf("%w: one-time codes unavailable", apperr.ErrFetch)

// TokenRepository stores refresh token hashes.
// repository.TokenRepo satisfies it.
type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ConsumeRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// AuthOptions configures an AuthService.
type AuthOptions struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	OTPTTL         time.Duration
	ResetTTL       time.Duration
	ResetURL       string
	OwnerEmails    []string // sign-ups with these addresses get the owner role

	Codes  CodeStore // nil disables one-time codes and password recovery
	Mailer Mailer
	OTP    OTPSender
}

// Token is a credential and its expiry.
type Token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Session is what a successful sign-in returns.
type Session struct {
	User    model.Identity `json:"user"`
	Access  Token          `json:"access"`
	Refresh Token          `json:"refresh"`
}

// SignUpInput is the body of a sign-up.
type SignUpInput struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required"`
	FullName string     `json:"full_name" validate:"max=120"`
	Phone    string     `json:"phone" validate:"omitempty,e164"`
	Role     model.Role `json:"role"`
}

// AuthService is the auth provider.
type AuthService struct {
	profiles ProfileRepository
	tokens   TokenRepository
	opts     AuthOptions
	check    *validator.Validate
	owners   map[string]bool
}

// NewAuthService wires an AuthService.
func NewAuthService(profiles ProfileRepository, tokens TokenRepository, opts AuthOptions) *AuthService {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 5 * time.Minute
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.Mailer == nil {
		opts.Mailer = LogMailer{}
	}
	if opts.OTP == nil {
		opts.OTP = LogOTPSender{}
	}
	owners := make(map[string]bool, len(opts.OwnerEmails))
	for _, e := range opts.OwnerEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			owners[e] = true
		}
	}
	return &AuthService{profiles: profiles, tokens: tokens, opts: opts, check: validator.New(), owners: owners}
}

// SignUp creates a profile and signs it in.  The owner role cannot be
// requested; it is granted to the configured owner addresses only.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.check.Struct(in); err != nil {
		return Session{}, apperr.Validation("%s", err.Error())
	}
	if err := utils.CheckPassword(in.Password); err != nil {
		return Session{}, apperr.Validation("%s", err.Error())
	}
	switch in.Role {
	case model.RoleTenant, model.RoleNone:
	case model.RoleOwner:
		return Session{}, apperr.Validation("role owner cannot be requested")
	default:
		return Session{}, apperr.Validation("unknown role %q", in.Role)
	}
	if s.owners[in.Email] {
		in.Role = model.RoleOwner
	}

	rec := repository.ProfileRecord{FullName: strings.TrimSpace(in.FullName), Email: in.Email, Phone: in.Phone, Role: in.Role}
	id, err := s.profiles.Create(ctx, rec, in.Password, s.opts.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	rec.ID = id
	return s.issue(ctx, rec)
}

// Login is signInWithPassword.  Unknown e-mails and wrong passwords are
// indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	rec, err := s.profiles.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid credentials", apperr.ErrAuth)
	}
	if err != nil {
		return Session{}, err
	}
	if rec.PasswordHash == "" || !utils.VerifyPassword(rec.PasswordHash, password) {
		return Session{}, fmt.Errorf("%w: invalid credentials", apperr.ErrAuth)
	}
	return s.issue(ctx, rec)
}

func otpKey(phone string) string { return "otp:" + phone }

// SendOTP is signInWithOtp: it stores a 6-digit code for the phone and
// delivers it.  A phone without a profile gets one on first use.
func (s *AuthService) SendOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if err := s.check.Var(phone, "required,e164"); err != nil {
		return apperr.Validation("phone must be in E.164 format")
	}
	if s.opts.Codes == nil {
		return ErrCodesUnavailable
	}
	code, err := utils.NewNumericCode(6)
	if err != nil {
		return err
	}
	if err := s.opts.Codes.Put(ctx, otpKey(phone), code, s.opts.OTPTTL); err != nil {
		return err
	}
	return s.opts.OTP.SendCode(ctx, phone, code)
}

// VerifyOTP exchanges a valid code for a session.  The code is consumed.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (Session, error) {
	phone = strings.TrimSpace(phone)
	if s.opts.Codes == nil {
		return Session{}, ErrCodesUnavailable
	}
	want, err := s.opts.Codes.Get(ctx, otpKey(phone))
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && want != strings.TrimSpace(code)) {
		return Session{}, fmt.Errorf("%w: invalid or expired code", apperr.ErrAuth)
	}
	if err != nil {
		return Session{}, err
	}
	_ = s.opts.Codes.Delete(ctx, otpKey(phone))

	rec, err := s.profiles.GetByPhone(ctx, phone)
	if errors.Is(err, apperr.ErrNotFound) {
		rec = repository.ProfileRecord{Phone: phone}
		if rec.ID, err = s.profiles.Create(ctx, rec, "", s.opts.BcryptCost); err != nil {
			return Session{}, err
		}
	} else if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, rec)
}

// Refresh rotates a refresh token: the presented token is consumed and a
// new session issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	userID, err := s.tokens.ConsumeRefresh(ctx, utils.HashToken(strings.TrimSpace(raw)))
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid refresh token", apperr.ErrAuth)
	}
	if err != nil {
		return Session{}, err
	}
	rec, err := s.profiles.GetByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: account no longer exists", apperr.ErrAuth)
	}
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, rec)
}

// Logout is signOut: it revokes the refresh token.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.Validation("refresh_token required")
	}
	return s.tokens.RevokeByHash(ctx, utils.HashToken(raw))
}

func resetKey(tokenHash string) string { return "reset:" + tokenHash }

// Recover is resetPasswordForEmail.  It always succeeds for well formed
// addresses so that callers cannot probe which ones exist.
func (s *AuthService) Recover(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.check.Var(email, "required,email"); err != nil {
		return apperr.Validation("a valid email is required")
	}
	if s.opts.Codes == nil {
		return ErrCodesUnavailable
	}
	rec, err := s.profiles.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	raw, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	if err := s.opts.Codes.Put(ctx, resetKey(utils.HashToken(raw)), rec.ID, s.opts.ResetTTL); err != nil {
		return err
	}
	link := s.opts.ResetURL + "?token=" + url.QueryEscape(raw)
	body, err := renderReset(rec.FullName, link, s.opts.ResetTTL.String())
	if err != nil {
		return err
	}
	return s.opts.Mailer.Send(ctx, rec.Email, "Reset your password", body)
}

// Reset consumes a recovery token, sets the new password and signs out
// every session of the account.
func (s *AuthService) Reset(ctx context.Context, token, password string) error {
	if err := utils.CheckPassword(password); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if s.opts.Codes == nil {
		return ErrCodesUnavailable
	}
	key := resetKey(utils.HashToken(strings.TrimSpace(token)))
	userID, err := s.opts.Codes.Get(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%w: invalid or expired reset token", apperr.ErrAuth)
	}
	if err != nil {
		return err
	}
	if err := s.profiles.UpdatePassword(ctx, userID, password, s.opts.BcryptCost); err != nil {
		return err
	}
	_ = s.opts.Codes.Delete(ctx, key)
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// UpdatePassword is updateUser(password) for the signed-in caller.
func (s *AuthService) UpdatePassword(ctx context.Context, caller model.Identity, password string) error {
	if caller.ID == "" {
		return apperr.ErrAuth
	}
	if err := utils.CheckPassword(password); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return s.profiles.UpdatePassword(ctx, caller.ID, password, s.opts.BcryptCost)
}

// Me is getCurrentUser.  It reads the profile so that role changes apply
// without waiting for the access token to expire.
func (s *AuthService) Me(ctx context.Context, userID string) (model.Identity, model.Profile, error) {
	rec, err := s.profiles.GetByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.Identity{}, model.Profile{}, fmt.Errorf("%w: account no longer exists", apperr.ErrAuth)
	}
	if err != nil {
		return model.Identity{}, model.Profile{}, err
	}
	return rec.Identity(), rec.Profile(), nil
}

func (s *AuthService) issue(ctx context.Context, rec repository.ProfileRecord) (Session, error) {
	access, err := utils.NewAccessToken(s.opts.JWTSecret, rec.ID, string(rec.Role), s.opts.AccessTTLMin)
	if err != nil {
		return Session{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.opts.RefreshTTLDays)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, rec.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, fmt.Errorf("save refresh: %w", err)
	}
	return Session{
		User:    rec.Identity(),
		Access:  Token{Token: access.Token, Expires: access.Exp},
		Refresh: Token{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
