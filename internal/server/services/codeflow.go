// Package services contains server-side business logic: passwordless
// sign-in with conversion tracking, profile resolution and credit grants.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/dmitrijs2005/photoai/internal/server/auth"
	"github.com/dmitrijs2005/photoai/internal/server/config"
	"github.com/dmitrijs2005/photoai/internal/server/conversion"
	"github.com/dmitrijs2005/photoai/internal/server/identity"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

const (
	MessageSignupCodeSent = "Verification code sent. Check your email to finish signing up."
	MessageLoginCodeSent  = "Login code sent. Check your email."
	MessageRegistered     = "Registration complete."
	MessageSignedIn       = "Signed in successfully."
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// EventSink accepts conversion events for background delivery.
type EventSink interface {
	Submit(ctx context.Context, e conversion.Event) bool
}

type SendCodeResult struct {
	Success   bool
	Message   string
	NewSignup bool
}

type VerifyCodeResult struct {
	Success bool
	Message string
	User    *models.Profile
	Token   string
}

// CodeFlowService drives one-time-code sign-in and the marketing flag that
// gates Lead and CompleteRegistration events.
type CodeFlowService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      identity.Issuer
	resolver    *ProfileResolver
	events      EventSink
	jwtSecret   []byte
	tokenTTL    time.Duration
	bypassCode  string
	validate    *validator.Validate
	log         logging.Logger
	now         func() time.Time
}

func NewCodeFlowService(db *sql.DB, m repomanager.RepositoryManager, issuer identity.Issuer, resolver *ProfileResolver, events EventSink, cfg *config.Config, log logging.Logger) *CodeFlowService {
	return &CodeFlowService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		resolver:    resolver,
		events:      events,
		jwtSecret:   []byte(cfg.SecretKey),
		tokenTTL:    cfg.TokenValidityDuration,
		bypassCode:  cfg.AdminBypassCode,
		validate:    validator.New(),
		log:         log.With("module", "codeflow"),
		now:         time.Now,
	}
}

func (s *CodeFlowService) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: email: %w", common.ErrInvalidInput, err)
	}
	return nil
}

// SendCode asks the identity store to mail a code and, for a brand new
// signup, records the lead. Only malformed input is reported as an error;
// everything downstream degrades to a logged success.
func (s *CodeFlowService) SendCode(ctx context.Context, email string, attr conversion.Attribution) (*SendCodeResult, error) {
	email = normalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}

	if err := s.issuer.SendCode(ctx, email); err != nil {
		s.log.Error(ctx, "send code degraded: identity store failed", "email", email, "err", err)
	}

	p, err := s.resolver.Resolve(ctx, email)
	if err != nil {
		s.log.Warn(ctx, "send code degraded: profile unresolved, skipping conversion event", "email", email, "err", err)
		return &SendCodeResult{Success: true, Message: MessageSignupCodeSent}, nil
	}

	newSignup := p.MarketingFlag.RegistrationPending()
	if !newSignup {
		return &SendCodeResult{Success: true, Message: MessageLoginCodeSent}, nil
	}

	if p.MarketingFlag == models.MarketingUnset {
		repo := s.repomanager.Profiles(s.db)
		s.advance(ctx, repo, p, models.MarketingLead, conversion.EventLead, attr)
	}

	return &SendCodeResult{Success: true, Message: MessageSignupCodeSent, NewSignup: true}, nil
}

// VerifyCode checks code for email and issues a session token. The first
// successful verification completes registration.
func (s *CodeFlowService) VerifyCode(ctx context.Context, email, code string, attr conversion.Attribution) (*VerifyCodeResult, error) {
	email = normalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: code must be %d digits", common.ErrInvalidInput, common.VerificationCodeLength)
	}

	repo := s.repomanager.Profiles(s.db)
	p, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrProfileNotFound
		}
		return nil, fmt.Errorf("error reading profile: %w", err)
	}
	if !p.IsActive {
		return nil, common.ErrAccountInactive
	}

	if s.isBypass(code) {
		s.log.Warn(ctx, "ADMIN BYPASS CODE USED", "email", email, "ip", attr.IP, "user_agent", attr.UserAgent)
	} else {
		u, err := s.issuer.VerifyCode(ctx, email, code)
		if err != nil {
			if errors.Is(err, common.ErrInvalidCode) || errors.Is(err, common.ErrUpstreamUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
		}
		if u.ID != p.ID {
			s.log.Warn(ctx, "identity id differs from profile id", "email", email, "identity_id", u.ID, "profile_id", p.ID)
		}
	}

	firstSignIn := p.MarketingFlag.RegistrationPending()
	if p.MarketingFlag == models.MarketingUnset {
		s.advance(ctx, repo, p, models.MarketingLead, conversion.EventLead, attr)
	}
	if firstSignIn {
		// a concurrent send-code may have moved unset -> lead under us
		if p.MarketingFlag == models.MarketingUnset {
			p.MarketingFlag = models.MarketingLead
		}
		s.advance(ctx, repo, p, models.MarketingRegistered, conversion.EventCompleteRegistration, attr)
	}

	token, err := auth.GenerateToken(auth.Identity{
		ID:               p.ID,
		Email:            p.Email,
		Role:             p.Role,
		SubscriptionPlan: p.SubscriptionPlan,
	}, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	msg := MessageSignedIn
	if firstSignIn {
		msg = MessageRegistered
	}
	return &VerifyCodeResult{Success: true, Message: msg, User: p, Token: token}, nil
}

func (s *CodeFlowService) isBypass(code string) bool {
	return s.bypassCode != "" && subtle.ConstantTimeCompare([]byte(code), []byte(s.bypassCode)) == 1
}

// advance moves p's flag one step with a conditional update and submits the
// matching event only when this call performed the transition. Failures are
// logged and swallowed.
func (s *CodeFlowService) advance(ctx context.Context, repo profiles.Repository, p *models.Profile, to models.MarketingFlag, ev conversion.EventType, attr conversion.Attribution) bool {
	from := p.MarketingFlag
	if !from.CanAdvanceTo(to) {
		return false
	}

	ok, err := repo.AdvanceMarketingFlag(ctx, p.ID, from, to)
	if err != nil {
		s.log.Error(ctx, "marketing flag update failed", "id", p.ID, "from", from, "to", to, "err", err)
		return false
	}
	if !ok {
		s.log.Debug(ctx, "marketing flag already advanced elsewhere", "id", p.ID, "from", from, "to", to)
		return false
	}

	p.MarketingFlag = to
	s.events.Submit(ctx, conversion.NewProfileEvent(ev, p, attr, s.now()))
	return true
}
