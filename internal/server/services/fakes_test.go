package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/dbx"
	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/dmitrijs2005/photoai/internal/server/conversion"
	"github.com/dmitrijs2005/photoai/internal/server/identity"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/creditgrants"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/profiles"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// memStore backs both fake repositories. Conditional updates and marker
// inserts are atomic under mu, like the real unique key and WHERE clause.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	grants   map[string]*models.CreditGrant

	hiddenReads   int // GetByEmail reports not found this many times first
	emailReads    int
	createCalls   int
	createErr     error
	getErr        error
	advanceErr    error
	advanceCalls  int
	addCreditsErr error
}

func newMemStore(ps ...*models.Profile) *memStore {
	s := &memStore{
		profiles: map[string]*models.Profile{},
		grants:   map[string]*models.CreditGrant{},
	}
	for _, p := range ps {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *memStore) profile(id string) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.profiles[id]
}

type memProfiles struct{ s *memStore }

func (r *memProfiles) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailReads++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.emailReads <= s.hiddenReads {
		return nil, common.ErrorNotFound
	}
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProfiles) Create(_ context.Context, p *models.Profile) (*models.Profile, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, ok := s.profiles[p.ID]; ok {
		return nil, fmt.Errorf("%w: duplicate id", common.ErrorAlreadyExists)
	}
	cp := *p
	cp.Role = common.RoleUser
	cp.SubscriptionPlan = "free"
	cp.CreatedAt = time.Now()
	s.profiles[p.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memProfiles) AdvanceMarketingFlag(_ context.Context, id string, from, to models.MarketingFlag) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceCalls++
	if s.advanceErr != nil {
		return false, s.advanceErr
	}
	p, ok := s.profiles[id]
	if !ok || p.MarketingFlag != from {
		return false, nil
	}
	p.MarketingFlag = to
	return true, nil
}

func (r *memProfiles) AddCredits(_ context.Context, id string, amount int64) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addCreditsErr != nil {
		return 0, s.addCreditsErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	p.CreditsTotal += amount
	return p.CreditsTotal, nil
}

type memGrants struct{ s *memStore }

func (r *memGrants) Insert(_ context.Context, g *models.CreditGrant) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.SessionID]; ok {
		return false, nil
	}
	cp := *g
	s.grants[g.SessionID] = &cp
	return true, nil
}

func (r *memGrants) Find(_ context.Context, sessionID string) (*models.CreditGrant, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[sessionID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return g, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository         { return &memProfiles{m.s} }
func (m *fakeRepoManager) CreditGrants(dbx.DBTX) creditgrants.Repository { return &memGrants{m.s} }

type fakeIssuer struct {
	mu          sync.Mutex
	users       map[string]string // email -> id
	sendErr     error
	verifyErr   error
	lookupErr   error
	sendCalls   int
	verifyCalls int
	lookupCalls int
}

func (f *fakeIssuer) SendCode(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	return f.sendErr
}

func (f *fakeIssuer) VerifyCode(_ context.Context, email, _ string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &identity.User{ID: f.users[email], Email: email}, nil
}

func (f *fakeIssuer) LookupUser(_ context.Context, email string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	id, ok := f.users[email]
	if !ok {
		return nil, common.ErrIdentityNotFound
	}
	return &identity.User{ID: id, Email: email}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []conversion.Event
}

func (f *fakeSink) Submit(_ context.Context, e conversion.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return true
}

func (f *fakeSink) count(t conversion.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fakeVerifier struct {
	mu       sync.Mutex
	sessions map[string]*models.PaymentSession
	err      error
	calls    int
}

func (f *fakeVerifier) GetSession(_ context.Context, id string) (*models.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: no such session", common.ErrUpstreamUnavailable)
	}
	cp := *s
	return &cp, nil
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recLogger records entries so tests can assert on loud log lines.
type recLogger struct {
	mu      sync.Mutex
	entries *[]logEntry
}

func newRecLogger() *recLogger { return &recLogger{entries: &[]logEntry{}} }

func (l *recLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recLogger) Debug(_ context.Context, msg string, args ...any) { l.add("DEBUG", msg, args) }
func (l *recLogger) Info(_ context.Context, msg string, args ...any)  { l.add("INFO", msg, args) }
func (l *recLogger) Warn(_ context.Context, msg string, args ...any)  { l.add("WARN", msg, args) }
func (l *recLogger) Error(_ context.Context, msg string, args ...any) { l.add("ERROR", msg, args) }
func (l *recLogger) With(...any) logging.Logger                       { return l }

func (l *recLogger) find(level, substr string) *logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range *l.entries {
		if e.level == level && strings.Contains(e.msg, substr) {
			return &(*l.entries)[i]
		}
	}
	return nil
}
