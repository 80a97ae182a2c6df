package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/murichu/go-auth-service/internal/common"
	"github.com/murichu/go-auth-service/internal/dbx"
	"github.com/murichu/go-auth-service/internal/server/auth"
	"github.com/murichu/go-auth-service/internal/server/config"
	"github.com/murichu/go-auth-service/internal/server/models"
	"github.com/murichu/go-auth-service/internal/server/otp"
	"github.com/murichu/go-auth-service/internal/server/repositories/repomanager"
	usersrepo "github.com/murichu/go-auth-service/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

// fakeUsersRepo keeps records in memory and hands out copies, so mutations
// only stick after Update, same as the real repository.
type fakeUsersRepo struct {
	byID map[string]*models.User

	createErr error
	getErr    error
	updateErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: make(map[string]*models.User)}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	cp := *u
	f.byID[u.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[u.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sends []sentMail
	err   error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

// testClock lets tests move time forward past OTP cooldowns and expiries.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newAuthService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager, fm *fakeMailer, clk *testClock) *AuthService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    "k",
		SessionTokenValidityDuration: time.Hour,
		OTPValidityDuration:          otp.DefaultTTL,
		OTPResendCooldown:            otp.DefaultCooldown,
	}
	engine := otp.NewEngineWithClock(cfg.OTPResendCooldown, cfg.OTPValidityDuration, clk.Now)
	s := NewAuthService(db, rm, engine, fm, cfg)
	s.now = clk.Now
	return s
}

var otpCodeRe = regexp.MustCompile(`\d{6}`)

func lastMailCode(t *testing.T, fm *fakeMailer) string {
	t.Helper()
	if len(fm.sends) == 0 {
		t.Fatal("no mail sent")
	}
	code := otpCodeRe.FindString(fm.sends[len(fm.sends)-1].body)
	if code == "" {
		t.Fatal("no otp code in mail body")
	}
	return code
}

func seedUser(rm *fakeRepoManager, email, password, sessionID string) *models.User {
	hash, _ := auth.HashPassword(password)
	u := &models.User{
		ID:               "u1",
		Email:            email,
		Name:             "Alice",
		PasswordHash:     hash,
		CurrentSessionID: sessionID,
		CreatedAt:        time.Now(),
	}
	rm.u.byID[u.ID] = u
	return u
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{}
	s := newAuthService(t, db, rm, fm, &testClock{t: time.Now()})

	token, err := s.Register(context.Background(), "Alice", "alice@example.com", "Str0ng&Secret!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	user, err := rm.u.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("stored user not found: %v", err)
	}
	if user.PasswordHash == "Str0ng&Secret!" || user.PasswordHash == "" {
		t.Fatal("password stored in plaintext or missing")
	}
	if !auth.CheckPasswordHash(user.PasswordHash, "Str0ng&Secret!") {
		t.Fatal("stored hash does not match password")
	}
	if user.CurrentSessionID == "" {
		t.Fatal("no session opened")
	}
	if user.IsAccountVerified {
		t.Fatal("account must start unverified")
	}

	uid, sid, err := auth.ParseToken(token, []byte("k"))
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if uid != user.ID || sid != user.CurrentSessionID {
		t.Fatalf("token claims mismatch: uid=%s sid=%s", uid, sid)
	}

	if len(fm.sends) != 1 || fm.sends[0].to != "alice@example.com" {
		t.Fatalf("expected one welcome mail, got %+v", fm.sends)
	}
}

func TestRegister_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		want     error
	}{
		{"missing name", "", "a@b.com", "Str0ng&Secret!", common.ErrMissingFields},
		{"missing email", "Alice", "", "Str0ng&Secret!", common.ErrMissingFields},
		{"missing password", "Alice", "a@b.com", "", common.ErrMissingFields},
		{"bad email", "Alice", "not-an-email", "Str0ng&Secret!", common.ErrInvalidEmail},
		{"short password", "Alice", "a@b.com", "Sh0rt&!", common.ErrWeakPassword},
		{"no digit", "Alice", "a@b.com", "NoDigits&Here!", common.ErrWeakPassword},
		{"no symbol", "Alice", "a@b.com", "NoSymbols123", common.ErrWeakPassword},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Register(ctx, tc.userName, tc.email, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})
	ctx := context.Background()

	if _, err := s.Register(ctx, "Alice", "alice@example.com", "Str0ng&Secret!"); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	if _, err := s.Register(ctx, "Bob", "Alice@Example.COM", "An0ther&Secret!"); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}

func TestRegister_MailFailureKeepsAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{err: errors.New("smtp down")}
	s := newAuthService(t, db, rm, fm, &testClock{t: time.Now()})

	token, err := s.Register(context.Background(), "Alice", "alice@example.com", "Str0ng&Secret!")
	if !errors.Is(err, common.ErrEmailDelivery) {
		t.Fatalf("got %v, want ErrEmailDelivery", err)
	}
	if token == "" {
		t.Fatal("session token must still be handed out on mail failure")
	}
	if _, err := s.ValidateToken(context.Background(), token); err != nil {
		t.Fatalf("token after mail failure must validate: %v", err)
	}
	if _, err := rm.u.GetByEmail(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("account must survive mail failure: %v", err)
	}
}

// --- Login / sessions ---

func TestLogin_RotatesSessionAndInvalidatesOldToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})
	ctx := context.Background()

	oldToken, err := s.Register(ctx, "Alice", "alice@example.com", "Str0ng&Secret!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := s.ValidateToken(ctx, oldToken); err != nil {
		t.Fatalf("fresh token must validate: %v", err)
	}

	newToken, err := s.Login(ctx, "alice@example.com", "Str0ng&Secret!")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if _, err := s.ValidateToken(ctx, newToken); err != nil {
		t.Fatalf("new token must validate: %v", err)
	}
	if _, err := s.ValidateToken(ctx, oldToken); !errors.Is(err, common.ErrSessionMismatch) {
		t.Fatalf("old token after re-login: got %v, want ErrSessionMismatch", err)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})
	ctx := context.Background()

	if _, err := s.Login(ctx, "nobody@example.com", "Str0ng&Secret!"); !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Login(ctx, "", ""); !errors.Is(err, common.ErrMissingFields) {
		t.Fatalf("empty credentials: got %v, want ErrMissingFields", err)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})
	ctx := context.Background()

	token, err := s.Register(ctx, "Alice", "alice@example.com", "Str0ng&Secret!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	session, err := s.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}

	if err := s.Logout(ctx, session); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	user, _ := rm.u.GetByID(ctx, session.UserID)
	if user.CurrentSessionID != "" {
		t.Fatalf("session not cleared: %q", user.CurrentSessionID)
	}

	// logging out twice is a no-op
	if err := s.Logout(ctx, session); err != nil {
		t.Fatalf("repeated Logout error: %v", err)
	}
}

func TestLogout_SessionMismatch(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-current")
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})

	err := s.Logout(context.Background(), Session{UserID: "u1", SessionID: "sess-stale"})
	if !errors.Is(err, common.ErrSessionMismatch) {
		t.Fatalf("got %v, want ErrSessionMismatch", err)
	}
}

func TestValidateToken_UserGone(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})
	ctx := context.Background()

	token, err := s.Register(ctx, "Alice", "alice@example.com", "Str0ng&Secret!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	for id := range rm.u.byID {
		delete(rm.u.byID, id)
	}

	if _, err := s.ValidateToken(ctx, token); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

// --- account verification ---

func TestVerifyEmail_FullFlow(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{}
	clk := &testClock{t: time.Now()}
	s := newAuthService(t, db, rm, fm, clk)
	ctx := context.Background()

	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")

	if err := s.SendVerifyOtp(ctx, "u1"); err != nil {
		t.Fatalf("SendVerifyOtp error: %v", err)
	}
	code := lastMailCode(t, fm)

	if err := s.VerifyEmail(ctx, "u1", code); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}
	user, _ := rm.u.GetByID(ctx, "u1")
	if !user.IsAccountVerified {
		t.Fatal("account not marked verified")
	}
	if user.VerifyOtpHash != "" || user.VerifyOtpExpireAt != 0 {
		t.Fatal("otp not consumed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("tx expectations: %v", err)
	}
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{}
	s := newAuthService(t, db, rm, fm, &testClock{t: time.Now()})
	ctx := context.Background()

	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	if err := s.SendVerifyOtp(ctx, "u1"); err != nil {
		t.Fatalf("SendVerifyOtp error: %v", err)
	}

	if err := s.VerifyEmail(ctx, "u1", "000000"); !errors.Is(err, common.ErrOTPInvalid) {
		t.Fatalf("got %v, want ErrOTPInvalid", err)
	}
	user, _ := rm.u.GetByID(ctx, "u1")
	if user.IsAccountVerified {
		t.Fatal("wrong code must not verify")
	}
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{}
	clk := &testClock{t: time.Now()}
	s := newAuthService(t, db, rm, fm, clk)
	ctx := context.Background()

	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	if err := s.SendVerifyOtp(ctx, "u1"); err != nil {
		t.Fatalf("SendVerifyOtp error: %v", err)
	}
	code := lastMailCode(t, fm)

	clk.Advance(16 * time.Minute)
	if err := s.VerifyEmail(ctx, "u1", code); !errors.Is(err, common.ErrOTPExpired) {
		t.Fatalf("got %v, want ErrOTPExpired", err)
	}
}

func TestSendVerifyOtp_AlreadyVerified(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	u := seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	u.IsAccountVerified = true
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})

	if err := s.SendVerifyOtp(context.Background(), "u1"); !errors.Is(err, common.ErrAlreadyVerified) {
		t.Fatalf("got %v, want ErrAlreadyVerified", err)
	}
}

func TestSendVerifyOtp_ResendCooldown(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{}
	clk := &testClock{t: time.Now()}
	s := newAuthService(t, db, rm, fm, clk)
	ctx := context.Background()

	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	if err := s.SendVerifyOtp(ctx, "u1"); err != nil {
		t.Fatalf("first send error: %v", err)
	}

	clk.Advance(time.Minute)
	err := s.SendVerifyOtp(ctx, "u1")
	if !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	var rl *otp.RateLimitError
	if !errors.As(err, &rl) || rl.WaitMinutes() != 2 {
		t.Fatalf("wait minutes: got %v", err)
	}

	clk.Advance(2 * time.Minute)
	if err := s.SendVerifyOtp(ctx, "u1"); err != nil {
		t.Fatalf("send after cooldown error: %v", err)
	}
	if len(fm.sends) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(fm.sends))
	}
}

// --- password reset ---

func TestResetPassword_FullFlow(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{}
	s := newAuthService(t, db, rm, fm, &testClock{t: time.Now()})
	ctx := context.Background()

	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")

	if err := s.SendResetOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("SendResetOtp error: %v", err)
	}
	code := lastMailCode(t, fm)

	if err := s.ResetPassword(ctx, "alice@example.com", code, "NewStr0ng&Pass!", "NewStr0ng&Pass!"); err != nil {
		t.Fatalf("ResetPassword error: %v", err)
	}

	if _, err := s.Login(ctx, "alice@example.com", "Str0ng&Secret!"); !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := s.Login(ctx, "alice@example.com", "NewStr0ng&Pass!"); err != nil {
		t.Fatalf("new password must work: %v", err)
	}

	user, _ := rm.u.GetByID(ctx, "u1")
	if user.ResetOtpHash != "" || user.ResetOtpExpireAt != 0 {
		t.Fatal("reset otp not consumed")
	}
}

func TestResetPassword_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})
	ctx := context.Background()

	tests := []struct {
		name    string
		email   string
		code    string
		pass    string
		confirm string
		want    error
	}{
		{"missing email", "", "123456", "NewStr0ng&Pass!", "NewStr0ng&Pass!", common.ErrMissingFields},
		{"missing code", "alice@example.com", "", "NewStr0ng&Pass!", "NewStr0ng&Pass!", common.ErrMissingFields},
		{"mismatch", "alice@example.com", "123456", "NewStr0ng&Pass!", "Different&Pass1", common.ErrPasswordMismatch},
		{"weak", "alice@example.com", "123456", "weakpass", "weakpass", common.ErrWeakPassword},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.ResetPassword(ctx, tc.email, tc.code, tc.pass, tc.confirm); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestResetPassword_WrongCode(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	fm := &fakeMailer{}
	s := newAuthService(t, db, rm, fm, &testClock{t: time.Now()})
	ctx := context.Background()

	seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	if err := s.SendResetOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("SendResetOtp error: %v", err)
	}

	err := s.ResetPassword(ctx, "alice@example.com", "000000", "NewStr0ng&Pass!", "NewStr0ng&Pass!")
	if !errors.Is(err, common.ErrOTPInvalid) {
		t.Fatalf("got %v, want ErrOTPInvalid", err)
	}
	if _, err := s.Login(ctx, "alice@example.com", "Str0ng&Secret!"); err != nil {
		t.Fatalf("old password must still work: %v", err)
	}
}

func TestSendResetOtp_UnknownEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})

	if err := s.SendResetOtp(context.Background(), "nobody@example.com"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

// --- profile ---

func TestGetProfile(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: newFakeUsersRepo()}
	u := seedUser(rm, "alice@example.com", "Str0ng&Secret!", "sess-1")
	u.IsAccountVerified = true
	s := newAuthService(t, db, rm, &fakeMailer{}, &testClock{t: time.Now()})

	p, err := s.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if p.Name != "Alice" || !p.IsAccountVerified {
		t.Fatalf("unexpected profile: %+v", p)
	}

	if _, err := s.GetProfile(context.Background(), "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
