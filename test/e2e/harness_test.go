package e2e

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	htmltpl "html/template"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	texttpl "text/template"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/email"
	authctrl "github.com/dropDatabas3/gatekeeper/internal/http/controllers/auth"
	"github.com/dropDatabas3/gatekeeper/internal/http/router"
	svc "github.com/dropDatabas3/gatekeeper/internal/http/services/auth"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	"github.com/dropDatabas3/gatekeeper/internal/security/totp"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

// Params chicos para que la suite no queme CPU en argon2.
var testHashParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

// ---------- fakes del Credential Store ----------

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*repository.User // por uuid
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*repository.User)}
}

func (f *fakeUsers) add(u *repository.User) { f.users[u.UUID] = u }

func (f *fakeUsers) GetByIdentifier(_ context.Context, identifier string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByUUID(_ context.Context, uuid string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[uuid]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, emailAddr string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == emailAddr {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) UpdatePassword(_ context.Context, uuid, passwordHash, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uuid]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

type fakeMemberships struct {
	services    map[string]struct{}               // service uuid existe
	memberships map[string]*repository.Membership // "user|service"
}

func newFakeMemberships() *fakeMemberships {
	return &fakeMemberships{
		services:    make(map[string]struct{}),
		memberships: make(map[string]*repository.Membership),
	}
}

func (f *fakeMemberships) addService(uuid string) { f.services[uuid] = struct{}{} }

func (f *fakeMemberships) addMembership(userUUID string, m *repository.Membership) {
	f.services[m.ServiceUUID] = struct{}{}
	f.memberships[userUUID+"|"+m.ServiceUUID] = m
}

func (f *fakeMemberships) GetForUserService(_ context.Context, userUUID, serviceUUID string) (*repository.Membership, error) {
	if _, ok := f.services[serviceUUID]; !ok {
		return nil, repository.ErrServiceNotFound
	}
	if m, ok := f.memberships[userUUID+"|"+serviceUUID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

// ---------- correo capturado ----------

type captureSender struct {
	mu   sync.Mutex
	last struct {
		To, Subject, Text string
	}
}

func (c *captureSender) Send(to, subject, _ string, textBody string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last.To, c.last.Subject, c.last.Text = to, subject, textBody
	return nil
}

func (c *captureSender) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Text
}

// resetTokenFromMail extrae el token del link del correo capturado.
func resetTokenFromMail(t *testing.T, text string) string {
	t.Helper()
	i := strings.Index(text, "token=")
	if i < 0 {
		t.Fatalf("correo sin token: %q", text)
	}
	tok := text[i+len("token="):]
	if j := strings.IndexAny(tok, " \r\n"); j >= 0 {
		tok = tok[:j]
	}
	return tok
}

// ---------- entorno ----------

type env struct {
	srv         *httptest.Server
	users       *fakeUsers
	memberships *fakeMemberships
	sender      *captureSender
	store       cache.Store
}

type envOpts struct {
	limiter rate.Limiter
}

func newEnv(t *testing.T, opts envOpts) *env {
	t.Helper()

	users := newFakeUsers()
	memberships := newFakeMemberships()
	store := cache.NewMemory("")
	codec := token.NewCodec("gatekeeper-e2e", "0123456789abcdef0123456789abcdef")
	sender := &captureSender{}

	tpls := &email.Templates{
		ResetHTML: htmltpl.Must(htmltpl.New("h").Parse(`<a href="{{.Link}}">reset</a>`)),
		ResetTXT:  texttpl.Must(texttpl.New("t").Parse("Hola {{.Username}}: {{.Link}} (vence en {{.TTL}})")),
	}

	session := svc.NewSessionService(svc.SessionDeps{
		Users:      users,
		Cache:      store,
		Codec:      codec,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	verify := svc.NewVerifyService(svc.VerifyDeps{
		Users:       users,
		Memberships: memberships,
		Cache:       store,
		Codec:       codec,
	})
	revoke := svc.NewRevokeService(svc.RevokeDeps{Cache: store, Codec: codec})
	reset := svc.NewResetService(svc.ResetDeps{
		Users:      users,
		Cache:      store,
		Sender:     sender,
		Templates:  tpls,
		BaseURL:    "http://gatekeeper.test",
		ResetTTL:   10 * time.Minute,
		RefreshTTL: time.Hour,
		Policy:     password.Policy{MinLength: 8},
		Hasher:     testHashParams,
	})

	handler := router.New(router.Deps{
		Auth:      authctrl.New(session, verify, revoke, reset),
		RateLimit: opts.limiter,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &env{srv: srv, users: users, memberships: memberships, sender: sender, store: store}
}

func (e *env) seedUser(t *testing.T, uuid, username, emailAddr, plainPwd string, mfa bool) (secretB32 string) {
	t.Helper()
	hash, err := password.Hash(testHashParams, plainPwd)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &repository.User{
		UUID:         uuid,
		Username:     username,
		Email:        emailAddr,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if mfa {
		_, b32, err := totp.GenerateSecret()
		if err != nil {
			t.Fatalf("totp secret: %v", err)
		}
		u.MFAEnabled = true
		u.MFASecret = &b32
		secretB32 = b32
	}
	e.users.add(u)
	return secretB32
}

// ---------- HTTP helpers ----------

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body *strings.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = strings.NewReader(string(b))
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()
	var wrapper envelope
	if err := json.Unmarshal(body, &wrapper); err != nil {
		t.Fatalf("envelope: %v (%s)", err, body)
	}
	if out != nil {
		if err := json.Unmarshal(wrapper.Data, out); err != nil {
			t.Fatalf("data: %v (%s)", err, wrapper.Data)
		}
	}
}

// ---------- TOTP de referencia (RFC 6238, SHA-1, 6 dígitos, 30s) ----------

func totpCode(t *testing.T, secretB32 string, at time.Time) string {
	t.Helper()
	secret, err := totp.DecodeSecret(secretB32)
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	counter := uint64(at.Unix() / 30)
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)
	off := sum[len(sum)-1] & 0x0f
	bin := (int(sum[off])&0x7f)<<24 | int(sum[off+1])<<16 | int(sum[off+2])<<8 | int(sum[off+3])
	code := bin % int(math.Pow10(6))
	s := strconv.Itoa(code)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}
