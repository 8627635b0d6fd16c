package auth

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	"github.com/dropDatabas3/gatekeeper/internal/security/totp"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

var testHashParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func newTestUser(t *testing.T, uuid, username, email, pwd string) *repository.User {
	t.Helper()
	phc, err := password.Hash(testHashParams, pwd)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &repository.User{
		UUID:         uuid,
		Username:     username,
		Email:        email,
		PasswordHash: phc,
		IsActive:     true,
	}
}

func newSessionService(users *fakeUserRepo) (SessionService, SessionDeps) {
	deps := SessionDeps{
		Users:        users,
		Cache:        newTestCache(),
		Codec:        newTestCodec(),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		ChallengeTTL: 5 * time.Minute,
	}
	return NewSessionService(deps), deps
}

func TestSignIn_IssuesPair(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, deps := newSessionService(newFakeUserRepo(alice))

	res, err := svc.SignIn(context.Background(), dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if res.MFARequired {
		t.Fatalf("unexpected mfa challenge")
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}
	if res.ExpiresIn <= 0 {
		t.Fatalf("expires_in should be positive, got %d", res.ExpiresIn)
	}

	acl, err := deps.Codec.Decode(res.AccessToken, token.KindAccess)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	rcl, err := deps.Codec.Decode(res.RefreshToken, token.KindRefresh)
	if err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if acl.Subject != "u-alice" || rcl.Subject != "u-alice" {
		t.Fatalf("wrong subject")
	}
	if acl.JTI == rcl.JTI {
		t.Fatalf("access y refresh deben tener jti distintos")
	}
}

func TestSignIn_ByEmail(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, _ := newSessionService(newFakeUserRepo(alice))

	if _, err := svc.SignIn(context.Background(), dto.SignInRequest{Identifier: "alice@example.com", Password: "hunter22plus"}); err != nil {
		t.Fatalf("sign-in by email: %v", err)
	}
}

func TestSignIn_GenericInvalidCredentials(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, _ := newSessionService(newFakeUserRepo(alice))

	// Usuario inexistente y password incorrecto responden el mismo error
	_, errUnknown := svc.SignIn(context.Background(), dto.SignInRequest{Identifier: "nobody", Password: "whatever"})
	_, errBadPwd := svc.SignIn(context.Background(), dto.SignInRequest{Identifier: "alice", Password: "wrong"})

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", errUnknown)
	}
	if !errors.Is(errBadPwd, ErrInvalidCredentials) {
		t.Fatalf("bad password: got %v", errBadPwd)
	}
}

func TestSignIn_InactiveUser(t *testing.T) {
	bob := newTestUser(t, "u-bob", "bob", "bob@example.com", "hunter22plus")
	bob.IsActive = false
	svc, _ := newSessionService(newFakeUserRepo(bob))

	_, err := svc.SignIn(context.Background(), dto.SignInRequest{Identifier: "bob", Password: "hunter22plus"})
	if !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("got %v, want ErrInactiveUser", err)
	}

	// Con password incorrecto NO se revela que la cuenta existe pero está inactiva
	_, err = svc.SignIn(context.Background(), dto.SignInRequest{Identifier: "bob", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestSignIn_StoreUnavailable(t *testing.T) {
	repo := newFakeUserRepo()
	repo.unavailable = true
	svc, _ := newSessionService(repo)

	_, err := svc.SignIn(context.Background(), dto.SignInRequest{Identifier: "alice", Password: "x"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestSignIn_MFAChallenge(t *testing.T) {
	raw, b32, err := totp.GenerateSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	alice.MFAEnabled = true
	alice.MFASecret = strptr(b32)

	svc, _ := newSessionService(newFakeUserRepo(alice))
	ctx := context.Background()

	res, err := svc.SignIn(ctx, dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if !res.MFARequired || res.MFAToken == "" {
		t.Fatalf("expected mfa challenge, got %+v", res)
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatalf("no tokens should be issued before otp verification")
	}

	// Canjear el desafío con un OTP válido
	pair, err := svc.VerifyMFA(ctx, dto.VerifyMFARequest{MFAToken: res.MFAToken, OTP: totpNow(raw)})
	if err != nil {
		t.Fatalf("verify-mfa: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token pair after otp")
	}

	// El desafío es de un solo uso
	_, err = svc.VerifyMFA(ctx, dto.VerifyMFARequest{MFAToken: res.MFAToken, OTP: totpNow(raw)})
	if !errors.Is(err, ErrInvalidChallenge) {
		t.Fatalf("reused challenge: got %v, want ErrInvalidChallenge", err)
	}
}

func TestVerifyMFA_BadOTPPreservesChallenge(t *testing.T) {
	raw, b32, err := totp.GenerateSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	alice.MFAEnabled = true
	alice.MFASecret = strptr(b32)

	svc, _ := newSessionService(newFakeUserRepo(alice))
	ctx := context.Background()

	res, err := svc.SignIn(ctx, dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	// OTP incorrecto: error pero el desafío sigue vivo
	_, err = svc.VerifyMFA(ctx, dto.VerifyMFARequest{MFAToken: res.MFAToken, OTP: "000000"})
	if !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("got %v, want ErrInvalidOTP", err)
	}

	if _, err := svc.VerifyMFA(ctx, dto.VerifyMFARequest{MFAToken: res.MFAToken, OTP: totpNow(raw)}); err != nil {
		t.Fatalf("retry with valid otp: %v", err)
	}
}

func TestVerifyMFA_UnknownToken(t *testing.T) {
	svc, _ := newSessionService(newFakeUserRepo())
	_, err := svc.VerifyMFA(context.Background(), dto.VerifyMFARequest{MFAToken: "garbage", OTP: "123456"})
	if !errors.Is(err, ErrInvalidChallenge) {
		t.Fatalf("got %v, want ErrInvalidChallenge", err)
	}
}

func TestRefresh_IssuesNewAccess(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, deps := newSessionService(newFakeUserRepo(alice))
	ctx := context.Background()

	pair, err := svc.SignIn(ctx, dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	res, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatalf("expected new access token")
	}
	// El refresh no rota
	if res.RefreshToken != pair.RefreshToken {
		t.Fatalf("refresh token should not rotate")
	}

	cl, err := deps.Codec.Decode(res.AccessToken, token.KindAccess)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cl.Subject != "u-alice" {
		t.Fatalf("wrong subject %q", cl.Subject)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, _ := newSessionService(newFakeUserRepo(alice))
	ctx := context.Background()

	pair, err := svc.SignIn(ctx, dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	_, err = svc.Refresh(ctx, pair.AccessToken)
	if !errors.Is(err, token.ErrKindMismatch) {
		t.Fatalf("got %v, want ErrKindMismatch", err)
	}
}

func TestRefresh_RevokedToken(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, deps := newSessionService(newFakeUserRepo(alice))
	ctx := context.Background()

	pair, err := svc.SignIn(ctx, dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	revoker := NewRevokeService(RevokeDeps{Cache: deps.Cache, Codec: deps.Codec})
	if err := revoker.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("got %v, want ErrTokenRevoked", err)
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, deps := newSessionService(newFakeUserRepo(alice))

	expired, _, err := deps.Codec.Issue("u-alice", token.KindRefresh, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = svc.Refresh(context.Background(), expired)
	if !errors.Is(err, token.ErrExpired) {
		t.Fatalf("got %v, want ErrExpired", err)
	}
}

func TestRefresh_InactiveOrMissingUser(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	repo := newFakeUserRepo(alice)
	svc, _ := newSessionService(repo)
	ctx := context.Background()

	pair, err := svc.SignIn(ctx, dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	// Desactivar la cuenta después de emitir
	repo.users["u-alice"].IsActive = false
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("inactive: got %v", err)
	}

	// Borrar la cuenta
	delete(repo.users, "u-alice")
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestRefresh_PasswordChangeWatermark(t *testing.T) {
	alice := newTestUser(t, "u-alice", "alice", "alice@example.com", "hunter22plus")
	svc, deps := newSessionService(newFakeUserRepo(alice))
	ctx := context.Background()

	pair, err := svc.SignIn(ctx, dto.SignInRequest{Identifier: "alice", Password: "hunter22plus"})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	// Simular cambio de contraseña un segundo en el futuro del iat
	future := time.Now().Add(2 * time.Second).Unix()
	if err := deps.Cache.Set(ctx, keyPwdChanged+"u-alice", strconv.FormatInt(future, 10), time.Hour); err != nil {
		t.Fatalf("set watermark: %v", err)
	}

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("got %v, want ErrTokenRevoked", err)
	}
}
