package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"fmt"
	"math"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

// fakeUserRepo es un UserRepository en memoria para los tests.
type fakeUserRepo struct {
	users       map[string]*repository.User // por uuid
	unavailable bool
	updated     map[string]string // uuid -> último password hash persistido
}

func newFakeUserRepo(users ...*repository.User) *fakeUserRepo {
	m := make(map[string]*repository.User)
	for _, u := range users {
		m[u.UUID] = u
	}
	return &fakeUserRepo{users: m, updated: make(map[string]string)}
}

func (f *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*repository.User, error) {
	if f.unavailable {
		return nil, repository.ErrUnavailable
	}
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByUUID(_ context.Context, uuid string) (*repository.User, error) {
	if f.unavailable {
		return nil, repository.ErrUnavailable
	}
	if u, ok := f.users[uuid]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	if f.unavailable {
		return nil, repository.ErrUnavailable
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, uuid, passwordHash, _ string) error {
	if f.unavailable {
		return repository.ErrUnavailable
	}
	u, ok := f.users[uuid]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.updated[uuid] = passwordHash
	return nil
}

// fakeMembershipRepo resuelve membresías desde un map user|service.
type fakeMembershipRepo struct {
	memberships map[string]*repository.Membership // "user|service"
	services    map[string]bool                   // servicios existentes
	unavailable bool
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{
		memberships: make(map[string]*repository.Membership),
		services:    make(map[string]bool),
	}
}

func (f *fakeMembershipRepo) addService(serviceUUID string) {
	f.services[serviceUUID] = true
}

func (f *fakeMembershipRepo) addMembership(userUUID, serviceUUID string, m *repository.Membership) {
	f.services[serviceUUID] = true
	f.memberships[userUUID+"|"+serviceUUID] = m
}

func (f *fakeMembershipRepo) GetForUserService(_ context.Context, userUUID, serviceUUID string) (*repository.Membership, error) {
	if f.unavailable {
		return nil, repository.ErrUnavailable
	}
	if !f.services[serviceUUID] {
		return nil, repository.ErrServiceNotFound
	}
	if m, ok := f.memberships[userUUID+"|"+serviceUUID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

// hotp replica RFC 4226 para generar códigos válidos en los tests de MFA.
func hotp(secret []byte, counter int64) string {
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	m := hmac.New(sha1.New, secret)
	_, _ = m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 | int(sum[offset+1])<<16 | int(sum[offset+2])<<8 | int(sum[offset+3])
	return fmt.Sprintf("%06d", bin%int(math.Pow10(6)))
}

func totpNow(secret []byte) string {
	return hotp(secret, time.Now().Unix()/30)
}

func newTestCodec() *token.Codec {
	return token.NewCodec("gatekeeper-test", "0123456789abcdef0123456789abcdef")
}

func newTestCache() cache.Store {
	return cache.NewMemory("")
}

func strptr(s string) *string { return &s }
