// Package token implementa el códec de JWTs del servicio: emisión y
// decodificación HS256 con secreto compartido inyectado. La verificación es
// local (firma + expiración), sin round-trip de red; el estado de revocación
// se consulta aparte contra el store efímero.
package token

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distingue los tipos de token emitidos. Viaja como claim firmado
// ("kind") y se chequea en decode: un refresh nunca puede presentarse como
// access ni al revés.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Errores de decodificación. El Access Verifier los propaga sin mapear.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
	ErrKindMismatch = errors.New("token kind mismatch")
)

// Claims son los claims propios que carga cada token emitido.
// Deliberadamente mínimos: nunca embebemos datos de servicio/rol en el token
// para reducir exposición; la autorización por servicio se resuelve en
// verify-token contra el Credential Store.
type Claims struct {
	Subject   string // UUID del usuario
	JTI       string // identificador único del token, clave de revocación
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec firma y verifica tokens con un secreto simétrico inyectado
// (nunca un singleton de proceso: cada test puede usar su propio secreto).
type Codec struct {
	Issuer string
	secret []byte
}

// NewCodec crea un códec con el secreto compartido dado.
func NewCodec(issuer, secret string) *Codec {
	return &Codec{Issuer: issuer, secret: []byte(secret)}
}

// Issue emite un token firmado del kind dado con TTL relativo a ahora.
// Cada emisión genera un jti fresco: dos tokens del mismo sujeto en el mismo
// instante siguen siendo distinguibles para la blacklist.
func (c *Codec) Issue(subject string, kind Kind, ttl time.Duration) (string, *Claims, error) {
	now := time.Now().UTC()
	cl := &Claims{
		Subject:   subject,
		JTI:       uuid.NewString(),
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	mc := jwtv5.MapClaims{
		"iss":  c.Issuer,
		"sub":  cl.Subject,
		"jti":  cl.JTI,
		"kind": string(cl.Kind),
		"iat":  cl.IssuedAt.Unix(),
		"nbf":  cl.IssuedAt.Unix(),
		"exp":  cl.ExpiresAt.Unix(),
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, mc)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return signed, cl, nil
}

// Decode verifica firma y expiración y exige el kind esperado.
func (c *Codec) Decode(raw string, expect Kind) (*Claims, error) {
	cl, err := c.DecodeAny(raw)
	if err != nil {
		return nil, err
	}
	if cl.Kind != expect {
		return nil, ErrKindMismatch
	}
	return cl, nil
}

// DecodeAny verifica firma y expiración sin exigir un kind concreto.
// Lo usa el Revocation Manager: access y refresh son ambos revocables.
func (c *Codec) DecodeAny(raw string) (*Claims, error) {
	mc := jwtv5.MapClaims{}
	_, err := jwtv5.ParseWithClaims(raw, mc, func(t *jwtv5.Token) (any, error) {
		return c.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, mapParseError(err)
	}

	cl, err := claimsFromMap(mc)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// mapParseError traduce los errores de jwtv5 a los kinds del códec.
// Ningún error interno de la librería cruza este boundary.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwtv5.ErrTokenNotValidYet):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

func claimsFromMap(mc jwtv5.MapClaims) (*Claims, error) {
	sub, _ := mc["sub"].(string)
	jti, _ := mc["jti"].(string)
	kind, _ := mc["kind"].(string)
	if sub == "" || jti == "" || kind == "" {
		return nil, ErrMalformed
	}
	switch Kind(kind) {
	case KindAccess, KindRefresh:
	default:
		return nil, ErrMalformed
	}

	iat, err := numericTime(mc, "iat")
	if err != nil {
		return nil, err
	}
	exp, err := numericTime(mc, "exp")
	if err != nil {
		return nil, err
	}

	return &Claims{
		Subject:   sub,
		JTI:       jti,
		Kind:      Kind(kind),
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

func numericTime(mc jwtv5.MapClaims, key string) (time.Time, error) {
	v, ok := mc[key]
	if !ok {
		return time.Time{}, ErrMalformed
	}
	f, ok := v.(float64)
	if !ok {
		return time.Time{}, ErrMalformed
	}
	return time.Unix(int64(f), 0).UTC(), nil
}
