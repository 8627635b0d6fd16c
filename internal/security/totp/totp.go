package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

const (
	// período de 30s, 6 dígitos, SHA1 (RFC 6238, compatible con authenticators)
	periodSeconds = 30
	digits        = 6
)

// GenerateSecret retorna 20 bytes base32 sin padding (RFC 3548).
func GenerateSecret() (raw []byte, b32 string, err error) {
	raw = make([]byte, 20)
	_, err = rand.Read(raw)
	if err != nil {
		return nil, "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	return raw, enc, nil
}

// DecodeSecret decodifica el secreto base32 tal como se persiste en el
// Credential Store.
func DecodeSecret(b32 string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(b32))
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
}

// OTPAuthURL construye otpauth:// para QR (enrolamiento; fuera del core).
func OTPAuthURL(issuer, accountName, secretB32 string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, accountName))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", digits))
	q.Set("period", fmt.Sprintf("%d", periodSeconds))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

// Verify chequea el código TOTP en ventana de ±windowSteps pasos
// (default 1: tolera un paso de clock skew hacia cada lado).
func Verify(secretRaw []byte, code string, t time.Time, windowSteps int) bool {
	code = strings.TrimSpace(code)
	if len(code) != digits {
		return false
	}
	if windowSteps < 0 {
		windowSteps = 1
	}
	counter := t.Unix() / periodSeconds
	for c := counter - int64(windowSteps); c <= counter+int64(windowSteps); c++ {
		if gen(secretRaw, c) == code {
			return true
		}
	}
	return false
}

func gen(secretRaw []byte, counter int64) string {
	// HOTP(K, C) con HMAC-SHA1 (RFC 4226 / 6238)
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	m := hmac.New(sha1.New, secretRaw)
	_, _ = m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 | int(sum[offset+1])<<16 | int(sum[offset+2])<<8 | int(sum[offset+3])
	otp := bin % int(math.Pow10(digits))
	return fmt.Sprintf("%06d", otp)
}
