package password

import "strings"

// Policy valida passwords nuevas (reset). El mínimo del servicio es 8.
type Policy struct {
	MinLength int
}

func (p Policy) Validate(username, pwd string) (ok bool, reasons []string) {
	min := p.MinLength
	if min <= 0 {
		min = 8
	}
	if len([]rune(pwd)) < min {
		reasons = append(reasons, "too_short")
	}
	// No aceptamos la password igual (o conteniendo) al username.
	if username != "" && strings.Contains(strings.ToLower(pwd), strings.ToLower(username)) {
		reasons = append(reasons, "too_similar_to_username")
	}
	return len(reasons) == 0, reasons
}
