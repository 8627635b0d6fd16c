package email

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	texttpl "text/template"
)

type Templates struct {
	ResetHTML *template.Template
	ResetTXT  *texttpl.Template
}

type ResetVars struct {
	Username string
	Link     string
	TTL      string
}

func LoadTemplates(dir string) (*Templates, error) {
	read := func(name string) (string, error) {
		b, err := os.ReadFile(filepath.Join(dir, name))
		return string(b), err
	}
	rh, err := read("reset_password.html")
	if err != nil {
		return nil, err
	}
	rt, err := read("reset_password.txt")
	if err != nil {
		return nil, err
	}

	rhT, err := template.New("reset_html").Parse(rh)
	if err != nil {
		return nil, err
	}
	rtT, err := texttpl.New("reset_txt").Parse(rt)
	if err != nil {
		return nil, err
	}

	return &Templates{ResetHTML: rhT, ResetTXT: rtT}, nil
}

// RenderReset produce los dos cuerpos (html, txt) del correo de reset.
func (t *Templates) RenderReset(vars ResetVars) (string, string, error) {
	var hb, tb bytes.Buffer
	if err := t.ResetHTML.Execute(&hb, vars); err != nil {
		return "", "", err
	}
	if err := t.ResetTXT.Execute(&tb, vars); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
