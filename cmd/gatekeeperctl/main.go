// gatekeeperctl: CLI de operación contra un gatekeeper corriendo.
// Sirve para smoke-tests y tareas de soporte (verificar/revocar tokens).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("GATEKEEPER_URL", "http://localhost:8080")
		out     = envOr("GATEKEEPER_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "gatekeeperctl",
		Short: "CLI de operación para gatekeeper",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env GATEKEEPER_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, OutFormat: out, HTTP: &http.Client{Timeout: timeout}}
	// Los flags se parsean después de construir cl; refrescamos antes de cada run.
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cl.BaseURL = baseURL
		cl.OutFormat = out
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Chequea liveness y readiness del servicio",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/readyz", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("readyz fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	var verifyService string
	verifyCmd := &cobra.Command{
		Use:   "verify-token <access-token>",
		Short: "Verifica un access token y muestra el snapshot de identidad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"token": args[0]}
			if verifyService != "" {
				payload["service_id"] = verifyService
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/api/v1/auth/verify-token", b)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status/100 != 2 {
				os.Exit(1)
			}
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&verifyService, "service", "", "UUID del service para resolver membresía")

	signOutCmd := &cobra.Command{
		Use:   "sign-out <access-token> [refresh-token]",
		Short: "Revoca un access token (y opcionalmente su refresh)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"access_token": args[0]}
			if len(args) == 2 {
				payload["refresh_token"] = args[1]
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("DELETE", "/api/v1/auth/sign-out", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("sign-out fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("revoked")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	var identifier string
	signInCmd := &cobra.Command{
		Use:   "sign-in",
		Short: "Inicia sesión y muestra el par de tokens (lee el password de stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identifier == "" {
				return fmt.Errorf("--identifier es requerido")
			}
			pw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			payload := map[string]string{
				"identifier": identifier,
				"password":   strings.TrimRight(string(pw), "\r\n"),
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/api/v1/auth/sign-in", b)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status/100 != 2 {
				os.Exit(1)
			}
			return nil
		},
	}
	signInCmd.Flags().StringVar(&identifier, "identifier", "", "Username o email")

	root.AddCommand(pingCmd, verifyCmd, signOutCmd, signInCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
