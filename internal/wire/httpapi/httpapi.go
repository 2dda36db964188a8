// Package httpapi is the JSON/HTTP transport binding spec.md's AgentAPI,
// OrchestratorAPI, register update calls, and controller-to-orchestrator
// calls to wire format. echo.Echo server-side routing is ported from the
// teacher's cmd/orchestrator/routes + handlers layering; grpc was
// deliberately not adopted (DESIGN.md, Open Question decision 3) since no
// example repo in the retrieved pack depends on it, while echo is the
// teacher's own HTTP stack. The genuinely binary, duplicate-suppressing
// CoAP/CBOR path lives separately in internal/wire/coap.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// doJSON issues a JSON request against baseURL+path using hc, decoding the
// response body into out (skipped if out is nil). Shared by every
// client-side wire type (AgentClient, OrchestratorClient,
// NodeRegisterClient, DomainRegisterClient)
// so each only needs to know its own routes.
func doJSON(ctx context.Context, hc *http.Client, method, baseURL, path string, body, out interface{}) error {
	var reader bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reader).Encode(body); err != nil {
			return fmt.Errorf("httpapi: encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, &reader)
	if err != nil {
		return fmt.Errorf("httpapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	return decodeBody(resp, out)
}

// respondError writes a spec.md §7 ResponseError-shaped JSON body.
func respondError(c echo.Context, status int, summary string, err error) error {
	body := map[string]string{"summary": summary}
	if err != nil {
		body["detail"] = err.Error()
	}
	return c.JSON(status, body)
}

// decodeBody reads and JSON-decodes an HTTP client response body into out.
func decodeBody(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Summary string `json:"summary"`
			Detail  string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Summary == "" {
			return fmt.Errorf("httpapi: request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("httpapi: %s: %s", apiErr.Summary, apiErr.Detail)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
