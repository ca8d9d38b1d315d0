// internal/authn/introspect.go
//
// RFC 7662 token introspection client for the opaque-token path.
package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPIntrospector posts opaque tokens to an introspection endpoint and
// maps the response onto Identity.  Inactive tokens are ErrInvalidToken.
type HTTPIntrospector struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// NewHTTPIntrospector returns a client with a bounded default timeout.
func NewHTTPIntrospector(endpoint, clientID, clientSecret string) *HTTPIntrospector {
	return &HTTPIntrospector{
		Endpoint:     endpoint,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

type introspectionResponse struct {
	Active   bool   `json:"active"`
	Subject  string `json:"sub"`
	Issuer   string `json:"iss"`
	Scope    string `json:"scope"`
	TenantID string `json:"tid"`
}

// Introspect implements Introspector.
func (h *HTTPIntrospector) Introspect(ctx context.Context, token string) (Identity, error) {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if h.ClientID != "" {
		req.SetBasicAuth(h.ClientID, h.ClientSecret)
	}

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: introspection: %v", ErrInvalidToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("%w: introspection status %d", ErrInvalidToken, resp.StatusCode)
	}

	var ir introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return Identity{}, fmt.Errorf("%w: introspection decode: %v", ErrInvalidToken, err)
	}
	if !ir.Active {
		return Identity{}, fmt.Errorf("%w: token not active", ErrInvalidToken)
	}

	id := Identity{Subject: ir.Subject, Issuer: ir.Issuer, Tenant: ir.TenantID}
	if ir.Scope != "" {
		id.Scopes = strings.Fields(ir.Scope)
	}
	return id, nil
}
