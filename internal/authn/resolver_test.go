// internal/authn/resolver_test.go
package authn

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/harborlane/strata/internal/catalog"
)

type fakeIntrospector struct {
	calls int
	id    Identity
	err   error
}

func (f *fakeIntrospector) Introspect(context.Context, string) (Identity, error) {
	f.calls++
	return f.id, f.err
}

func TestResolverDispatchesJWTShapeToDecoder(t *testing.T) {
	intro := &fakeIntrospector{id: Identity{Subject: "opaque-sub"}}
	r := NewResolver(newTestDecoder(catalog.NewMemory()), intro)

	// Three dot-separated segments route to the decoder, which fails on
	// the unbound context before the introspector could ever be reached.
	_, err := r.Resolve(context.Background(), "aaa.bbb.ccc")
	if !errors.Is(err, ErrNoTenantContext) {
		t.Fatalf("err = %v, want ErrNoTenantContext", err)
	}
	if intro.calls != 0 {
		t.Fatalf("introspector called %d times for a JWT-shaped token", intro.calls)
	}
}

func TestResolverDispatchesOpaqueToIntrospector(t *testing.T) {
	intro := &fakeIntrospector{id: Identity{Subject: "svc-9", Tenant: "acme"}}
	r := NewResolver(newTestDecoder(catalog.NewMemory()), intro)

	for _, raw := range []string{"plainopaque", "two.segments", "trailing.dot.", "a.b.c.d"} {
		id, err := r.Resolve(context.Background(), raw)
		if err != nil {
			t.Fatalf("raw %q: %v", raw, err)
		}
		if id.Subject != "svc-9" {
			t.Fatalf("raw %q: subject = %q", raw, id.Subject)
		}
	}
	if intro.calls != 4 {
		t.Fatalf("introspector calls = %d, want 4", intro.calls)
	}
}

func TestResolverOpaqueNotConfigured(t *testing.T) {
	r := NewResolver(newTestDecoder(catalog.NewMemory()), nil)
	if _, err := r.Resolve(context.Background(), "plainopaque"); !errors.Is(err, ErrOpaqueNotConfigured) {
		t.Fatalf("err = %v, want ErrOpaqueNotConfigured", err)
	}
}

func TestLooksLikeJWT(t *testing.T) {
	yes := []string{"a.b.c", "eyJh.eyJz.sig"}
	no := []string{"", "abc", "a.b", "a.b.c.d", ".b.c", "a..c", "a.b."}

	for _, raw := range yes {
		if !looksLikeJWT(raw) {
			t.Errorf("looksLikeJWT(%q) = false, want true", raw)
		}
	}
	for _, raw := range no {
		if looksLikeJWT(raw) {
			t.Errorf("looksLikeJWT(%q) = true, want false", raw)
		}
	}
}

func TestBearerFromRequest(t *testing.T) {
	req := func(authz string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
		if authz != "" {
			r.Header.Set("Authorization", authz)
		}
		return r
	}

	if tok, err := BearerFromRequest(req("Bearer abc123")); err != nil || tok != "abc123" {
		t.Fatalf("got (%q, %v), want (abc123, nil)", tok, err)
	}
	// Scheme comparison is case-insensitive per RFC 7235.
	if tok, err := BearerFromRequest(req("bearer abc123")); err != nil || tok != "abc123" {
		t.Fatalf("got (%q, %v), want (abc123, nil)", tok, err)
	}

	for _, authz := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwdw==", "abc123"} {
		if _, err := BearerFromRequest(req(authz)); !errors.Is(err, ErrNoBearerToken) {
			t.Errorf("authz %q: err = %v, want ErrNoBearerToken", authz, err)
		}
	}
}
