// internal/authn/decoder.go
//
// Multi-tenant JWT decoder.
//
// Context
// -------
// In a single-tenant service the verifying decoder is configured once at
// boot.  Here the verification key source depends on which tenant-scoped
// provider issued the token, so the decoder must be resolved per request:
// pre-parse the token without verification to read its claimed issuer,
// select the bound tenant's matching provider, then verify for real with
// that provider's key set.  Verifiers are cached per (tenant, issuer)
// because first use fetches key material over the network; concurrent
// misses on the same pair collapse behind a singleflight barrier, same as
// the pool registry.
//
// Issuer matching is case-sensitive, exact-or-prefix.  An exact match wins
// over any prefix match; among prefix matches the longest configured
// issuer wins; two active providers with the same issuer string is a
// catalog integrity error surfaced as ErrAmbiguousProvider, never resolved
// by iteration order.
package authn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/harborlane/strata/internal/catalog"
	"github.com/harborlane/strata/internal/metrics"
	"github.com/harborlane/strata/internal/tenantctx"
)

// TenantClaim is the registered claim carrying the issuing tenant's id.
const TenantClaim = "tid"

// Defaults applied when DecoderOptions fields are zero.
const (
	DefaultJWKSTTL   = 6 * time.Hour
	DefaultClockSkew = 60 * time.Second
)

// DecoderOptions tunes one Decoder.
type DecoderOptions struct {
	JWKSTTL   time.Duration
	ClockSkew time.Duration
}

// verifier is one cached verifying decoder for a (tenant, issuer) pair.
type verifier struct {
	issuer    string
	jwkSetURL string
}

type decoderKey struct {
	tenant string
	issuer string
}

// Decoder verifies JWTs against tenant-scoped identity providers.  Safe
// for concurrent use.
type Decoder struct {
	providers catalog.Providers
	jwks      *jwksCache
	log       *zap.SugaredLogger

	jwksTTL time.Duration
	skew    time.Duration

	sfg    singleflight.Group
	m      sync.Map // decoderKey → *verifier
	builds int64    // verifier constructions, for tests and metrics
}

// NewDecoder wires a Decoder over the provider catalog.
func NewDecoder(providers catalog.Providers, log *zap.SugaredLogger, opts DecoderOptions) *Decoder {
	if opts.JWKSTTL == 0 {
		opts.JWKSTTL = DefaultJWKSTTL
	}
	if opts.ClockSkew == 0 {
		opts.ClockSkew = DefaultClockSkew
	}
	return &Decoder{
		providers: providers,
		jwks:      newJWKSCache(),
		log:       log,
		jwksTTL:   opts.JWKSTTL,
		skew:      opts.ClockSkew,
	}
}

// Decode verifies raw and returns the caller's identity.  The tenant
// filter must have bound a tenant first; a missing binding is an ordering
// defect, not an auth failure.
func (d *Decoder) Decode(ctx context.Context, raw string) (Identity, error) {
	tenantID, ok := tenantctx.Current(ctx)
	if !ok {
		return Identity{}, ErrNoTenantContext
	}

	// Cheap, untrusted read of the claimed issuer.  Nothing from this
	// parse is trusted until full verification below.
	unverified, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	issuer := unverified.Issuer()
	if issuer == "" {
		return Identity{}, ErrNoProviderForIssuer
	}

	provs, err := d.providers.ActiveByTenant(ctx, tenantID)
	if err != nil {
		return Identity{}, err
	}
	prov, err := matchProvider(provs, issuer)
	if err != nil {
		return Identity{}, err
	}

	ver, err := d.verifierFor(tenantID, prov)
	if err != nil {
		return Identity{}, err
	}
	// Verification enforces the claimed issuer, not the provider's
	// configured one: a prefix-configured provider legitimately serves
	// several issuer values under its prefix, and matchProvider has
	// already bound this claim to the provider.
	return d.verify(ctx, ver, raw, issuer)
}

// EvictTenant invalidates every cached verifier (and its key set) for one
// tenant.  Wired to registry eviction so a deactivated or reconfigured
// tenant loses its verifiers immediately instead of at JWKS TTL expiry.
func (d *Decoder) EvictTenant(tenantID string) {
	candidates := make(map[string]struct{})
	d.m.Range(func(key, value any) bool {
		k := key.(decoderKey)
		if k.tenant == tenantID {
			candidates[value.(*verifier).jwkSetURL] = struct{}{}
			d.m.Delete(key)
		}
		return true
	})
	if len(candidates) == 0 {
		return
	}

	// Tenants may share an identity provider.  A key set still referenced
	// by another tenant's verifier stays cached; dropping it would only
	// force a pointless refetch.
	d.m.Range(func(_, value any) bool {
		delete(candidates, value.(*verifier).jwkSetURL)
		return len(candidates) > 0
	})

	urls := make([]string, 0, len(candidates))
	for u := range candidates {
		urls = append(urls, u)
	}
	d.jwks.drop(urls)
	d.log.Infow("token decoders evicted", "tenant", tenantID, "jwks_dropped", len(urls))
}

/*──────────────────────────── internals ───────────────────────────────────*/

// matchProvider selects the active JWT provider for the claimed issuer.
// Opaque providers never participate; their tokens do not carry an iss.
func matchProvider(provs []catalog.IdentityProvider, issuer string) (catalog.IdentityProvider, error) {
	var (
		exact  []catalog.IdentityProvider
		prefix []catalog.IdentityProvider
	)
	for _, p := range provs {
		if p.IsOpaque {
			continue
		}
		switch {
		case p.Issuer == issuer:
			exact = append(exact, p)
		case p.Issuer != "" && strings.HasPrefix(issuer, p.Issuer):
			prefix = append(prefix, p)
		}
	}

	if len(exact) > 1 {
		return catalog.IdentityProvider{}, fmt.Errorf("%w: issuer %q", ErrAmbiguousProvider, issuer)
	}
	if len(exact) == 1 {
		return exact[0], nil
	}

	// Longest configured prefix wins; equal-length duplicates mean two
	// rows share an issuer string, which is the ambiguity we refuse.
	var best catalog.IdentityProvider
	for _, p := range prefix {
		switch {
		case len(p.Issuer) > len(best.Issuer):
			best = p
		case len(p.Issuer) == len(best.Issuer) && best.Issuer != "":
			return catalog.IdentityProvider{}, fmt.Errorf("%w: issuer %q", ErrAmbiguousProvider, issuer)
		}
	}
	if best.Issuer == "" {
		return catalog.IdentityProvider{}, fmt.Errorf("%w: issuer %q", ErrNoProviderForIssuer, issuer)
	}
	return best, nil
}

// verifierFor returns the cached verifier for (tenant, provider.Issuer),
// constructing it at most once under concurrency.
func (d *Decoder) verifierFor(tenantID string, prov catalog.IdentityProvider) (*verifier, error) {
	key := decoderKey{tenant: tenantID, issuer: prov.Issuer}
	if v, ok := d.m.Load(key); ok {
		return v.(*verifier), nil
	}

	v, err, _ := d.sfg.Do(tenantID+"\x00"+prov.Issuer, func() (interface{}, error) {
		if v, ok := d.m.Load(key); ok {
			return v.(*verifier), nil
		}
		ver := &verifier{issuer: prov.Issuer, jwkSetURL: prov.JWKSetURL}
		d.m.Store(key, ver)
		atomic.AddInt64(&d.builds, 1)
		metrics.TokenDecoderBuildTotal.Inc()
		d.log.Infow("token decoder built", "tenant", tenantID, "issuer", prov.Issuer)
		return ver, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*verifier), nil
}

// verify runs full signature and claim validation.  issuer is the claimed
// issuer that selected the provider; the signed claim must agree with it.
func (d *Decoder) verify(ctx context.Context, ver *verifier, raw, issuer string) (Identity, error) {
	set, err := d.jwks.get(ctx, ver.jwkSetURL, d.jwksTTL)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: jwks fetch: %v", ErrInvalidToken, err)
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKeySet(set),
		jwt.WithIssuer(issuer),
		jwt.WithVerify(true),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(d.skew),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := Identity{Subject: tok.Subject(), Issuer: tok.Issuer()}
	if tid, ok := tok.Get(TenantClaim); ok {
		id.Tenant, _ = tid.(string)
	}
	if sc, ok := tok.Get("scope"); ok {
		if s, _ := sc.(string); s != "" {
			id.Scopes = strings.Fields(s)
		}
	}
	return id, nil
}
