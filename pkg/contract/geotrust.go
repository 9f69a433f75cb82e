package contract

import (
	"context"
	"fmt"

	"github.com/geotrust-match/matchnode/pkg/policy"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// PolicyPageSize is the page size LoadPolicy requests allowed countries with.
const PolicyPageSize = 50

// GeoTrust is a typed client for the GeoTrust match contract.
type GeoTrust struct {
	inv *Invoker
}

func NewGeoTrust(inv *Invoker) *GeoTrust {
	return &GeoTrust{inv: inv}
}

// Invoker returns the underlying invoker.
func (g *GeoTrust) Invoker() *Invoker {
	return g.inv
}

// JoinRequest holds the arguments of join_session. Caller defaults to the
// signer's address.
type JoinRequest struct {
	Caller    string
	SessionID uint32
	CellID    uint32
	AssetTag  [32]byte
	Country   uint32
	Proof     *typedvalue.LocationProof
}

// CountryPolicySummary is the result of get_country_policy.
type CountryPolicySummary struct {
	DefaultAllowAll bool
	Allowed         uint32
	Denied          uint32
}

// GetSession returns session id, or nil when it does not exist.
func (g *GeoTrust) GetSession(ctx context.Context, id uint32) (*Session, error) {
	res := g.inv.Invoke(ctx, "get_session", id)
	if err := res.Err(); err != nil {
		return nil, err
	}
	if res.Outcome == OutcomeAbsent {
		return nil, nil
	}
	return ParseSession(id, res.Value)
}

// GetAdmin returns the main admin, or "" when the contract is not initialised.
func (g *GeoTrust) GetAdmin(ctx context.Context) (string, error) {
	return g.optionalAddress(ctx, "get_admin")
}

// GetGameHub returns the configured game hub contract, or "".
func (g *GeoTrust) GetGameHub(ctx context.Context) (string, error) {
	return g.optionalAddress(ctx, "get_game_hub")
}

// GetCountryAdmin returns the admin responsible for country, falling back to the main admin.
func (g *GeoTrust) GetCountryAdmin(ctx context.Context, country uint32) (string, error) {
	return g.optionalAddress(ctx, "get_country_admin", country)
}

func (g *GeoTrust) optionalAddress(ctx context.Context, function string, args ...any) (string, error) {
	res := g.inv.Invoke(ctx, function, args...)
	if err := res.Err(); err != nil {
		return "", err
	}
	addr, _ := typedvalue.DecodeOptionalAddress(res.Value)
	return addr, nil
}

// GetCountryAllowed reports whether the contract allows country.
func (g *GeoTrust) GetCountryAllowed(ctx context.Context, country uint32) (bool, error) {
	res := g.inv.Invoke(ctx, "get_country_allowed", country)
	if err := res.Err(); err != nil {
		return false, err
	}
	allowed, _ := res.Native().(bool)
	return allowed, nil
}

func (g *GeoTrust) GetCountryPolicy(ctx context.Context) (CountryPolicySummary, error) {
	res := g.inv.Invoke(ctx, "get_country_policy")
	if err := res.Err(); err != nil {
		return CountryPolicySummary{}, err
	}

	vec, ok := res.Value.(typedvalue.Vec)
	if !ok || len(vec) != 3 {
		return CountryPolicySummary{}, fmt.Errorf("country policy: unexpected value %s", typeOf(res.Value))
	}
	flag, ok1 := vec[0].(typedvalue.Bool)
	allowed, ok2 := vec[1].(typedvalue.U32)
	denied, ok3 := vec[2].(typedvalue.U32)
	if !ok1 || !ok2 || !ok3 {
		return CountryPolicySummary{}, fmt.Errorf("country policy: unexpected element types")
	}
	return CountryPolicySummary{DefaultAllowAll: bool(flag), Allowed: uint32(allowed), Denied: uint32(denied)}, nil
}

// ListAllowedCountries returns one page of allowed country codes.
func (g *GeoTrust) ListAllowedCountries(ctx context.Context, page, size uint32) ([]uint32, error) {
	res := g.inv.Invoke(ctx, "list_allowed_countries", page, size)
	if err := res.Err(); err != nil {
		return nil, err
	}
	vec, _ := res.Value.(typedvalue.Vec)
	codes := make([]uint32, 0, len(vec))
	for _, v := range vec {
		code, ok := v.(typedvalue.U32)
		if !ok {
			return nil, fmt.Errorf("allowed countries: unexpected element %s", typeOf(v))
		}
		codes = append(codes, uint32(code))
	}
	return codes, nil
}

// LoadPolicy reads the contract's country policy. The contract only lists
// allowed countries, so under an allow-all default the code set stays empty.
func (g *GeoTrust) LoadPolicy(ctx context.Context) (policy.Policy, error) {
	summary, err := g.GetCountryPolicy(ctx)
	if err != nil {
		return policy.Policy{}, err
	}

	p := policy.New(summary.DefaultAllowAll)
	if summary.DefaultAllowAll {
		if summary.Denied > 0 {
			g.inv.logger.Warn("contract reports denied countries it does not list", "denied", summary.Denied)
		}
		return p, nil
	}

	for page := uint32(0); ; page++ {
		codes, err := g.ListAllowedCountries(ctx, page, PolicyPageSize)
		if err != nil {
			return policy.Policy{}, err
		}
		for _, c := range codes {
			p.Codes.Add(c)
		}
		if len(codes) < PolicyPageSize {
			return p, nil
		}
	}
}

// Eligible reports whether country may join sessions under the contract's
// current policy. The contract does not list denied countries, so under an
// allow-all default the country itself is looked up.
func (g *GeoTrust) Eligible(ctx context.Context, country uint32) (bool, error) {
	p, err := g.LoadPolicy(ctx)
	if err != nil {
		return false, err
	}
	if p.DefaultAllowAll {
		allowed, err := g.GetCountryAllowed(ctx, country)
		if err != nil {
			return false, err
		}
		if !allowed {
			p.Codes.Add(country)
		}
	}
	return policy.IsAllowed(p, country), nil
}

// Init initialises the contract. It must be signed by admin.
func (g *GeoTrust) Init(ctx context.Context, admin string, defaultAllowAll bool) Result {
	return g.inv.Invoke(ctx, "init", admin, defaultAllowAll)
}

// CreateSession creates a Waiting session and returns its id.
func (g *GeoTrust) CreateSession(ctx context.Context) (uint32, Result) {
	res := g.inv.Invoke(ctx, "create_session")
	id, _ := res.Value.(typedvalue.U32)
	return uint32(id), res
}

// JoinSession fills the next free slot of a Waiting session. The second join
// activates it. A country the policy excludes fails with CountryNotAllowed
// before anything is signed. When the policy cannot be read the contract
// decides.
func (g *GeoTrust) JoinSession(ctx context.Context, req JoinRequest) Result {
	allowed, err := g.Eligible(ctx, req.Country)
	switch {
	case err != nil:
		g.inv.logger.Warn("country eligibility unknown", "country", req.Country, "error", err)
	case !allowed:
		return g.inv.refuse("join_session", CountryNotAllowed, fmt.Sprintf("country %d is not allowed", req.Country))
	}

	caller := req.Caller
	if caller == "" && g.inv.signer != nil {
		caller = g.inv.signer.Address()
	}

	var proof any
	if req.Proof != nil {
		proof = *req.Proof
	}
	return g.inv.Invoke(ctx, "join_session", caller, req.SessionID, req.CellID, req.AssetTag, req.Country, proof)
}

// ResolveMatch ends an Active session. The match result is nil unless the
// call succeeded.
func (g *GeoTrust) ResolveMatch(ctx context.Context, sessionID uint32) (*MatchResult, Result) {
	res := g.inv.Invoke(ctx, "resolve_match", sessionID)
	if res.Outcome != OutcomeOK {
		return nil, res
	}
	match, err := parseMatchResult(res.Value)
	if err != nil {
		g.inv.logger.Warn("unreadable match result", "sessionId", sessionID, "error", err)
		return nil, res
	}
	return match, res
}

func (g *GeoTrust) SetDefaultAllowAll(ctx context.Context, allow bool) Result {
	return g.inv.Invoke(ctx, "set_default_allow_all", allow)
}

func (g *GeoTrust) SetCountryAllowed(ctx context.Context, country uint32, allowed bool) Result {
	return g.inv.Invoke(ctx, "set_country_allowed", country, allowed)
}

func (g *GeoTrust) SetGameHub(ctx context.Context, hub string) Result {
	return g.inv.Invoke(ctx, "set_game_hub", hub)
}

func (g *GeoTrust) SetVerifier(ctx context.Context, verifier string) Result {
	return g.inv.Invoke(ctx, "set_verifier", verifier)
}

func (g *GeoTrust) SetAdmin(ctx context.Context, admin string) Result {
	return g.inv.Invoke(ctx, "set_admin", admin)
}

func (g *GeoTrust) SetCountryAdmin(ctx context.Context, country uint32, admin string) Result {
	return g.inv.Invoke(ctx, "set_country_admin", country, admin)
}

func (g *GeoTrust) RemoveCountryAdmin(ctx context.Context, country uint32) Result {
	return g.inv.Invoke(ctx, "remove_country_admin", country)
}
