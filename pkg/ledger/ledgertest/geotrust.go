package ledgertest

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

var _ Contract = (*GeoTrust)(nil)

// GeoTrust is an in-memory GeoTrust match contract. Authorization is
// simplified: an admin call must be sourced from the admin account and a join
// from the joining player.
type GeoTrust struct {
	admin           string
	gameHub         string
	verifier        string
	defaultAllowAll bool
	countryAdmins   map[uint32]string
	allowed         map[uint32]bool
	nextSession     uint32
	sessions        map[uint32]*session

	// VerifyProof, when set with a verifier configured, checks location proofs.
	VerifyProof func(proof typedvalue.Map, cell uint32) bool
}

type session struct {
	player    [2]string
	cell      [2]*uint32
	assetTag  [2][]byte
	country   [2]*uint32
	proof     [2]typedvalue.Value
	state     string
	createdAt uint32
}

func NewGeoTrust() *GeoTrust {
	return &GeoTrust{
		countryAdmins: map[uint32]string{},
		allowed:       map[uint32]bool{},
		sessions:      map[uint32]*session{},
	}
}

func (g *GeoTrust) Clone() Contract {
	c := *g
	c.countryAdmins = maps.Clone(g.countryAdmins)
	c.allowed = maps.Clone(g.allowed)
	c.sessions = make(map[uint32]*session, len(g.sessions))
	for id, s := range g.sessions {
		cp := *s
		c.sessions[id] = &cp
	}
	return &c
}

// Sessions returns the number of sessions created so far.
func (g *GeoTrust) Sessions() uint32 {
	return g.nextSession
}

func (g *GeoTrust) Invoke(call Call) (typedvalue.Value, error) {
	a := args(call.Args)
	switch call.Function {
	case "init":
		admin, allow := a.address(0), a.bool(1)
		if a.err != nil {
			return nil, a.err
		}
		g.admin, g.defaultAllowAll = admin, allow
		return typedvalue.Void{}, nil
	case "set_game_hub":
		hub := a.address(0)
		return g.adminOnly(call, nil, a, func() { g.gameHub = hub })
	case "set_verifier":
		verifier := a.address(0)
		return g.adminOnly(call, nil, a, func() { g.verifier = verifier })
	case "set_admin":
		admin := a.address(0)
		return g.adminOnly(call, nil, a, func() { g.admin = admin })
	case "set_country_admin":
		country, admin := a.u32(0), a.address(1)
		return g.adminOnly(call, nil, a, func() { g.countryAdmins[country] = admin })
	case "remove_country_admin":
		country := a.u32(0)
		return g.adminOnly(call, nil, a, func() { delete(g.countryAdmins, country) })
	case "set_default_allow_all":
		allow := a.bool(0)
		return g.adminOnly(call, nil, a, func() { g.defaultAllowAll = allow })
	case "set_country_allowed":
		country, allow := a.u32(0), a.bool(1)
		return g.adminOnly(call, &country, a, func() {
			if allow {
				g.allowed[country] = true
			} else {
				delete(g.allowed, country)
			}
		})
	case "get_admin":
		return optionalAddress(g.admin), nil
	case "get_game_hub":
		return optionalAddress(g.gameHub), nil
	case "get_country_admin":
		country := a.u32(0)
		if a.err != nil {
			return nil, a.err
		}
		return optionalAddress(g.adminFor(&country)), nil
	case "get_country_allowed":
		country := a.u32(0)
		if a.err != nil {
			return nil, a.err
		}
		if g.countryAllowed(country) {
			return typedvalue.Bool(true), nil
		}
		return typedvalue.Void{}, nil
	case "get_country_policy":
		return typedvalue.Vec{
			typedvalue.Bool(g.defaultAllowAll),
			typedvalue.U32(len(g.allowed)),
			typedvalue.U32(0),
		}, nil
	case "list_allowed_countries":
		return g.listAllowed(a.u32(0), a.u32(1), a.err)
	case "create_session":
		g.nextSession++
		g.sessions[g.nextSession] = &session{state: "Waiting", createdAt: call.Ledger}
		return typedvalue.U32(g.nextSession), nil
	case "join_session":
		return g.join(call, a)
	case "resolve_match":
		return g.resolve(a)
	case "get_session":
		id := a.u32(0)
		if a.err != nil {
			return nil, a.err
		}
		s, ok := g.sessions[id]
		if !ok {
			return typedvalue.Void{}, nil
		}
		return s.value(), nil
	}
	return nil, fmt.Errorf("function %q not found", call.Function)
}

func (g *GeoTrust) adminFor(country *uint32) string {
	if country != nil {
		if ca, ok := g.countryAdmins[*country]; ok {
			return ca
		}
	}
	return g.admin
}

func (g *GeoTrust) adminOnly(call Call, country *uint32, a *argReader, apply func()) (typedvalue.Value, error) {
	admin := g.adminFor(country)
	if admin == "" {
		return nil, errors.New("Admin not set")
	}
	if call.Source != admin {
		return nil, errors.New("Error(Auth, InvalidAction)")
	}
	if a.err != nil {
		return nil, a.err
	}
	apply()
	return typedvalue.Void{}, nil
}

func (g *GeoTrust) countryAllowed(country uint32) bool {
	if g.allowed[country] {
		return true
	}
	return g.defaultAllowAll
}

func (g *GeoTrust) listAllowed(page, size uint32, err error) (typedvalue.Value, error) {
	if err != nil {
		return nil, err
	}
	codes := slices.Sorted(maps.Keys(g.allowed))
	start := int(page) * int(size)
	out := typedvalue.Vec{}
	for i := start; i < start+int(size) && i < len(codes); i++ {
		out = append(out, typedvalue.U32(codes[i]))
	}
	return out, nil
}

func (g *GeoTrust) join(call Call, a *argReader) (typedvalue.Value, error) {
	caller := a.address(0)
	id := a.u32(1)
	cell := a.u32(2)
	tag := a.bytes(3)
	country := a.u32(4)
	proof := a.value(5)
	if a.err != nil {
		return nil, a.err
	}
	if call.Source != caller {
		return nil, errors.New("Error(Auth, InvalidAction)")
	}
	if len(tag) != 32 {
		return nil, errors.New("asset tag must be 32 bytes")
	}
	if !g.countryAllowed(country) {
		return nil, errors.New("Country not allowed")
	}
	if err := g.checkProof(proof, cell); err != nil {
		return nil, err
	}

	s, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("Session not found")
	}
	if s.state != "Waiting" {
		return nil, errors.New("Session not in waiting state")
	}

	slot := 0
	switch {
	case s.player[0] == "":
	case s.player[1] == "":
		if s.player[0] == caller {
			return nil, errors.New("Player already in session")
		}
		slot = 1
	default:
		return nil, errors.New("Session is full")
	}

	s.player[slot] = caller
	s.cell[slot] = &cell
	s.assetTag[slot] = tag
	s.country[slot] = &country
	s.proof[slot] = proof
	if slot == 1 {
		s.state = "Active"
	}
	return typedvalue.Void{}, nil
}

func (g *GeoTrust) checkProof(proof typedvalue.Value, cell uint32) error {
	m, ok := proof.(typedvalue.Map)
	if !ok {
		return nil
	}
	inputs, _ := m.Get("public_inputs")
	vec, _ := inputs.(typedvalue.Vec)
	if len(vec) < 1 {
		return errors.New("Location proof missing public inputs")
	}
	if first, _ := vec[0].(typedvalue.U32); uint32(first) != cell {
		return errors.New("Location proof public inputs mismatch")
	}
	if g.verifier != "" && g.VerifyProof != nil && !g.VerifyProof(m, cell) {
		return errors.New("Location proof verification failed")
	}
	return nil
}

func (g *GeoTrust) resolve(a *argReader) (typedvalue.Value, error) {
	id := a.u32(0)
	if a.err != nil {
		return nil, a.err
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("Session not found")
	}
	if s.state != "Active" {
		return nil, errors.New("Session not active")
	}

	matched := slices.Equal(s.assetTag[0], s.assetTag[1]) && cellsAdjacent(*s.cell[0], *s.cell[1])
	winner := s.player[1]
	if matched {
		winner = s.player[0]
	}
	s.state = "Ended"

	return typedvalue.Map{
		{Key: typedvalue.Symbol("matched"), Val: typedvalue.Bool(matched)},
		{Key: typedvalue.Symbol("winner"), Val: optionalAddress(winner)},
	}, nil
}

func cellsAdjacent(a, b uint32) bool {
	diff := int64(a) - int64(b)
	return diff >= -1 && diff <= 1
}

// value renders the session the way the contract stores it: a struct with
// fields in name order and Option fields as Void or the bare value.
func (s *session) value() typedvalue.Map {
	optU32 := func(v *uint32) typedvalue.Value {
		if v == nil {
			return typedvalue.Void{}
		}
		return typedvalue.U32(*v)
	}
	optBytes := func(b []byte) typedvalue.Value {
		if b == nil {
			return typedvalue.Void{}
		}
		return typedvalue.Bytes(b)
	}
	optProof := func(v typedvalue.Value) typedvalue.Value {
		if v == nil {
			return typedvalue.Void{}
		}
		return v
	}

	return typedvalue.Map{
		{Key: typedvalue.Symbol("created_ledger"), Val: typedvalue.U32(s.createdAt)},
		{Key: typedvalue.Symbol("p1_asset_tag"), Val: optBytes(s.assetTag[0])},
		{Key: typedvalue.Symbol("p1_cell_id"), Val: optU32(s.cell[0])},
		{Key: typedvalue.Symbol("p1_country"), Val: optU32(s.country[0])},
		{Key: typedvalue.Symbol("p1_location_proof"), Val: optProof(s.proof[0])},
		{Key: typedvalue.Symbol("p2_asset_tag"), Val: optBytes(s.assetTag[1])},
		{Key: typedvalue.Symbol("p2_cell_id"), Val: optU32(s.cell[1])},
		{Key: typedvalue.Symbol("p2_country"), Val: optU32(s.country[1])},
		{Key: typedvalue.Symbol("p2_location_proof"), Val: optProof(s.proof[1])},
		{Key: typedvalue.Symbol("player1"), Val: optionalAddress(s.player[0])},
		{Key: typedvalue.Symbol("player2"), Val: optionalAddress(s.player[1])},
		{Key: typedvalue.Symbol("state"), Val: typedvalue.Vec{typedvalue.Symbol(s.state)}},
	}
}

func optionalAddress(s string) typedvalue.Value {
	if s == "" {
		return typedvalue.Void{}
	}
	addr, err := typedvalue.ParseAddress(s)
	if err != nil {
		return typedvalue.String(s)
	}
	return addr
}

// argReader extracts typed arguments, keeping the first mismatch in err.
type argReader struct {
	args []typedvalue.Value
	err  error
}

func args(v []typedvalue.Value) *argReader {
	return &argReader{args: v}
}

func (a *argReader) value(i int) typedvalue.Value {
	if i >= len(a.args) {
		a.fail(i, "missing")
		return nil
	}
	return a.args[i]
}

func (a *argReader) u32(i int) uint32 {
	v, ok := a.value(i).(typedvalue.U32)
	if !ok {
		a.fail(i, "want u32")
	}
	return uint32(v)
}

func (a *argReader) bool(i int) bool {
	v, ok := a.value(i).(typedvalue.Bool)
	if !ok {
		a.fail(i, "want bool")
	}
	return bool(v)
}

func (a *argReader) bytes(i int) []byte {
	v, ok := a.value(i).(typedvalue.Bytes)
	if !ok {
		a.fail(i, "want bytes")
	}
	return v
}

func (a *argReader) address(i int) string {
	v, ok := a.value(i).(typedvalue.Address)
	if !ok {
		a.fail(i, "want address")
		return ""
	}
	return v.String()
}

func (a *argReader) fail(i int, reason string) {
	if a.err == nil {
		a.err = fmt.Errorf("argument %d: %s", i, reason)
	}
}
