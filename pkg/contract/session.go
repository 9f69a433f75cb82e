package contract

import (
	"fmt"
	"strings"

	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// SessionState is the state of a match session.
type SessionState string

const (
	SessionWaiting SessionState = "Waiting"
	SessionActive  SessionState = "Active"
	SessionEnded   SessionState = "Ended"
)

// ParseSessionState matches name against the contract's state variants,
// ignoring case.
func ParseSessionState(name string) (SessionState, error) {
	for _, v := range typedvalue.SessionStates {
		if strings.EqualFold(v, name) {
			return SessionState(v), nil
		}
	}
	return "", fmt.Errorf("unknown session state %q", name)
}

// Open reports whether a session in this state can still be joined or resolved.
func (s SessionState) Open() bool {
	return s == SessionWaiting || s == SessionActive
}

// Session is a match session as stored by the contract. Empty player
// addresses and nil optional fields mean the slot is not filled yet.
type Session struct {
	ID            uint32       `json:"id"`
	State         SessionState `json:"state"`
	Player1       string       `json:"player1,omitempty"`
	Player2       string       `json:"player2,omitempty"`
	P1CellID      *uint32      `json:"p1CellId,omitempty"`
	P2CellID      *uint32      `json:"p2CellId,omitempty"`
	P1Country     *uint32      `json:"p1Country,omitempty"`
	P2Country     *uint32      `json:"p2Country,omitempty"`
	P1AssetTag    []byte       `json:"p1AssetTag,omitempty"`
	P2AssetTag    []byte       `json:"p2AssetTag,omitempty"`
	P1HasProof    bool         `json:"p1HasProof"`
	P2HasProof    bool         `json:"p2HasProof"`
	CreatedLedger uint32       `json:"createdLedger"`
}

// HasPlayer reports whether address occupies either slot.
func (s *Session) HasPlayer(address string) bool {
	return address != "" && (s.Player1 == address || s.Player2 == address)
}

// ParseSession converts the contract's Session struct.
func ParseSession(id uint32, v typedvalue.Value) (*Session, error) {
	m, ok := v.(typedvalue.Map)
	if !ok {
		return nil, fmt.Errorf("session %d: want map, got %s", id, typeOf(v))
	}

	field := func(name string) typedvalue.Value {
		val, ok := m.Get(name)
		if !ok {
			return typedvalue.Void{}
		}
		return val
	}

	name, ok := typedvalue.Decode(field("state")).(string)
	if !ok {
		return nil, fmt.Errorf("session %d: unreadable state", id)
	}
	state, err := ParseSessionState(name)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", id, err)
	}

	s := &Session{
		ID:         id,
		State:      state,
		P1CellID:   optionalU32(field("p1_cell_id")),
		P2CellID:   optionalU32(field("p2_cell_id")),
		P1Country:  optionalU32(field("p1_country")),
		P2Country:  optionalU32(field("p2_country")),
		P1AssetTag: optionalBytes(field("p1_asset_tag")),
		P2AssetTag: optionalBytes(field("p2_asset_tag")),
		P1HasProof: !isVoid(field("p1_location_proof")),
		P2HasProof: !isVoid(field("p2_location_proof")),
	}
	s.Player1, _ = typedvalue.DecodeOptionalAddress(field("player1"))
	s.Player2, _ = typedvalue.DecodeOptionalAddress(field("player2"))
	if created := optionalU32(field("created_ledger")); created != nil {
		s.CreatedLedger = *created
	}
	return s, nil
}

// MatchResult is returned by resolve_match. Winner is empty when the
// contract reported none.
type MatchResult struct {
	Matched bool   `json:"matched"`
	Winner  string `json:"winner,omitempty"`
}

func parseMatchResult(v typedvalue.Value) (*MatchResult, error) {
	m, ok := v.(typedvalue.Map)
	if !ok {
		return nil, fmt.Errorf("match result: want map, got %s", typeOf(v))
	}
	matched, _ := m.Get("matched")
	b, ok := matched.(typedvalue.Bool)
	if !ok {
		return nil, fmt.Errorf("match result: unreadable matched flag")
	}

	res := &MatchResult{Matched: bool(b)}
	if winner, ok := m.Get("winner"); ok {
		res.Winner, _ = typedvalue.DecodeOptionalAddress(winner)
	}
	return res, nil
}

func optionalU32(v typedvalue.Value) *uint32 {
	switch x := v.(type) {
	case typedvalue.U32:
		n := uint32(x)
		return &n
	case typedvalue.Vec:
		if len(x) == 1 {
			return optionalU32(x[0])
		}
	}
	return nil
}

func optionalBytes(v typedvalue.Value) []byte {
	if b, ok := v.(typedvalue.Bytes); ok {
		return []byte(b)
	}
	return nil
}

func isVoid(v typedvalue.Value) bool {
	_, ok := v.(typedvalue.Void)
	return ok || v == nil
}

func typeOf(v typedvalue.Value) typedvalue.Type {
	if v == nil {
		return typedvalue.TypeVoid
	}
	return v.Type()
}
