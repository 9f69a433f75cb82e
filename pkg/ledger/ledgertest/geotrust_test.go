package ledgertest_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/ledger/ledgertest"
	"github.com/geotrust-match/matchnode/pkg/strkey"
	tv "github.com/geotrust-match/matchnode/pkg/typedvalue"
)

var (
	admin = strkey.MustEncode(strkey.ClassAccount, bytes.Repeat([]byte{1}, 32))
	alice = strkey.MustEncode(strkey.ClassAccount, bytes.Repeat([]byte{2}, 32))
	bob   = strkey.MustEncode(strkey.ClassAccount, bytes.Repeat([]byte{3}, 32))
	tag   = tv.Bytes(bytes.Repeat([]byte{9}, 32))
)

func invoke(t *testing.T, g *ledgertest.GeoTrust, source, fn string, args ...any) (tv.Value, error) {
	t.Helper()
	encoded, err := tv.EncodeAll(args...)
	require.NoError(t, err)
	return g.Invoke(ledgertest.Call{Source: source, Function: fn, Args: encoded, Ledger: 5})
}

func TestGeoTrustSessionLifecycle(t *testing.T) {
	g := ledgertest.NewGeoTrust()
	_, err := invoke(t, g, admin, "init", admin, true)
	require.NoError(t, err)

	id, err := invoke(t, g, alice, "create_session")
	require.NoError(t, err)
	assert.Equal(t, tv.U32(1), id)

	_, err = invoke(t, g, alice, "join_session", alice, 1, 42, tag, 840, nil)
	require.NoError(t, err)

	_, err = invoke(t, g, alice, "join_session", alice, 1, 42, tag, 840, nil)
	assert.EqualError(t, err, "Player already in session")

	_, err = invoke(t, g, bob, "resolve_match", 1)
	assert.EqualError(t, err, "Session not active")

	_, err = invoke(t, g, bob, "join_session", bob, 1, 43, tag, 840, nil)
	require.NoError(t, err)

	sess, err := invoke(t, g, bob, "get_session", 1)
	require.NoError(t, err)
	state, _ := sess.(tv.Map).Get("state")
	assert.Equal(t, tv.Vec{tv.Symbol("Active")}, state)

	res, err := invoke(t, g, bob, "resolve_match", 1)
	require.NoError(t, err)
	matched, _ := res.(tv.Map).Get("matched")
	winner, _ := res.(tv.Map).Get("winner")
	assert.Equal(t, tv.Bool(true), matched)
	assert.Equal(t, alice, winner.(tv.Address).String())

	missing, err := invoke(t, g, bob, "get_session", 99)
	require.NoError(t, err)
	assert.Equal(t, tv.Void{}, missing)
}

func TestGeoTrustCountryPolicy(t *testing.T) {
	g := ledgertest.NewGeoTrust()
	_, err := invoke(t, g, admin, "init", admin, false)
	require.NoError(t, err)

	_, err = invoke(t, g, alice, "set_country_allowed", 840, true)
	assert.Error(t, err, "only the admin may change policy")

	for _, code := range []uint32{840, 4, 276} {
		_, err = invoke(t, g, admin, "set_country_allowed", code, true)
		require.NoError(t, err)
	}

	policy, err := invoke(t, g, admin, "get_country_policy")
	require.NoError(t, err)
	assert.Equal(t, tv.Vec{tv.Bool(false), tv.U32(3), tv.U32(0)}, policy)

	page, err := invoke(t, g, admin, "list_allowed_countries", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, tv.Vec{tv.U32(4), tv.U32(276)}, page)

	page, err = invoke(t, g, admin, "list_allowed_countries", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, tv.Vec{tv.U32(840)}, page)

	id, err := invoke(t, g, alice, "create_session")
	require.NoError(t, err)
	_, err = invoke(t, g, alice, "join_session", alice, id, 1, tag, 250, nil)
	assert.EqualError(t, err, "Country not allowed")
}

func TestGeoTrustLocationProof(t *testing.T) {
	g := ledgertest.NewGeoTrust()
	_, err := invoke(t, g, admin, "init", admin, true)
	require.NoError(t, err)
	_, err = invoke(t, g, alice, "create_session")
	require.NoError(t, err)

	bad := tv.LocationProof{Proof: []byte{1}, PublicInputs: []uint32{7}}
	_, err = invoke(t, g, alice, "join_session", alice, 1, 42, tag, 840, bad)
	assert.EqualError(t, err, "Location proof public inputs mismatch")

	good := tv.LocationProof{Proof: []byte{1}, PublicInputs: []uint32{42, 100}}
	_, err = invoke(t, g, alice, "join_session", alice, 1, 42, tag, 840, good)
	assert.NoError(t, err)
}

func TestGeoTrustCloneIsolation(t *testing.T) {
	g := ledgertest.NewGeoTrust()
	clone := g.Clone()
	_, err := clone.Invoke(ledgertest.Call{Function: "create_session"})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), g.Sessions())
}
