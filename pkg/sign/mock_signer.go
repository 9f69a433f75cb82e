package sign

import (
	"context"
	"sync"

	"github.com/geotrust-match/matchnode/pkg/ledger"
)

var _ Signer = (*MockSigner)(nil)

// MockSigner signs with a real key and can be told to decline or fail. It
// records every call.
type MockSigner struct {
	key *KeySigner

	mu             sync.Mutex
	err            error
	callCount      int
	lastPassphrase string
}

func NewMockSigner(key *KeySigner) *MockSigner {
	return &MockSigner{key: key}
}

// Decline makes every following call return ErrDeclined.
func (m *MockSigner) Decline() {
	m.FailWith(ErrDeclined)
}

// FailWith makes every following call return err. A nil err restores signing.
func (m *MockSigner) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockSigner) Address() string {
	return m.key.Address()
}

func (m *MockSigner) SignEnvelope(ctx context.Context, envelope []byte, networkPassphrase string) (ledger.SignedEnvelope, error) {
	m.mu.Lock()
	m.callCount++
	m.lastPassphrase = networkPassphrase
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return ledger.SignedEnvelope{}, err
	}
	return m.key.SignEnvelope(ctx, envelope, networkPassphrase)
}

// CallCount returns how many envelopes were offered for signing.
func (m *MockSigner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPassphrase returns the network passphrase of the latest call.
func (m *MockSigner) LastPassphrase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPassphrase
}
