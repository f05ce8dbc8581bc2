package coordinator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/klingon-v2/internal/backend"
	"github.com/klingon-exchange/klingon-v2/internal/chain"
	"github.com/klingon-exchange/klingon-v2/internal/config"
	"github.com/klingon-exchange/klingon-v2/internal/exchange"
	"github.com/klingon-exchange/klingon-v2/internal/walletconn"
)

func testRegistry(requiredConfirmations uint32) *exchange.Registry {
	return exchange.NewRegistry(map[string]config.CurrencyParams{
		"BTC": {MinAmount: 1000, MaxAmount: 1_000_000_000, BlockTimeSeconds: 600, RequiredConfirmations: requiredConfirmations},
		"LTC": {MinAmount: 1000, MaxAmount: 1_000_000_000, BlockTimeSeconds: 150, RequiredConfirmations: requiredConfirmations},
	})
}

// stubBackend satisfies backend.Backend just well enough to be registered,
// so ownsLeg sees a currency as owned. None of its methods are exercised:
// the coordinator always talks to the connector, never the backend
// directly.
type stubBackend struct{}

func (stubBackend) Type() backend.Type                                       { return backend.TypeMempool }
func (stubBackend) Connect(ctx context.Context) error                        { return nil }
func (stubBackend) Close() error                                             { return nil }
func (stubBackend) IsConnected() bool                                        { return true }
func (stubBackend) GetAddressInfo(ctx context.Context, address string) (*backend.AddressInfo, error) {
	return nil, nil
}
func (stubBackend) GetAddressUTXOs(ctx context.Context, address string) ([]backend.UTXO, error) {
	return nil, nil
}
func (stubBackend) GetAddressTxs(ctx context.Context, address, lastSeenTxID string) ([]backend.Transaction, error) {
	return nil, nil
}
func (stubBackend) GetTransaction(ctx context.Context, txID string) (*backend.Transaction, error) {
	return nil, nil
}
func (stubBackend) GetRawTransaction(ctx context.Context, txID string) ([]byte, error) { return nil, nil }
func (stubBackend) BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error) {
	return "", nil
}
func (stubBackend) GetBlockHeight(ctx context.Context) (int64, error) { return 0, nil }
func (stubBackend) GetBlockHeader(ctx context.Context, hashOrHeight string) (*backend.BlockHeader, error) {
	return nil, nil
}
func (stubBackend) GetFeeEstimates(ctx context.Context) (*backend.FeeEstimate, error) { return nil, nil }

func ownerBackends(currencies ...string) *backend.Registry {
	reg := backend.NewRegistry()
	for _, c := range currencies {
		reg.Register(c, stubBackend{})
	}
	return reg
}

// fakeConnector is a hand-rolled walletconn.Connector double: block heights
// and UTXOs are set directly by the test rather than routed through a real
// chain backend.
type fakeConnector struct {
	mu      sync.Mutex
	heights map[string]uint32
	utxos   map[string][]string // currency -> txids available at any address
	blocks  map[string]int64    // txid -> confirming block height
	unconf  map[string]bool     // txid -> explicitly unconfirmed
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		heights: make(map[string]uint32),
		utxos:   make(map[string][]string),
		blocks:  make(map[string]int64),
		unconf:  make(map[string]bool),
	}
}

func (f *fakeConnector) ListUnspent(ctx context.Context, currency, address string) ([]walletconn.Utxo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txids := f.utxos[currency]
	out := make([]walletconn.Utxo, 0, len(txids))
	for _, id := range txids {
		out = append(out, walletconn.Utxo{TxID: id, Amount: 100000})
	}
	return out, nil
}

func (f *fakeConnector) BroadcastRawTx(ctx context.Context, currency, rawTxHex string) (string, error) {
	return "", nil
}

func (f *fakeConnector) FetchTxBlock(ctx context.Context, currency, txID string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unconf[txID] {
		return 0, false, nil
	}
	return f.blocks[txID], true, nil
}

func (f *fakeConnector) CurrentBlockHeight(ctx context.Context, currency string) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heights[currency], nil
}

func (f *fakeConnector) setHeight(currency string, h uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heights[currency] = h
}

func (f *fakeConnector) confirmAt(txID string, height int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[txID] = height
}

func (f *fakeConnector) markUnconfirmed(txID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unconf[txID] = true
}

func newTestCoordinator(t *testing.T, svc *exchange.Service, conn walletconn.Connector, owns ...string) *Coordinator {
	t.Helper()
	c := New(Config{
		Service:   svc,
		Connector: conn,
		Backends:  ownerBackends(owns...),
		Network:   chain.Testnet,
	})
	svc.SetActions(c)
	svc.Subscribe(c)
	return c
}

func newMatchedTransaction(t *testing.T, svc *exchange.Service) exchange.SwapID {
	t.Helper()
	var id1, id2 exchange.SwapID
	id1[31] = 1
	id2[31] = 2

	_, err := svc.Create(id1,
		exchange.Party{Address: "maker-btc", Currency: "BTC", Amount: 100000},
		exchange.Party{Address: "maker-ltc", Currency: "LTC", Amount: 5000000},
		time.Now().Add(time.Hour))
	require.NoError(t, err)

	res, err := svc.Create(id2,
		exchange.Party{Address: "taker-ltc", Currency: "LTC", Amount: 5000000},
		exchange.Party{Address: "taker-btc", Currency: "BTC", Amount: 100000},
		time.Now().Add(time.Hour))
	require.NoError(t, err)
	return res.PendingID
}

func advanceToHold(t *testing.T, svc *exchange.Service, txID exchange.SwapID) {
	t.Helper()
	require.NoError(t, svc.Deliver(exchange.Message{Hash: [32]byte{10}, Body: exchange.HoldApply{ID: txID, From: exchange.RoleA}}))
	require.NoError(t, svc.Deliver(exchange.Message{Hash: [32]byte{11}, Body: exchange.HoldApply{ID: txID, From: exchange.RoleB}}))
}

func TestNew(t *testing.T) {
	svc := exchange.New(exchange.Config{Registry: testRegistry(1)})
	defer svc.Close()

	c := New(Config{Service: svc, Network: chain.Testnet})
	require.NotNil(t, c)
	assert.Equal(t, chain.Testnet, c.network)
	assert.NotNil(t, c.swaps)
}

func TestOwnsLegReflectsBackendRegistry(t *testing.T) {
	svc := exchange.New(exchange.Config{Registry: testRegistry(1)})
	defer svc.Close()

	c := New(Config{Service: svc, Backends: ownerBackends("BTC"), Network: chain.Testnet})
	assert.True(t, c.ownsLeg("BTC"))
	assert.False(t, c.ownsLeg("LTC"))

	c = New(Config{Service: svc, Network: chain.Testnet})
	assert.False(t, c.ownsLeg("BTC"))
}

func TestHandleInitRequestAnnouncesOwnedLegsAndSetsLockTimes(t *testing.T) {
	svc := exchange.New(exchange.Config{Registry: testRegistry(1)})
	defer svc.Close()

	conn := newFakeConnector()
	conn.setHeight("BTC", 1000)
	conn.setHeight("LTC", 2000)

	c := newTestCoordinator(t, svc, conn, "BTC", "LTC")

	txID := newMatchedTransaction(t, svc)
	advanceToHold(t, svc, txID)

	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionInitRequest}))

	tx, ok := svc.Transaction(txID)
	require.True(t, ok)
	assert.Equal(t, exchange.StateInitialized, tx.State)
	assert.Equal(t, uint32(1012), tx.LockTimeA) // 1000 + ceil(7200/600)
	assert.Equal(t, uint32(2024), tx.LockTimeB) // 2000 + ceil(3600/150)
	assert.True(t, tx.AInit.Received)
	assert.True(t, tx.BInit.Received)

	// A second call must not double-announce (SetLockTimes and the
	// per-role sent flags are both idempotent).
	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionInitRequest}))
	tx, _ = svc.Transaction(txID)
	assert.Equal(t, uint32(1012), tx.LockTimeA)
}

func TestHandleCreateRequestFundsOwnedLegAndAnnouncesCreated(t *testing.T) {
	svc := exchange.New(exchange.Config{Registry: testRegistry(1)})
	defer svc.Close()

	conn := newFakeConnector()
	conn.setHeight("BTC", 1000)
	conn.setHeight("LTC", 2000)

	// Only BTC is owned by this node; LTC is the counterparty's leg.
	c := newTestCoordinator(t, svc, conn, "BTC")

	txID := newMatchedTransaction(t, svc)
	advanceToHold(t, svc, txID)
	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionInitRequest}))

	// The counterparty's own Initialized, delivered over the wire.
	require.NoError(t, svc.Deliver(exchange.Message{Hash: [32]byte{20}, Body: exchange.Initialized{ID: txID, From: exchange.RoleB, DataTxID: "peer-data", PeerPK: strings.Repeat("02", 33)}}))

	tx, ok := svc.Transaction(txID)
	require.True(t, ok)
	require.Equal(t, exchange.StateInitialized, tx.State)

	// No funding observed yet: Create must be a safe no-op.
	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionCreateRequest}))
	tx, _ = svc.Transaction(txID)
	assert.False(t, tx.ACreated.Received)

	aTxID := strings.Repeat("ab", 32)
	conn.utxos["BTC"] = []string{aTxID}

	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionCreateRequest}))
	tx, _ = svc.Transaction(txID)
	assert.True(t, tx.ACreated.Received)
	assert.Equal(t, aTxID, tx.ACreated.BinTxID)
	assert.NotEmpty(t, tx.ACreated.InnerScript)
}

func TestHandleConfirmRequestRequiresConfirmationDepth(t *testing.T) {
	svc := exchange.New(exchange.Config{Registry: testRegistry(3)})
	defer svc.Close()

	conn := newFakeConnector()
	conn.setHeight("BTC", 1000)
	conn.setHeight("LTC", 2000)

	c := newTestCoordinator(t, svc, conn, "BTC")

	txID := newMatchedTransaction(t, svc)
	advanceToHold(t, svc, txID)
	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionInitRequest}))
	require.NoError(t, svc.Deliver(exchange.Message{Hash: [32]byte{21}, Body: exchange.Initialized{ID: txID, From: exchange.RoleB}}))

	aTxID := strings.Repeat("cd", 32)
	bTxID := strings.Repeat("ef", 32)
	require.NoError(t, svc.Deliver(exchange.Message{Hash: [32]byte{22}, Body: exchange.Created{ID: txID, From: exchange.RoleB, BinTxID: bTxID}}))

	st, err := c.state(txID)
	require.NoError(t, err)
	require.NoError(t, svc.Announce(exchange.Created{ID: txID, From: exchange.RoleA, BinTxID: aTxID}))
	c.mu.Lock()
	st.aCreateSent = true
	c.mu.Unlock()

	tx, ok := svc.Transaction(txID)
	require.True(t, ok)
	require.Equal(t, exchange.StateCreated, tx.State)

	// Confirmed at depth 1 when 3 are required: must not announce.
	conn.confirmAt(aTxID, 1000)
	conn.setHeight("BTC", 1000)
	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionConfirmRequest}))
	tx, _ = svc.Transaction(txID)
	assert.False(t, tx.AConfirmed)

	// Now at depth 3: must announce Confirmed.
	conn.setHeight("BTC", 1002)
	require.NoError(t, c.HandleAction(context.Background(), exchange.ActionRequest{SwapID: txID, Action: exchange.ActionConfirmRequest}))
	tx, _ = svc.Transaction(txID)
	assert.True(t, tx.AConfirmed)
}

func TestForgetDropsCachedStateOnTerminal(t *testing.T) {
	svc := exchange.New(exchange.Config{Registry: testRegistry(1)})
	defer svc.Close()

	conn := newFakeConnector()
	c := newTestCoordinator(t, svc, conn, "BTC", "LTC")

	txID := newMatchedTransaction(t, svc)
	_, err := c.state(txID)
	require.NoError(t, err)

	c.mu.Lock()
	_, tracked := c.swaps[txID]
	c.mu.Unlock()
	require.True(t, tracked)

	c.TransactionCancelled(txID, exchange.StateCancelled, exchange.ReasonExplicitCancel)

	c.mu.Lock()
	_, tracked = c.swaps[txID]
	c.mu.Unlock()
	assert.False(t, tracked)
}
