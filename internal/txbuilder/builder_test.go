package txbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"swapdesk/internal/core"
	"swapdesk/pkg/logging"
)

func testAddr(seed byte) string {
	data := make([]byte, 32)
	data[0] = seed
	return address.NewAddress(0, 0, data).String()
}

type mapResolver struct {
	wallets map[string]string
}

func (m *mapResolver) WalletOf(_ context.Context, owner, master string) (string, error) {
	return m.wallets[owner+"/"+master], nil
}

func newTestBuilder(t *testing.T) (*Builder, *mapResolver, string, string) {
	t.Helper()
	router := testAddr(0xAA)
	pton := testAddr(0xBB)
	resolver := &mapResolver{wallets: make(map[string]string)}

	logger, err := logging.NewZapLogger("error")
	require.NoError(t, err)

	b, err := NewBuilder(Config{RouterAddress: router, ProxyTONMaster: pton}, resolver, logger)
	require.NoError(t, err)
	return b, resolver, router, pton
}

func TestNewBuilder_RejectsBadAddresses(t *testing.T) {
	logger, err := logging.NewZapLogger("error")
	require.NoError(t, err)

	_, err = NewBuilder(Config{RouterAddress: "nope", ProxyTONMaster: testAddr(1)}, nil, logger)
	assert.Error(t, err)

	_, err = NewBuilder(Config{RouterAddress: testAddr(1), ProxyTONMaster: "nope"}, nil, logger)
	assert.Error(t, err)
}

func TestBuildSwap_JettonOffer(t *testing.T) {
	b, resolver, router, _ := newTestBuilder(t)

	owner := testAddr(1)
	jetton := core.Asset{Address: testAddr(2), Symbol: "JETX", Decimals: 6}
	ask := core.Asset{Address: testAddr(3), Symbol: "OTHR", Decimals: 9}

	srcWallet := testAddr(0x10)
	askRouterWallet := testAddr(0x11)
	resolver.wallets[owner+"/"+jetton.Address] = srcWallet
	resolver.wallets[router+"/"+ask.Address] = askRouterWallet

	msgs, err := b.BuildSwap(context.Background(), owner, jetton, ask,
		decimal.New(3_000_000, 0), decimal.New(5_900_000_000, 0))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, srcWallet, msg.Destination)
	assert.Equal(t, gasProvision.String(), msg.Value.String())

	// outer body is a jetton transfer carrying the swap payload as a ref
	body, err := cell.FromBOC(msg.Payload)
	require.NoError(t, err)
	sl := body.BeginParse()
	op, err := sl.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(opJettonTransfer), op)

	_, err = sl.LoadUInt(64) // query id
	require.NoError(t, err)
	amount, err := sl.LoadBigCoins()
	require.NoError(t, err)
	assert.Equal(t, "3000000", amount.String())

	dest, err := sl.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, router, dest.String())
}

func TestBuildSwap_NativeOffer(t *testing.T) {
	b, resolver, router, pton := newTestBuilder(t)

	owner := testAddr(1)
	ton := core.Asset{Address: pton, Symbol: "TON", Decimals: 9}
	ask := core.Asset{Address: testAddr(3), Symbol: "JETX", Decimals: 6}

	ptonWallet := testAddr(0x20)
	askRouterWallet := testAddr(0x21)
	resolver.wallets[router+"/"+pton] = ptonWallet
	resolver.wallets[router+"/"+ask.Address] = askRouterWallet

	offerUnits := decimal.New(5_000_000_000, 0)
	msgs, err := b.BuildSwap(context.Background(), owner, ton, ask,
		offerUnits, decimal.New(9_900_000, 0))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, ptonWallet, msg.Destination)
	// native side attaches the offered coins plus gas directly
	assert.Equal(t, offerUnits.Add(gasSwap).String(), msg.Value.String())

	body, err := cell.FromBOC(msg.Payload)
	require.NoError(t, err)
	sl := body.BeginParse()
	op, err := sl.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(opSwap), op)

	wallet, err := sl.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, askRouterWallet, wallet.String())

	minOut, err := sl.LoadBigCoins()
	require.NoError(t, err)
	assert.Equal(t, "9900000", minOut.String())
}

func TestBuildSwap_RejectsBadWallet(t *testing.T) {
	b, _, _, pton := newTestBuilder(t)
	ton := core.Asset{Address: pton, Symbol: "TON", Decimals: 9}
	jet := core.Asset{Address: testAddr(3), Symbol: "JETX", Decimals: 6}

	_, err := b.BuildSwap(context.Background(), "not-a-wallet", ton, jet,
		decimal.New(1, 9), decimal.New(1, 6))
	assert.Error(t, err)
}

func TestBuildProvision_TwoMessages(t *testing.T) {
	b, resolver, router, pton := newTestBuilder(t)

	owner := testAddr(1)
	ton := core.Asset{Address: pton, Symbol: "TON", Decimals: 9}
	jet := core.Asset{Address: testAddr(3), Symbol: "JETX", Decimals: 6}

	resolver.wallets[router+"/"+pton] = testAddr(0x30)
	resolver.wallets[router+"/"+jet.Address] = testAddr(0x31)
	resolver.wallets[owner+"/"+jet.Address] = testAddr(0x32)

	unitsA := decimal.New(5, 9)
	unitsB := decimal.New(10, 6)
	req := &core.SimulationRequest{
		AssetA: ton, AssetB: jet,
		UnitsA: &unitsA, UnitsB: &unitsB,
		Mode: core.ModeInitial,
	}
	res := &core.SimulationResult{
		UnitsA: unitsA, UnitsB: unitsB,
		MinLPUnits: decimal.New(7, 6),
	}

	msgs, err := b.BuildProvision(context.Background(), owner, req, res)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// native side goes to the proxy TON wallet with value attached
	assert.Equal(t, testAddr(0x30), msgs[0].Destination)
	assert.Equal(t, unitsA.Add(gasSwap).String(), msgs[0].Value.String())

	// jetton side goes through the owner's jetton wallet
	assert.Equal(t, testAddr(0x32), msgs[1].Destination)

	body, err := cell.FromBOC(msgs[0].Payload)
	require.NoError(t, err)
	sl := body.BeginParse()
	op, err := sl.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(opProvideLP), op)
}

var _ core.ITxBuilder = (*Builder)(nil)

func TestHTTPResolver_CachesForever(t *testing.T) {
	// exercised in integration with the directory service; cache behavior
	// alone is covered here
	r := NewHTTPResolver("http://127.0.0.1:0", time.Second)
	r.cache["a/b"] = testAddr(5)

	got, err := r.WalletOf(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, testAddr(5), got)
}
