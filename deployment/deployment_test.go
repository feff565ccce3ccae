package deployment

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/access"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/mock"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	forwarder = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	user      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	mockAddr  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func deploy(t *testing.T) (*mock.Aggregator, *fetcher.Fetcher) {
	aggregator := mock.NewAggregator(mockAddr, 8, big.NewInt(5323612345678))
	ac, err := access.NewController(log.NewNopLogger(), admin)
	require.NoError(t, err)
	f, err := fetcher.New(context.Background(), log.NewNopLogger(), ac, aggregator)
	require.NoError(t, err)
	require.NoError(t, ac.SetForwarder(admin, forwarder))
	return aggregator, f
}

func TestSaveLoadRestore(t *testing.T) {
	dir := t.TempDir()
	aggregator, f := deploy(t)

	_, err := Load(dir, feedertypes.NetworkLocal)
	assert.ErrorIs(t, err, ErrNotDeployed)
	assert.False(t, Exists(dir, feedertypes.NetworkLocal))

	r := Snapshot(feedertypes.NetworkLocal, "31337", f, map[common.Address]uint64{user: 3})
	r.SetMock(aggregator)
	require.NoError(t, Save(dir, r))
	assert.True(t, Exists(dir, feedertypes.NetworkLocal))

	loaded, err := Load(dir, feedertypes.NetworkLocal)
	require.NoError(t, err)
	assert.Equal(t, r, loaded)
	assert.Equal(t, map[common.Address]uint64{user: 3}, loaded.SignerNonces())

	restoredAggregator, err := loaded.MockAggregator()
	require.NoError(t, err)
	assert.Equal(t, aggregator.State(), restoredAggregator.State())

	restored, err := loaded.Restore(log.NewNopLogger(), restoredAggregator)
	require.NoError(t, err)
	assert.False(t, restored.Fetched())
	assert.Equal(t, admin, restored.Access().Administrator())
	assert.Equal(t, forwarder, restored.Access().Forwarder())
	assert.Equal(t, mock.DefaultDescription, restored.CoinPair())

	// fetch and renounce, then make sure both survive a round trip
	require.NoError(t, restored.FetchPrice(context.Background(), forwarder))
	require.NoError(t, restored.Access().RenounceAdministrator(admin))
	r = Snapshot(feedertypes.NetworkLocal, "31337", restored, nil)
	r.SetMock(restoredAggregator)
	require.NoError(t, Save(dir, r))

	loaded, err = Load(dir, feedertypes.NetworkLocal)
	require.NoError(t, err)
	assert.True(t, loaded.Fetched)
	assert.True(t, loaded.Renounced)
	restored, err = loaded.Restore(log.NewNopLogger(), restoredAggregator)
	require.NoError(t, err)
	assert.ErrorIs(t, restored.FetchPrice(context.Background(), forwarder), feedertypes.ErrAlreadyFetched)
	assert.ErrorIs(t, restored.Access().SetForwarder(admin, user), feedertypes.ErrNotAuthorized)
	assert.Equal(t, "5323612345678", restored.CoinPrice().String())

	entries, err := os.ReadDir(dir + "/" + feedertypes.NetworkLocal)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRestoreCorrupted(t *testing.T) {
	aggregator, f := deploy(t)
	r := Snapshot(feedertypes.NetworkLocal, "31337", f, nil)

	bad := *r
	bad.CoinPrice = "12"
	_, err := bad.Restore(log.NewNopLogger(), aggregator)
	assert.ErrorIs(t, err, ErrCorruptedRecord)

	bad = *r
	bad.Renounced = true
	_, err = bad.Restore(log.NewNopLogger(), aggregator)
	assert.ErrorIs(t, err, ErrCorruptedRecord)

	bad = *r
	bad.Forwarder = "nope"
	_, err = bad.Restore(log.NewNopLogger(), aggregator)
	assert.ErrorIs(t, err, ErrCorruptedRecord)

	_, err = bad.MockAggregator()
	assert.ErrorIs(t, err, ErrCorruptedRecord)
}

func TestSaveKeepsCapturedPrice(t *testing.T) {
	dir := t.TempDir()
	aggregator, f := deploy(t)
	r := Snapshot(feedertypes.NetworkLocal, "31337", f, nil)
	r.SetMock(aggregator)
	require.NoError(t, Save(dir, r))

	// two instances restored from the same record, as two processes would
	loaded, err := Load(dir, feedertypes.NetworkLocal)
	require.NoError(t, err)
	first, err := loaded.Restore(log.NewNopLogger(), aggregator)
	require.NoError(t, err)
	second, err := loaded.Restore(log.NewNopLogger(), aggregator)
	require.NoError(t, err)

	require.NoError(t, first.FetchPrice(context.Background(), forwarder))
	require.NoError(t, Save(dir, Snapshot(feedertypes.NetworkLocal, "31337", first, map[common.Address]uint64{user: 1})))

	aggregator.UpdateAnswer(big.NewInt(1))
	require.NoError(t, second.FetchPrice(context.Background(), forwarder))
	err = Save(dir, Snapshot(feedertypes.NetworkLocal, "31337", second, nil))
	assert.ErrorIs(t, err, feedertypes.ErrAlreadyFetched)

	// nor can an unfetched instance overwrite the capture
	_, unfetched := deploy(t)
	err = Save(dir, Snapshot(feedertypes.NetworkLocal, "31337", unfetched, nil))
	assert.ErrorIs(t, err, feedertypes.ErrAlreadyFetched)

	loaded, err = Load(dir, feedertypes.NetworkLocal)
	require.NoError(t, err)
	assert.True(t, loaded.Fetched)
	assert.Equal(t, "5323612345678", loaded.CoinPrice)

	// the instance holding the capture can still save, e.g. nonces
	require.NoError(t, Save(dir, Snapshot(feedertypes.NetworkLocal, "31337", first, map[common.Address]uint64{user: 2})))
	loaded, err = Load(dir, feedertypes.NetworkLocal)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Nonces[user.Hex()])

	require.NoError(t, Remove(dir, feedertypes.NetworkLocal))
	require.NoError(t, Remove(dir, feedertypes.NetworkLocal))
	assert.False(t, Exists(dir, feedertypes.NetworkLocal))
}

func TestLock(t *testing.T) {
	dir := t.TempDir()
	l, err := Lock(dir, feedertypes.NetworkLocal)
	require.NoError(t, err)

	_, err = Lock(dir, feedertypes.NetworkLocal)
	assert.ErrorIs(t, err, ErrLocked)

	// other networks are independent
	other, err := Lock(dir, "sepolia")
	require.NoError(t, err)
	require.NoError(t, other.Unlock())

	require.NoError(t, l.Unlock())
	l, err = Lock(dir, feedertypes.NetworkLocal)
	require.NoError(t, err)
	require.NoError(t, l.Unlock())
}
