package chainlink

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/chainlink/aggregatorv3"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var btcUSDSepolia = common.HexToAddress("0x1b44F3514812d835EB1BDB0acB33d3fA3351Ee43")

// fakeFeed answers eth_call for a single aggregator like a node would
type fakeFeed struct {
	t        *testing.T
	abi      abi.ABI
	address  common.Address
	answer   *big.Int
	callErr  error
	codeless bool
}

func newFakeFeed(t *testing.T, answer int64) *fakeFeed {
	parsed, err := aggregatorv3.ParseABI()
	require.NoError(t, err)
	return &fakeFeed{t: t, abi: parsed, address: btcUSDSepolia, answer: big.NewInt(answer)}
}

func (f *fakeFeed) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	if f.codeless || contract != f.address {
		return nil, nil
	}
	return []byte{0x60, 0x80}, nil
}

func (f *fakeFeed) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	require.Equal(f.t, f.address, *call.To)
	method, err := f.abi.MethodById(call.Data[:4])
	require.NoError(f.t, err)
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(uint8(8))
	case "description":
		return method.Outputs.Pack("BTC / USD")
	case "version":
		return method.Outputs.Pack(big.NewInt(4))
	case "latestRoundData":
		roundID, _ := new(big.Int).SetString("18446744073709562300", 10)
		return method.Outputs.Pack(roundID, f.answer, big.NewInt(1700000000), big.NewInt(1700000012), roundID)
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func TestSource(t *testing.T) {
	ctx := context.Background()
	feed := newFakeFeed(t, 5323612345678)
	s, err := NewSource(ctx, log.NewNopLogger(), btcUSDSepolia, feed)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, btcUSDSepolia, s.Address())

	value, err := s.LatestValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5323612345678), value.Int64())

	round, err := s.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, "18446744073709562300", round.RoundId.String())
	assert.Equal(t, int64(1700000012), round.UpdatedAt.Int64())

	description, err := s.Description(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BTC / USD", description)

	decimals, err := s.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), decimals)

	version, err := s.aggregator.Version(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version.Int64())
}

func TestSourceNegativeAnswer(t *testing.T) {
	feed := newFakeFeed(t, -42)
	s, err := NewSource(context.Background(), log.NewNopLogger(), btcUSDSepolia, feed)
	require.NoError(t, err)
	value, err := s.LatestValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(-42), value.Int64())
}

func TestSourceCallError(t *testing.T) {
	feed := newFakeFeed(t, 1)
	s, err := NewSource(context.Background(), log.NewNopLogger(), btcUSDSepolia, feed)
	require.NoError(t, err)

	feed.callErr = errors.New("execution reverted")
	_, err = s.LatestValue(context.Background())
	assert.Equal(t, feed.callErr, err)
}

func TestSourceNotContract(t *testing.T) {
	feed := newFakeFeed(t, 1)
	feed.codeless = true
	_, err := NewSource(context.Background(), log.NewNopLogger(), btcUSDSepolia, feed)
	assert.ErrorIs(t, err, feedertypes.ErrInvalidArgument)
}

const testSources = `
urls:
  sepolia: https://rpc.sepolia.org
feeds:
  "11155111": 0x1b44F3514812d835EB1BDB0acB33d3fA3351Ee43_Sepolia
  "43113": 0x31CF013A08c6Ac228C94551d535d5BAfE19c602a_fuji
  "1": 0xnotanaddress_sepolia
`

func TestConfigFeedFor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, envConf), []byte(testSources), 0o600))
	cfg, err := parseConfig(dir)
	require.NoError(t, err)

	f, err := cfg.feedFor("11155111")
	require.NoError(t, err)
	assert.Equal(t, btcUSDSepolia, f.address)
	assert.Equal(t, "sepolia", f.network)
	assert.Equal(t, "https://rpc.sepolia.org", f.url)

	// no url for fuji
	_, err = cfg.feedFor("43113")
	assert.Error(t, err)
	_, err = cfg.feedFor("1")
	assert.Error(t, err)
	_, err = cfg.feedFor("31337")
	assert.Error(t, err)
}
