package mock

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorRounds(t *testing.T) {
	ctx := context.Background()
	a := NewAggregator(common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), 8, big.NewInt(3034715771688))

	round, err := a.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), round.RoundId.Int64())
	assert.Equal(t, int64(3034715771688), round.Answer.Int64())

	a.UpdateAnswer(big.NewInt(5323612345678))
	round, err = a.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), round.RoundId.Int64())
	assert.Equal(t, round.RoundId, round.AnsweredInRound)

	value, err := a.LatestValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5323612345678), value.Int64())

	// returned values are copies
	value.SetInt64(1)
	value, _ = a.LatestValue(ctx)
	assert.Equal(t, int64(5323612345678), value.Int64())

	description, err := a.Description(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultDescription, description)
	decimals, err := a.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), decimals)
}

func TestAggregatorFailure(t *testing.T) {
	ctx := context.Background()
	a := NewAggregator(common.Address{}, 8, big.NewInt(1))
	a.SetFailure(ErrUnavailable)

	_, err := a.LatestValue(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = a.Description(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, a.Calls())

	a.SetFailure(nil)
	_, err = a.LatestValue(ctx)
	assert.NoError(t, err)
}

func TestAggregatorState(t *testing.T) {
	a := NewAggregator(common.HexToAddress("0x01"), 18, big.NewInt(42))
	a.SetDescription("ETH/USD")
	a.UpdateRoundData(big.NewInt(7), big.NewInt(43), big.NewInt(1700000000))

	b := FromState(a.State())
	round, err := b.LatestRoundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), round.RoundId.Int64())
	assert.Equal(t, int64(43), round.Answer.Int64())
	assert.Equal(t, int64(1700000000), round.UpdatedAt.Int64())
	assert.Equal(t, a.Address(), b.Address())
	description, _ := b.Description(context.Background())
	assert.Equal(t, "ETH/USD", description)
}
