package types

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceSource is the read-only price feed the fetcher reads from, e.g. a chainlink AggregatorV3 proxy
type PriceSource interface {
	// LatestValue returns the latest answer reported by the source
	LatestValue(ctx context.Context) (*big.Int, error)
	// Description returns the label of the feed, e.g. "BTC / USD"
	Description(ctx context.Context) (string, error)
	// Decimals returns the number of decimals of the answer
	Decimals(ctx context.Context) (uint8, error)
	// Address identifies the source, for on-chain feeds this is the proxy contract address
	Address() common.Address
}

// RoundData mirrors AggregatorV3Interface.latestRoundData
type RoundData struct {
	RoundId         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

type FetchState int

const (
	Unfetched FetchState = iota
	Fetched
)

func (s FetchState) String() string {
	switch s {
	case Unfetched:
		return "unfetched"
	case Fetched:
		return "fetched"
	default:
		return "unknown"
	}
}

// Snapshot is the persisted state of a fetcher, roles live in the access controller
type Snapshot struct {
	Source   common.Address
	CoinPair string
	Decimals uint8
	State    FetchState
	// CapturedPair is the label reported by the source at fetch time
	CapturedPair string
	Price        *big.Int
}

// PriceInfo is the read view of a fetcher
type PriceInfo struct {
	CoinPair string `json:"coinPair"`
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`
	Fetched  bool   `json:"fetched"`
}
