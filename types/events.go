package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	EventOwnershipTransferred = "OwnershipTransferred"
	EventLatestCoinPrice      = "LatestCoinPrice"
)

// OwnershipTransferred is emitted on administrator transfer and renounce, New is the zero address on renounce
type OwnershipTransferred struct {
	Previous common.Address
	New      common.Address
}

// LatestCoinPrice is emitted once, when the price is captured
type LatestCoinPrice struct {
	CoinPair string
	Price    *big.Int
}
