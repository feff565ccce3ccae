package fetcher

import (
	"context"
	"math/big"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/access"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/types"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

type F interface {
	// fetch the price from the source, only the forwarder may call it and only once
	FetchPrice(ctx context.Context, caller common.Address) error

	// captured price, zero until fetched
	CoinPrice() *big.Int
	Fetched() bool
	// label and decimals of the price source
	CoinPair() string
	Decimals() uint8
	PriceSourceAddress() common.Address
	PriceInfo() types.PriceInfo

	// roles of this instance
	Access() *access.Controller

	Snapshot() types.Snapshot
	SubscribeLatestCoinPrice(ch chan<- feedertypes.LatestCoinPrice) event.Subscription
}
