package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/access"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/types"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

var _ F = &Fetcher{}

// Fetcher reads its price source exactly once, on behalf of the forwarder designated in its access controller
type Fetcher struct {
	logger feedertypes.LoggerInf
	// guards the fetch state, held across the source read so that at most one fetch succeeds
	locker *sync.Mutex
	access *access.Controller
	source types.PriceSource

	// resolved from the source on construction
	coinPair string
	decimals uint8

	state        types.FetchState
	capturedPair string
	price        *big.Int

	priceFeed event.Feed
}

// New creates an unfetched instance, the source's description and decimals are read once here and cached
func New(ctx context.Context, logger feedertypes.LoggerInf, ac *access.Controller, source types.PriceSource) (*Fetcher, error) {
	if ac == nil || source == nil {
		return nil, feedertypes.ErrInvalidArgument.Wrap("access controller and price source are required")
	}
	coinPair, err := source.Description(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get description from price source:%s, error:%w", source.Address().Hex(), err)
	}
	decimals, err := source.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get decimals from price source:%s, error:%w", source.Address().Hex(), err)
	}
	logger.Info("fetcher initialized", "source", source.Address().Hex(), "coinPair", coinPair, "decimals", decimals)
	return &Fetcher{
		logger:   logger,
		locker:   new(sync.Mutex),
		access:   ac,
		source:   source,
		coinPair: coinPair,
		decimals: decimals,
		state:    types.Unfetched,
		price:    new(big.Int),
	}, nil
}

// Restore rebuilds an instance from a snapshot without querying the source
func Restore(logger feedertypes.LoggerInf, ac *access.Controller, source types.PriceSource, s types.Snapshot) (*Fetcher, error) {
	if ac == nil || source == nil {
		return nil, feedertypes.ErrInvalidArgument.Wrap("access controller and price source are required")
	}
	if s.Source != source.Address() {
		return nil, feedertypes.ErrInvalidArgument.Wrap(fmt.Sprintf("snapshot source:%s doesn't match price source:%s", s.Source.Hex(), source.Address().Hex()))
	}
	f := &Fetcher{
		logger:   logger,
		locker:   new(sync.Mutex),
		access:   ac,
		source:   source,
		coinPair: s.CoinPair,
		decimals: s.Decimals,
		state:    types.Unfetched,
		price:    new(big.Int),
	}
	switch s.State {
	case types.Unfetched:
	case types.Fetched:
		if s.Price == nil {
			return nil, feedertypes.ErrInvalidArgument.Wrap("fetched snapshot without price")
		}
		f.state = types.Fetched
		f.capturedPair = s.CapturedPair
		f.price = new(big.Int).Set(s.Price)
	default:
		return nil, feedertypes.ErrInvalidArgument.Wrap(fmt.Sprintf("unknown fetch state:%d", s.State))
	}
	return f, nil
}

// FetchPrice reads the latest value and label from the source and captures them, it succeeds at most once.
// The caller is checked against the forwarder before the source is touched.
func (f *Fetcher) FetchPrice(ctx context.Context, caller common.Address) error {
	f.locker.Lock()
	forwarder := f.access.Forwarder()
	if forwarder == (common.Address{}) || caller != forwarder {
		f.locker.Unlock()
		return &feedertypes.NotForwarderError{Expected: forwarder, Actual: caller}
	}
	if f.state == types.Fetched {
		err := &feedertypes.AlreadyFetchedError{CoinPair: f.capturedPair, Price: new(big.Int).Set(f.price)}
		f.locker.Unlock()
		return err
	}

	price, err := f.source.LatestValue(ctx)
	if err != nil {
		f.locker.Unlock()
		return err
	}
	coinPair, err := f.source.Description(ctx)
	if err != nil {
		f.locker.Unlock()
		return err
	}
	if price == nil {
		f.locker.Unlock()
		return fmt.Errorf("price source:%s returned no value", f.source.Address().Hex())
	}
	f.price = new(big.Int).Set(price)
	f.capturedPair = coinPair
	f.state = types.Fetched
	f.locker.Unlock()

	f.logger.Info("fetched coin price", "coinPair", coinPair, "price", price.String(), "forwarder", caller.Hex())
	f.priceFeed.Send(feedertypes.LatestCoinPrice{CoinPair: coinPair, Price: new(big.Int).Set(price)})
	return nil
}

// CoinPrice returns the captured price, zero before the fetch
func (f *Fetcher) CoinPrice() *big.Int {
	f.locker.Lock()
	defer f.locker.Unlock()
	return new(big.Int).Set(f.price)
}

func (f *Fetcher) Fetched() bool {
	f.locker.Lock()
	defer f.locker.Unlock()
	return f.state == types.Fetched
}

func (f *Fetcher) CoinPair() string {
	return f.coinPair
}

func (f *Fetcher) Decimals() uint8 {
	return f.decimals
}

func (f *Fetcher) PriceSourceAddress() common.Address {
	return f.source.Address()
}

func (f *Fetcher) Access() *access.Controller {
	return f.access
}

func (f *Fetcher) PriceInfo() types.PriceInfo {
	f.locker.Lock()
	defer f.locker.Unlock()
	return types.PriceInfo{
		CoinPair: f.coinPair,
		Price:    f.price.String(),
		Decimals: f.decimals,
		Fetched:  f.state == types.Fetched,
	}
}

func (f *Fetcher) Snapshot() types.Snapshot {
	f.locker.Lock()
	defer f.locker.Unlock()
	return types.Snapshot{
		Source:       f.source.Address(),
		CoinPair:     f.coinPair,
		Decimals:     f.decimals,
		State:        f.state,
		CapturedPair: f.capturedPair,
		Price:        new(big.Int).Set(f.price),
	}
}

// SubscribeLatestCoinPrice registers ch for the price event.
// Delivery blocks the fetch call until ch accepts, so ch should be buffered and drained.
func (f *Fetcher) SubscribeLatestCoinPrice(ch chan<- feedertypes.LatestCoinPrice) event.Subscription {
	return f.priceFeed.Subscribe(ch)
}
