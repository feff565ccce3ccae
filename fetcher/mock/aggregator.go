// Package mock provides an in-memory AggregatorV3 used on local networks and in tests
package mock

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/types"
	"github.com/ethereum/go-ethereum/common"
)

const DefaultDescription = "v0.8/tests/MockV3Aggregator.sol"

var ErrUnavailable = errors.New("mock aggregator unavailable")

var _ types.PriceSource = &Aggregator{}

// Aggregator behaves like chainlink's MockV3Aggregator: anyone may push a new answer
type Aggregator struct {
	locker      *sync.RWMutex
	address     common.Address
	decimals    uint8
	description string

	latestRound     *big.Int
	latestAnswer    *big.Int
	latestTimestamp *big.Int
	failure         error
	calls           int
}

// State is the persisted form of an Aggregator
type State struct {
	Address     common.Address
	Decimals    uint8
	Description string
	Round       *big.Int
	Answer      *big.Int
	UpdatedAt   *big.Int
}

// NewAggregator deploys a mock at address with decimals and an initial answer
func NewAggregator(address common.Address, decimals uint8, initialAnswer *big.Int) *Aggregator {
	a := &Aggregator{
		locker:          new(sync.RWMutex),
		address:         address,
		decimals:        decimals,
		description:     DefaultDescription,
		latestRound:     new(big.Int),
		latestAnswer:    new(big.Int),
		latestTimestamp: new(big.Int),
	}
	a.UpdateAnswer(initialAnswer)
	return a
}

// FromState restores a mock without advancing its round
func FromState(s State) *Aggregator {
	a := &Aggregator{
		locker:          new(sync.RWMutex),
		address:         s.Address,
		decimals:        s.Decimals,
		description:     s.Description,
		latestRound:     new(big.Int),
		latestAnswer:    new(big.Int),
		latestTimestamp: new(big.Int),
	}
	if len(a.description) == 0 {
		a.description = DefaultDescription
	}
	if s.Round != nil {
		a.latestRound.Set(s.Round)
	}
	if s.Answer != nil {
		a.latestAnswer.Set(s.Answer)
	}
	if s.UpdatedAt != nil {
		a.latestTimestamp.Set(s.UpdatedAt)
	}
	return a
}

func (a *Aggregator) State() State {
	a.locker.RLock()
	defer a.locker.RUnlock()
	return State{
		Address:     a.address,
		Decimals:    a.decimals,
		Description: a.description,
		Round:       new(big.Int).Set(a.latestRound),
		Answer:      new(big.Int).Set(a.latestAnswer),
		UpdatedAt:   new(big.Int).Set(a.latestTimestamp),
	}
}

// UpdateAnswer sets a new answer in the next round
func (a *Aggregator) UpdateAnswer(answer *big.Int) {
	a.locker.Lock()
	defer a.locker.Unlock()
	if answer == nil {
		answer = new(big.Int)
	}
	a.latestAnswer = new(big.Int).Set(answer)
	a.latestTimestamp = big.NewInt(time.Now().Unix())
	a.latestRound = new(big.Int).Add(a.latestRound, big.NewInt(1))
}

// UpdateRoundData overwrites the latest round with explicit values
func (a *Aggregator) UpdateRoundData(roundID, answer, timestamp *big.Int) {
	a.locker.Lock()
	defer a.locker.Unlock()
	a.latestRound = new(big.Int).Set(roundID)
	a.latestAnswer = new(big.Int).Set(answer)
	a.latestTimestamp = new(big.Int).Set(timestamp)
}

// SetDescription replaces the label, MockV3Aggregator hardcodes it but tests need named pairs
func (a *Aggregator) SetDescription(description string) {
	a.locker.Lock()
	a.description = description
	a.locker.Unlock()
}

// SetFailure makes every read return err until it is reset with nil
func (a *Aggregator) SetFailure(err error) {
	a.locker.Lock()
	a.failure = err
	a.locker.Unlock()
}

// Calls returns how many reads reached the aggregator
func (a *Aggregator) Calls() int {
	a.locker.RLock()
	defer a.locker.RUnlock()
	return a.calls
}

func (a *Aggregator) LatestRoundData(_ context.Context) (*types.RoundData, error) {
	a.locker.Lock()
	defer a.locker.Unlock()
	a.calls++
	if a.failure != nil {
		return nil, a.failure
	}
	return &types.RoundData{
		RoundId:         new(big.Int).Set(a.latestRound),
		Answer:          new(big.Int).Set(a.latestAnswer),
		StartedAt:       new(big.Int).Set(a.latestTimestamp),
		UpdatedAt:       new(big.Int).Set(a.latestTimestamp),
		AnsweredInRound: new(big.Int).Set(a.latestRound),
	}, nil
}

func (a *Aggregator) LatestValue(ctx context.Context) (*big.Int, error) {
	round, err := a.LatestRoundData(ctx)
	if err != nil {
		return nil, err
	}
	return round.Answer, nil
}

func (a *Aggregator) Description(_ context.Context) (string, error) {
	a.locker.Lock()
	defer a.locker.Unlock()
	a.calls++
	if a.failure != nil {
		return "", a.failure
	}
	return a.description, nil
}

func (a *Aggregator) Decimals(_ context.Context) (uint8, error) {
	a.locker.Lock()
	defer a.locker.Unlock()
	a.calls++
	if a.failure != nil {
		return 0, a.failure
	}
	return a.decimals, nil
}

func (a *Aggregator) Address() common.Address {
	return a.address
}
