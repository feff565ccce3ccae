package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotAuthorized   = NewErr("caller is not the administrator")
	ErrInvalidArgument = NewErr("invalid argument")
	ErrNotForwarder    = NewErr("caller is not the forwarder")
	ErrAlreadyFetched  = NewErr("coin price already fetched")
)

// NotForwarderError is returned when fetchPrice is called by anyone but the forwarder
type NotForwarderError struct {
	Expected common.Address
	Actual   common.Address
}

func (e *NotForwarderError) Error() string {
	return fmt.Sprintf("%s, expected:%s, actual:%s", ErrNotForwarder.message, e.Expected.Hex(), e.Actual.Hex())
}

func (e *NotForwarderError) Unwrap() error {
	return ErrNotForwarder
}

// AlreadyFetchedError carries the captured result so callers can recover it from the failure
type AlreadyFetchedError struct {
	CoinPair string
	Price    *big.Int
}

func (e *AlreadyFetchedError) Error() string {
	return fmt.Sprintf("%s, coinPair:%s, price:%s", ErrAlreadyFetched.message, e.CoinPair, e.Price)
}

func (e *AlreadyFetchedError) Unwrap() error {
	return ErrAlreadyFetched
}
