// Package deployment persists deployed fetcher instances per network, one yaml record each
package deployment

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/access"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/mock"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/types"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v2"
)

const (
	ContractName = "CoinPriceOneTimeFetch"
	lockFile     = ".lock"
)

var (
	ErrNotDeployed     = feedertypes.NewErr("not deployed")
	ErrAlreadyDeployed = feedertypes.NewErr("already deployed")
	ErrCorruptedRecord = feedertypes.NewErr("corrupted deployment record")
	ErrLocked          = feedertypes.NewErr("deployment is in use by another process")
)

type MockRecord struct {
	Address     string `yaml:"address"`
	Decimals    uint8  `yaml:"decimals"`
	Description string `yaml:"description"`
	Round       string `yaml:"round"`
	Answer      string `yaml:"answer"`
	UpdatedAt   string `yaml:"updatedAt"`
}

type Record struct {
	Network       string `yaml:"network"`
	ChainID       string `yaml:"chainId"`
	PriceSource   string `yaml:"priceSource"`
	Administrator string `yaml:"administrator"`
	Renounced     bool   `yaml:"renounced"`
	Forwarder     string `yaml:"forwarder"`
	CoinPair      string `yaml:"coinPair"`
	Decimals      uint8  `yaml:"decimals"`
	Fetched       bool   `yaml:"fetched"`
	CapturedPair  string `yaml:"capturedPair,omitempty"`
	CoinPrice     string `yaml:"coinPrice"`
	// last accepted nonce per signer of the http surface
	Nonces map[string]uint64 `yaml:"nonces,omitempty"`
	Mock   *MockRecord       `yaml:"mock,omitempty"`
}

// Path returns <dir>/<network>/CoinPriceOneTimeFetch.yaml
func Path(dir, network string) string {
	return filepath.Join(dir, network, ContractName+".yaml")
}

func Exists(dir, network string) bool {
	_, err := os.Stat(Path(dir, network))
	return err == nil
}

// Lock takes the exclusive lock of <dir>/<network>, it fails at once with ErrLocked when another holder has it.
// Every process mutating the record holds it from load to save.
func Lock(dir, network string) (*flock.Flock, error) {
	d := filepath.Join(dir, network)
	if err := os.MkdirAll(d, 0o755); err != nil {
		return nil, err
	}
	l := flock.New(filepath.Join(d, lockFile))
	locked, err := l.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrLocked.Wrap(fmt.Sprintf("network:%s, lock:%s", network, l.Path()))
	}
	return l, nil
}

// Remove deletes the record of network, a missing record is not an error
func Remove(dir, network string) error {
	if err := os.Remove(Path(dir, network)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func Load(dir, network string) (*Record, error) {
	data, err := os.ReadFile(Path(dir, network))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotDeployed.Wrap(fmt.Sprintf("network:%s", network))
		}
		return nil, err
	}
	r := &Record{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, ErrCorruptedRecord.Wrap(err.Error())
	}
	return r, nil
}

// Save writes the record through a temp file so a crash never leaves a partial record.
// A record on disk that captured a coin price is never replaced by one that doesn't carry the same capture.
func Save(dir string, r *Record) error {
	p := Path(dir, r.Network)
	prev, err := Load(dir, r.Network)
	switch {
	case err == nil:
		if err := keepsCapture(prev, r); err != nil {
			return err
		}
	case !errors.Is(err, ErrNotDeployed):
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ContractName+".*.tmp")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func keepsCapture(prev, next *Record) error {
	if !prev.Fetched {
		return nil
	}
	if next.Fetched && next.PriceSource == prev.PriceSource && next.CoinPrice == prev.CoinPrice && next.CapturedPair == prev.CapturedPair {
		return nil
	}
	return feedertypes.ErrAlreadyFetched.Wrap(fmt.Sprintf("record of network:%s captured coinPair:%s, price:%s, refusing fetched:%t, coinPair:%s, price:%s",
		prev.Network, prev.CapturedPair, prev.CoinPrice, next.Fetched, next.CapturedPair, next.CoinPrice))
}

// Snapshot builds the record of a running instance
func Snapshot(network, chainID string, f fetcher.F, nonces map[common.Address]uint64) *Record {
	s := f.Snapshot()
	ac := f.Access()
	r := &Record{
		Network:       network,
		ChainID:       chainID,
		PriceSource:   s.Source.Hex(),
		Administrator: ac.Administrator().Hex(),
		Renounced:     ac.Renounced(),
		Forwarder:     ac.Forwarder().Hex(),
		CoinPair:      s.CoinPair,
		Decimals:      s.Decimals,
		Fetched:       s.State == types.Fetched,
		CapturedPair:  s.CapturedPair,
		CoinPrice:     s.Price.String(),
	}
	if len(nonces) > 0 {
		r.Nonces = make(map[string]uint64, len(nonces))
		for addr, nonce := range nonces {
			r.Nonces[addr.Hex()] = nonce
		}
	}
	return r
}

// SetMock stores the state of the local mock aggregator in the record
func (r *Record) SetMock(a *mock.Aggregator) {
	s := a.State()
	r.Mock = &MockRecord{
		Address:     s.Address.Hex(),
		Decimals:    s.Decimals,
		Description: s.Description,
		Round:       s.Round.String(),
		Answer:      s.Answer.String(),
		UpdatedAt:   s.UpdatedAt.String(),
	}
}

// MockAggregator restores the local mock aggregator kept in the record
func (r *Record) MockAggregator() (*mock.Aggregator, error) {
	if r.Mock == nil {
		return nil, ErrCorruptedRecord.Wrap("no mock aggregator in record")
	}
	round, err := parseBig(r.Mock.Round)
	if err != nil {
		return nil, err
	}
	answer, err := parseBig(r.Mock.Answer)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseBig(r.Mock.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return mock.FromState(mock.State{
		Address:     common.HexToAddress(r.Mock.Address),
		Decimals:    r.Mock.Decimals,
		Description: r.Mock.Description,
		Round:       round,
		Answer:      answer,
		UpdatedAt:   updatedAt,
	}), nil
}

// Restore rebuilds the instance described by the record on top of source
func (r *Record) Restore(logger feedertypes.LoggerInf, source types.PriceSource) (*fetcher.Fetcher, error) {
	for _, addr := range []string{r.PriceSource, r.Administrator, r.Forwarder} {
		if !common.IsHexAddress(addr) {
			return nil, ErrCorruptedRecord.Wrap(fmt.Sprintf("invalid address:%q", addr))
		}
	}
	ac, err := access.RestoreController(logger.With("module", "access"), common.HexToAddress(r.Administrator), r.Renounced, common.HexToAddress(r.Forwarder))
	if err != nil {
		return nil, ErrCorruptedRecord.Wrap(err.Error())
	}
	price, err := parseBig(r.CoinPrice)
	if err != nil {
		return nil, err
	}
	state := types.Unfetched
	if r.Fetched {
		state = types.Fetched
	} else if price.Sign() != 0 {
		return nil, ErrCorruptedRecord.Wrap("unfetched record carries a coin price")
	}
	return fetcher.Restore(logger.With("module", "fetcher"), ac, source, types.Snapshot{
		Source:       common.HexToAddress(r.PriceSource),
		CoinPair:     r.CoinPair,
		Decimals:     r.Decimals,
		State:        state,
		CapturedPair: r.CapturedPair,
		Price:        price,
	})
}

// SignerNonces returns the persisted nonces keyed by signer
func (r *Record) SignerNonces() map[common.Address]uint64 {
	nonces := make(map[common.Address]uint64, len(r.Nonces))
	for addr, nonce := range r.Nonces {
		nonces[common.HexToAddress(addr)] = nonce
	}
	return nonces
}

func parseBig(s string) (*big.Int, error) {
	if len(s) == 0 {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrCorruptedRecord.Wrap(fmt.Sprintf("invalid integer:%q", s))
	}
	return v, nil
}
