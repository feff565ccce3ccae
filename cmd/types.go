package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/deployment"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/chainlink"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/mock"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/types"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// instance is a deployed fetcher loaded from its deployment record
type instance struct {
	record  *deployment.Record
	fetcher *fetcher.Fetcher
	// set on the local network only
	mock    *mock.Aggregator
	close   func()
}

func loadInstance(ctx context.Context) (*instance, error) {
	r, err := deployment.Load(conf.Deployments, conf.Network)
	if err != nil {
		return nil, err
	}
	if r.ChainID != conf.ChainID {
		return nil, deployment.ErrCorruptedRecord.Wrap(fmt.Sprintf("record chainID:%s doesn't match configured chainID:%s", r.ChainID, conf.ChainID))
	}
	i := &instance{record: r, close: func() {}}
	var source types.PriceSource
	if conf.Network == feedertypes.NetworkLocal {
		if i.mock, err = r.MockAggregator(); err != nil {
			return nil, err
		}
		source = i.mock
	} else {
		s, err := chainlink.Init(ctx, feedertypes.GetLogger("chainlink"), sourcesPath, conf.ChainID)
		if err != nil {
			return nil, err
		}
		if s.Address() != common.HexToAddress(r.PriceSource) {
			s.Close()
			return nil, deployment.ErrCorruptedRecord.Wrap(fmt.Sprintf("configured feed:%s doesn't match deployed price source:%s", s.Address().Hex(), r.PriceSource))
		}
		source = s
		i.close = s.Close
	}
	if i.fetcher, err = r.Restore(feedertypes.GetLogger(""), source); err != nil {
		i.close()
		return nil, err
	}
	return i, nil
}

// openInstance is loadInstance under the deployment lock of the network, close releases the lock
func openInstance(ctx context.Context) (*instance, error) {
	unlock, err := lockDeployment()
	if err != nil {
		return nil, err
	}
	i, err := loadInstance(ctx)
	if err != nil {
		unlock()
		return nil, err
	}
	closeSource := i.close
	i.close = func() {
		closeSource()
		unlock()
	}
	return i, nil
}

// lockDeployment holds the deployment of the configured network until unlock is called
func lockDeployment() (unlock func(), err error) {
	l, err := deployment.Lock(conf.Deployments, conf.Network)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Unlock(); err != nil {
			logger.Error("failed to unlock deployment", "network", conf.Network, "error", err)
		}
	}, nil
}

// save persists the instance, nonces of the http surface are kept as they were loaded unless given
func (i *instance) save(nonces map[common.Address]uint64) error {
	if nonces == nil {
		nonces = i.record.SignerNonces()
	}
	r := deployment.Snapshot(conf.Network, conf.ChainID, i.fetcher, nonces)
	if i.mock != nil {
		r.SetMock(i.mock)
	}
	if err := deployment.Save(conf.Deployments, r); err != nil {
		return err
	}
	i.record = r
	return nil
}

// accountKey resolves a named account of the config to its private key
func accountKey(name string) (*ecdsa.PrivateKey, error) {
	return conf.AccountKey(name)
}

func accountAddress(name string) (common.Address, error) {
	key, err := accountKey(name)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// resolveAddress accepts either a hex address or the name of a configured account
func resolveAddress(arg string) (common.Address, error) {
	if common.IsHexAddress(arg) {
		return common.HexToAddress(arg), nil
	}
	return accountAddress(arg)
}
