package types

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// accounts.mnemonic holds the seed of index-valued named accounts
	mnemonicKey = "mnemonic"
	coinTypeETH = 60
)

// AccountKey resolves a named account. The configured value is either a hex private key
// or an address index derived from accounts.mnemonic along m/44'/60'/0'/0/index.
func (c *Config) AccountKey(name string) (*ecdsa.PrivateKey, error) {
	name = strings.ToLower(name)
	value, ok := c.Accounts[name]
	if !ok || len(value) == 0 || name == mnemonicKey {
		return nil, ErrNoAccount.Wrap(fmt.Sprintf("name:%s", name))
	}
	if hexKey := strings.TrimPrefix(value, "0x"); len(hexKey) == 64 {
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, ErrInvalidArgument.Wrap(fmt.Sprintf("invalid private key of account:%s, error:%v", name, err))
		}
		return key, nil
	}
	index, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return nil, ErrInvalidArgument.Wrap(fmt.Sprintf("account:%s is neither a private key nor an address index", name))
	}
	return deriveKey(c.Accounts[mnemonicKey], uint32(index))
}

func deriveKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if len(mnemonic) == 0 {
		return nil, ErrNoAccount.Wrap(fmt.Sprintf("index:%d set without accounts.mnemonic", index))
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInitFail.Wrap("invalid mnemonic from config")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, ErrInitFail.Wrap(err.Error())
	}
	master, chainCode := hd.ComputeMastersFromSeed(seed)
	path := hd.NewFundraiserParams(0, coinTypeETH, index).String()
	derived, err := hd.DerivePrivateKeyForPath(master, chainCode, path)
	if err != nil {
		return nil, ErrInitFail.Wrap(fmt.Sprintf("failed to derive path:%s, error:%v", path, err))
	}
	return crypto.ToECDSA(derived)
}
