package server

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	MethodTransferAdministrator = "transferAdministrator"
	MethodRenounceAdministrator = "renounceAdministrator"
	MethodSetForwarder          = "setForwarder"
	MethodFetchPrice            = "fetchPrice"
)

var methods = map[string]bool{
	MethodTransferAdministrator: true,
	MethodRenounceAdministrator: false,
	MethodSetForwarder:          true,
	MethodFetchPrice:            false,
}

var (
	errUnknownMethod    = errors.New("unknown method")
	errMissingArgument  = errors.New("method requires an address argument")
	errInvalidSignature = errors.New("invalid signature")
	errSignerMismatch   = errors.New("signature doesn't match from")
)

// SignedCall is a mutating call submitted over http, the recovered signer is the caller
type SignedCall struct {
	From   string `json:"from,omitempty"`
	Method string `json:"method"`
	// address argument of transferAdministrator and setForwarder
	Arg       string `json:"arg,omitempty"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func (c *SignedCall) validate() error {
	needsArg, ok := methods[c.Method]
	if !ok {
		return fmt.Errorf("%w:%s", errUnknownMethod, c.Method)
	}
	if needsArg && !common.IsHexAddress(c.Arg) {
		return fmt.Errorf("%w, method:%s, arg:%q", errMissingArgument, c.Method, c.Arg)
	}
	return nil
}

func (c *SignedCall) argAddress() common.Address {
	return common.HexToAddress(c.Arg)
}

// Digest is the EIP-191 hash signed by the caller, bound to the chain and the price source of the instance
func (c *SignedCall) Digest(chainID string, source common.Address) []byte {
	arg := ""
	if len(c.Arg) > 0 {
		arg = common.HexToAddress(c.Arg).Hex()
	}
	msg := fmt.Sprintf("%s:%s:%s:%s:%d", chainID, source.Hex(), c.Method, arg, c.Nonce)
	return accounts.TextHash([]byte(msg))
}

// Sign fills From and Signature with key
func (c *SignedCall) Sign(key *ecdsa.PrivateKey, chainID string, source common.Address) error {
	sig, err := crypto.Sign(c.Digest(chainID, source), key)
	if err != nil {
		return err
	}
	c.From = crypto.PubkeyToAddress(key.PublicKey).Hex()
	c.Signature = hexutil.Encode(sig)
	return nil
}

// Signer recovers the address which signed the call
func (c *SignedCall) Signer(chainID string, source common.Address) (common.Address, error) {
	sig, err := hexutil.Decode(c.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, errInvalidSignature
	}
	// accept both 0/1 and 27/28 recovery ids
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(c.Digest(chainID, source), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w:%v", errInvalidSignature, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if len(c.From) > 0 && common.HexToAddress(c.From) != signer {
		return common.Address{}, errSignerMismatch
	}
	return signer, nil
}

type txResponse struct {
	Method string `json:"method"`
	Caller string `json:"caller"`
	Nonce  uint64 `json:"nonce"`
}

type errResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	CoinPair string `json:"coinPair,omitempty"`
	Price    string `json:"price,omitempty"`
}

type rolesResponse struct {
	Administrator string `json:"administrator"`
	Forwarder     string `json:"forwarder"`
	Renounced     bool   `json:"renounced"`
}

type sourceResponse struct {
	Address  string `json:"address"`
	CoinPair string `json:"coinPair"`
	Decimals uint8  `json:"decimals"`
}

type eventMsg struct {
	Event         string `json:"event"`
	PreviousAdmin string `json:"previousAdmin,omitempty"`
	NewAdmin      string `json:"newAdmin,omitempty"`
	CoinPair      string `json:"coinPair,omitempty"`
	Price         string `json:"price,omitempty"`
}
