// Package aggregatorv3 is a read-only binding of chainlink's AggregatorV3Interface
package aggregatorv3

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const AggregatorV3InterfaceABI = `[
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"description","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"version","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// LatestRoundData is the output of latestRoundData
type LatestRoundData struct {
	RoundId         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

// AggregatorV3Interface is a read-only binding to a deployed aggregator or aggregator proxy
type AggregatorV3Interface struct {
	contract *bind.BoundContract
}

func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(AggregatorV3InterfaceABI))
}

func NewAggregatorV3Interface(address common.Address, caller bind.ContractCaller) (*AggregatorV3Interface, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}
	return &AggregatorV3Interface{
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
	}, nil
}

func (a *AggregatorV3Interface) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (a *AggregatorV3Interface) Description(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "description"); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (a *AggregatorV3Interface) Version(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "version"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (a *AggregatorV3Interface) LatestRoundData(opts *bind.CallOpts) (LatestRoundData, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "latestRoundData"); err != nil {
		return LatestRoundData{}, err
	}
	return unpackRound(out), nil
}

func unpackRound(out []interface{}) LatestRoundData {
	return LatestRoundData{
		RoundId:         *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Answer:          *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		StartedAt:       *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		UpdatedAt:       *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		AnsweredInRound: *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
	}
}
