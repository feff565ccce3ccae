package chainlink

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/chainlink/aggregatorv3"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/types"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var _ types.PriceSource = &Source{}

// Source reads a chainlink price feed proxy
type Source struct {
	logger     feedertypes.LoggerInf
	address    common.Address
	aggregator *aggregatorv3.AggregatorV3Interface
	client     *ethclient.Client
}

// Init dials the network of the feed configured for chainID in cfgPath/oracle_env_chainlink.yaml
func Init(ctx context.Context, logger feedertypes.LoggerInf, cfgPath, chainID string) (*Source, error) {
	cfg, err := parseConfig(cfgPath)
	if err != nil {
		return nil, feedertypes.ErrInitFail.Wrap(fmt.Sprintf("failed to parse config file, path:%s, error:%s", cfgPath, err))
	}
	f, err := cfg.feedFor(chainID)
	if err != nil {
		return nil, feedertypes.ErrInitFail.Wrap(fmt.Sprintf("config_file:%s, error:%s", envConf, err))
	}
	client, err := ethclient.DialContext(ctx, f.url)
	if err != nil {
		return nil, feedertypes.ErrInitFail.Wrap(fmt.Sprintf("fail to initialize ethClient, url:%s, error:%s", f.url, err))
	}
	s, err := NewSource(ctx, logger, f.address, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.client = client
	logger.Info("chainlink price feed initialized", "chainID", chainID, "network", f.network, "feed", f.address.Hex())
	return s, nil
}

// NewSource binds the aggregator at address, it fails when no contract is deployed there
func NewSource(ctx context.Context, logger feedertypes.LoggerInf, address common.Address, caller bind.ContractCaller) (*Source, error) {
	if ok, err := isContractAddress(ctx, address, caller); err != nil {
		return nil, fmt.Errorf("failed to get code at address:%s, error:%w", address.Hex(), err)
	} else if !ok {
		return nil, feedertypes.ErrInvalidArgument.Wrap(fmt.Sprintf("address %s is not a contract address", address.Hex()))
	}
	aggregator, err := aggregatorv3.NewAggregatorV3Interface(address, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to newAggregator from address:%s of chainlink, error:%w", address.Hex(), err)
	}
	return &Source{
		logger:     logger,
		address:    address,
		aggregator: aggregator,
	}, nil
}

func (s *Source) LatestRoundData(ctx context.Context) (*types.RoundData, error) {
	roundData, err := s.aggregator.LatestRoundData(&bind.CallOpts{Context: ctx})
	if err != nil {
		s.logger.Error("failed to get latestRoundData", "feed", s.address.Hex(), "error", err)
		return nil, err
	}
	return &types.RoundData{
		RoundId:         roundData.RoundId,
		Answer:          roundData.Answer,
		StartedAt:       roundData.StartedAt,
		UpdatedAt:       roundData.UpdatedAt,
		AnsweredInRound: roundData.AnsweredInRound,
	}, nil
}

func (s *Source) LatestValue(ctx context.Context) (*big.Int, error) {
	roundData, err := s.LatestRoundData(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("got latest round", "feed", s.address.Hex(), "roundID", roundData.RoundId.String(), "answer", roundData.Answer.String())
	return roundData.Answer, nil
}

func (s *Source) Description(ctx context.Context) (string, error) {
	return s.aggregator.Description(&bind.CallOpts{Context: ctx})
}

func (s *Source) Decimals(ctx context.Context) (uint8, error) {
	return s.aggregator.Decimals(&bind.CallOpts{Context: ctx})
}

func (s *Source) Address() common.Address {
	return s.address
}

// Close releases the rpc client when the source dialed it itself
func (s *Source) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func isContractAddress(ctx context.Context, address common.Address, caller bind.ContractCaller) (bool, error) {
	bytecode, err := caller.CodeAt(ctx, address, nil) // nil is latest block
	if err != nil {
		return false, err
	}
	return len(bytecode) > 0, nil
}
