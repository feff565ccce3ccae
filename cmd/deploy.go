package cmd

import (
	"fmt"
	"math/big"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/access"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/deployment"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/chainlink"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/mock"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/fetcher/types"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

const (
	flagFrom     = "from"
	flagMockFrom = "mock-from"
	flagReset    = "reset"
)

func init() {
	deployCmd.Flags().String(flagFrom, "admin", "account deploying the fetcher, it becomes the administrator")
	deployCmd.Flags().String(flagMockFrom, "chainlink", "account deploying the mock aggregator on the local network")
	deployCmd.Flags().Bool(flagReset, false, "replace an existing deployment of the network")
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "deploy a fetcher bound to the coin price feed of the configured network",
	Long:  "Deploy a fetcher bound to the coin price feed of the configured network. On the local network a mock aggregator is deployed first with the configured decimals and initial answer.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		unlock, err := lockDeployment()
		if err != nil {
			return err
		}
		defer unlock()
		reset, _ := cmd.Flags().GetBool(flagReset)
		exists := deployment.Exists(conf.Deployments, conf.Network)
		if exists && !reset {
			return deployment.ErrAlreadyDeployed.Wrap(fmt.Sprintf("network:%s, record:%s", conf.Network, deployment.Path(conf.Deployments, conf.Network)))
		}
		from, _ := cmd.Flags().GetString(flagFrom)
		admin, err := accountAddress(from)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var (
			source types.PriceSource
			agg    *mock.Aggregator
		)
		if conf.Network == feedertypes.NetworkLocal {
			mockFrom, _ := cmd.Flags().GetString(flagMockFrom)
			if agg, err = deployMock(mockFrom, admin); err != nil {
				return err
			}
			source = agg
		} else {
			s, err := chainlink.Init(ctx, feedertypes.GetLogger("chainlink"), sourcesPath, conf.ChainID)
			if err != nil {
				return err
			}
			defer s.Close()
			source = s
		}

		ac, err := access.NewController(feedertypes.GetLogger("access"), admin)
		if err != nil {
			return err
		}
		f, err := fetcher.New(ctx, feedertypes.GetLogger("fetcher"), ac, source)
		if err != nil {
			return err
		}
		r := deployment.Snapshot(conf.Network, conf.ChainID, f, nil)
		if agg != nil {
			r.SetMock(agg)
		}
		if exists {
			// a reset replaces the record, captured price included
			if err := deployment.Remove(conf.Deployments, conf.Network); err != nil {
				return err
			}
			logger.Info("previous deployment removed", "network", conf.Network)
		}
		if err := deployment.Save(conf.Deployments, r); err != nil {
			return err
		}
		logger.Info("fetcher deployed", "network", conf.Network, "chainID", conf.ChainID, "priceSource", r.PriceSource, "coinPair", r.CoinPair, "administrator", r.Administrator)
		fmt.Printf("%s deployed successfully, price source:%s, record:%s\n", deployment.ContractName, r.PriceSource, deployment.Path(conf.Deployments, conf.Network))
		return nil
	},
}

// deployMock places the mock at the first contract address of its deployer, falling back to the administrator when no such account is configured
func deployMock(from string, fallback common.Address) (*mock.Aggregator, error) {
	deployer, err := accountAddress(from)
	if err != nil {
		logger.Debug("mock deployer not configured, use administrator", "account", from, "error", err)
		deployer = fallback
	}
	answer, ok := new(big.Int).SetString(conf.Mock.InitialAnswer, 10)
	if !ok {
		return nil, feedertypes.ErrInvalidArgument.Wrap(fmt.Sprintf("invalid mock initial answer:%q", conf.Mock.InitialAnswer))
	}
	agg := mock.NewAggregator(crypto.CreateAddress(deployer, 0), conf.Mock.Decimals, answer)
	if len(conf.Mock.Description) > 0 {
		agg.SetDescription(conf.Mock.Description)
	}
	logger.Info("mock aggregator deployed", "address", agg.Address().Hex(), "decimals", conf.Mock.Decimals, "initialAnswer", answer.String())
	return agg, nil
}
