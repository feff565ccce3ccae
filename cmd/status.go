package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type status struct {
	Network       string `yaml:"network"`
	ChainID       string `yaml:"chainId"`
	PriceSource   string `yaml:"priceSource"`
	CoinPair      string `yaml:"coinPair"`
	Decimals      uint8  `yaml:"decimals"`
	Fetched       bool   `yaml:"fetched"`
	CoinPrice     string `yaml:"coinPrice"`
	Administrator string `yaml:"administrator"`
	Renounced     bool   `yaml:"renounced"`
	Forwarder     string `yaml:"forwarder"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show the roles and the captured coin price of the deployed fetcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		i, err := loadInstance(cmd.Context())
		if err != nil {
			return err
		}
		defer i.close()
		info := i.fetcher.PriceInfo()
		ac := i.fetcher.Access()
		out, err := yaml.Marshal(status{
			Network:       conf.Network,
			ChainID:       conf.ChainID,
			PriceSource:   i.fetcher.PriceSourceAddress().Hex(),
			CoinPair:      info.CoinPair,
			Decimals:      info.Decimals,
			Fetched:       info.Fetched,
			CoinPrice:     info.Price,
			Administrator: ac.Administrator().Hex(),
			Renounced:     ac.Renounced(),
			Forwarder:     ac.Forwarder().Hex(),
		})
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}
