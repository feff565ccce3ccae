package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func init() {
	for _, c := range []*cobra.Command{setForwarderCmd, transferAdminCmd, renounceAdminCmd} {
		c.Flags().String(flagFrom, "admin", "account sending the call")
	}
	fetchCmd.Flags().String(flagFrom, "forwarder", "account sending the call")
}

// runCall loads the instance under the deployment lock, runs call as the account named by --from and persists the outcome
func runCall(cmd *cobra.Command, call func(i *instance, caller common.Address) error) error {
	from, _ := cmd.Flags().GetString(flagFrom)
	caller, err := accountAddress(from)
	if err != nil {
		return err
	}
	i, err := openInstance(cmd.Context())
	if err != nil {
		return err
	}
	defer i.close()
	if err := call(i, caller); err != nil {
		return err
	}
	return i.save(nil)
}

var setForwarderCmd = &cobra.Command{
	Use:   "set-forwarder [address|account]",
	Short: "designate the forwarder allowed to fetch the coin price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		forwarder, err := resolveAddress(args[0])
		if err != nil {
			return err
		}
		return runCall(cmd, func(i *instance, caller common.Address) error {
			if err := i.fetcher.Access().SetForwarder(caller, forwarder); err != nil {
				return err
			}
			fmt.Printf("forwarder set to %s\n", forwarder.Hex())
			return nil
		})
	},
}

var transferAdminCmd = &cobra.Command{
	Use:   "transfer-admin [address|account]",
	Short: "hand the administrator role to another address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newAdmin, err := resolveAddress(args[0])
		if err != nil {
			return err
		}
		return runCall(cmd, func(i *instance, caller common.Address) error {
			if err := i.fetcher.Access().TransferAdministrator(caller, newAdmin); err != nil {
				return err
			}
			fmt.Printf("administrator transferred from %s to %s\n", caller.Hex(), newAdmin.Hex())
			return nil
		})
	},
}

var renounceAdminCmd = &cobra.Command{
	Use:   "renounce-admin",
	Short: "give up the administrator role, the forwarder can never be changed afterwards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCall(cmd, func(i *instance, caller common.Address) error {
			if err := i.fetcher.Access().RenounceAdministrator(caller); err != nil {
				return err
			}
			fmt.Printf("administrator %s renounced\n", caller.Hex())
			return nil
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "fetch the coin price once from the price source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCall(cmd, func(i *instance, caller common.Address) error {
			if err := i.fetcher.FetchPrice(cmd.Context(), caller); err != nil {
				return err
			}
			info := i.fetcher.PriceInfo()
			fmt.Printf("LatestCoinPrice coinPair:%s, price:%s, decimals:%d\n", info.CoinPair, info.Price, info.Decimals)
			return nil
		})
	},
}
