package cmd

import (
	"errors"
	"fmt"
	"math/big"

	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/spf13/cobra"
)

var errNotLocal = errors.New("mock aggregator only exists on the local network")

func init() {
	mockCmd.AddCommand(mockUpdateAnswerCmd)
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "operate the mock aggregator of the local network",
}

var mockUpdateAnswerCmd = &cobra.Command{
	Use:   "update-answer [answer]",
	Short: "push a new answer to the mock aggregator",
	Long:  "Push a new answer to the mock aggregator in a new round. A fetcher that already fetched keeps its captured price.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if conf.Network != feedertypes.NetworkLocal {
			return fmt.Errorf("%w, network:%s", errNotLocal, conf.Network)
		}
		answer, ok := new(big.Int).SetString(args[0], 10)
		if !ok {
			return feedertypes.ErrInvalidArgument.Wrap(fmt.Sprintf("invalid answer:%q", args[0]))
		}
		i, err := openInstance(cmd.Context())
		if err != nil {
			return err
		}
		defer i.close()
		i.mock.UpdateAnswer(answer)
		if err := i.save(nil); err != nil {
			return err
		}
		round, err := i.mock.LatestRoundData(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("mock aggregator %s answer:%s, round:%s\n", i.mock.Address().Hex(), round.Answer, round.RoundId)
		return nil
	},
}
