package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/deployment"
	"github.com/Nuklai/nuklai-contracts-bitcoin-form/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

const flagNonce = "nonce"

func init() {
	signCmd.Flags().String(flagFrom, "admin", "account signing the call")
	signCmd.Flags().Uint64(flagNonce, 0, "nonce of the call, must be greater than the last nonce accepted from the signer (default is last+1)")
}

var signCmd = &cobra.Command{
	Use:   "sign [method] [address|account]",
	Short: "sign a call to submit to the http server",
	Long: `Sign a call to submit to POST /v1/tx of a running server. Methods are
transferAdministrator [address], renounceAdministrator, setForwarder [address] and fetchPrice.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString(flagFrom)
		key, err := accountKey(from)
		if err != nil {
			return err
		}
		r, err := deployment.Load(conf.Deployments, conf.Network)
		if err != nil {
			return err
		}
		call := &server.SignedCall{Method: args[0]}
		if len(args) == 2 {
			arg, err := resolveAddress(args[1])
			if err != nil {
				return err
			}
			call.Arg = arg.Hex()
		}
		if call.Nonce, _ = cmd.Flags().GetUint64(flagNonce); call.Nonce == 0 {
			call.Nonce = r.SignerNonces()[crypto.PubkeyToAddress(key.PublicKey)] + 1
		}
		if err := call.Sign(key, r.ChainID, common.HexToAddress(r.PriceSource)); err != nil {
			return err
		}
		out, err := json.Marshal(call)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
