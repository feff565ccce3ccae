package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/server"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

const flagListen = "listen"

func init() {
	startCmd.Flags().String(flagListen, "", "address the http server listens on, overrides server.listen of the config")
}

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "serve the deployed fetcher over http",
	Long: `Serve the deployed fetcher over http. Reads are open, mutating calls are signed
by the caller (see the sign command) and every accepted call is persisted to the deployment record.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		listen, _ := cmd.Flags().GetString(flagListen)
		return RunServer(ctx, conf, logger, sourcesPath, listen)
	},
}

// RunServer serves the fetcher deployed on the network of c until ctx is done, listen overrides c.Server.Listen when set
func RunServer(ctx context.Context, c *feedertypes.Config, l feedertypes.LoggerInf, sources, listen string) error {
	if l = feedertypes.SetLogger(l); l == nil {
		return errors.New("logger is not initialized")
	}
	conf, logger, sourcesPath = c, l, sources

	// the lock is held for the life of the server so no other process mutates the record meanwhile
	i, err := openInstance(ctx)
	if err != nil {
		return err
	}
	defer i.close()

	serverConf := conf.Server
	if len(listen) > 0 {
		serverConf.Listen = listen
	}
	commit := func(nonces map[common.Address]uint64) error {
		return i.save(nonces)
	}
	s := server.New(feedertypes.GetLogger("server"), serverConf, conf.ChainID, i.fetcher, i.record.SignerNonces(), commit)
	if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
