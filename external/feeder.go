package external

import (
	"context"
	"path"

	"github.com/Nuklai/nuklai-contracts-bitcoin-form/cmd"
	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
)

// StartServer serves the deployed fetcher from an invoker instead of rootCmd, it blocks until ctx is done
func StartServer(ctx context.Context, cfgFile, sourcesPath string, logger feedertypes.LoggerInf) error {
	conf, err := feedertypes.InitConfig(cfgFile)
	if err != nil {
		return err
	}
	if len(sourcesPath) == 0 {
		sourcesPath = path.Dir(cfgFile)
	}
	if logger == nil {
		logger = feedertypes.NewLogger(feedertypes.ParseLogLevel(conf.LogLevel))
	}
	return cmd.RunServer(ctx, conf, logger, sourcesPath, "")
}
