package chainlink

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

const envConf = "oracle_env_chainlink.yaml"

var addressPattern = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")

// Config lists rpc endpoints per network and the coin price feed per chain id
type Config struct {
	URLs map[string]string `yaml:"urls"`
	// chainID -> proxyAddress_network
	Feeds map[string]string `yaml:"feeds"`
}

type feed struct {
	address common.Address
	network string
	url     string
}

func parseConfig(cfgPath string) (Config, error) {
	yamlFile, err := os.Open(path.Join(cfgPath, envConf))
	if err != nil {
		return Config{}, err
	}
	defer yamlFile.Close()
	var cfg Config
	if err = yaml.NewDecoder(yamlFile).Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// feedFor resolves the feed configured for chainID together with the rpc endpoint of its network
func (c Config) feedFor(chainID string) (feed, error) {
	value, ok := c.Feeds[chainID]
	if !ok {
		return feed{}, fmt.Errorf("no coin price feed configured for chainID:%s", chainID)
	}
	addrParsed := strings.Split(strings.TrimSpace(value), "_")
	if len(addrParsed) != 2 {
		return feed{}, fmt.Errorf("feed %s of chainID:%s should be formatted as address_network", value, chainID)
	}
	if !addressPattern.MatchString(addrParsed[0]) {
		return feed{}, fmt.Errorf("address %s non valid", addrParsed[0])
	}
	network := strings.ToLower(addrParsed[1])
	url := c.URLs[network]
	if len(url) == 0 {
		return feed{}, errors.New("url is empty")
	}
	return feed{
		address: common.HexToAddress(addrParsed[0]),
		network: network,
		url:     url,
	}, nil
}
