package types

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NetworkLocal runs the fetcher against an in-process mock aggregator instead of a chain
const NetworkLocal = "local"

type MockConfig struct {
	Decimals      uint8  `mapstructure:"decimals"`
	InitialAnswer string `mapstructure:"initialanswer"`
	Description   string `mapstructure:"description"`
}

type ServerConfig struct {
	Listen    string  `mapstructure:"listen"`
	RateLimit float64 `mapstructure:"ratelimit"`
	Burst     int     `mapstructure:"burst"`
}

type Config struct {
	Network string `mapstructure:"network"`
	ChainID string `mapstructure:"chainid"`
	// named accounts, name -> hex encoded secp256k1 private key
	Accounts    map[string]string `mapstructure:"accounts"`
	Deployments string            `mapstructure:"deployments"`
	LogLevel    string            `mapstructure:"loglevel"`
	Mock        MockConfig        `mapstructure:"mock"`
	Server      ServerConfig      `mapstructure:"server"`
}

type LoggerInf log.Logger

const TimeLayout = "2006-01-02 15:04:05"

var logger log.Logger = NewLogger(zapcore.InfoLevel)

type LoggerWrapper struct {
	*zap.SugaredLogger
}

func (l *LoggerWrapper) Info(msg string, keyvals ...interface{}) {
	l.Infow(msg, keyvals...)
}
func (l *LoggerWrapper) Debug(msg string, keyvals ...interface{}) {
	l.Debugw(msg, keyvals...)
}
func (l *LoggerWrapper) Error(msg string, keyvals ...interface{}) {
	l.Errorw(msg, keyvals...)
}

func (l *LoggerWrapper) With(keyvals ...interface{}) log.Logger {
	return &LoggerWrapper{
		l.SugaredLogger.With(keyvals...),
	}
}

func NewLogger(level zapcore.Level) *LoggerWrapper {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeLayout)
	config.Encoding = "console"
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.StacktraceKey = ""
	logger, _ := config.Build()
	return &LoggerWrapper{
		logger.Sugar(),
	}
}

// ParseLogLevel maps a config value to a zap level, unknown values fall back to info
func ParseLogLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func SetLogger(l LoggerInf) LoggerInf {
	if l != nil {
		logger = l
	}
	return logger
}

func GetLogger(component string) LoggerInf {
	if logger == nil {
		return nil
	}
	if len(component) > 0 {
		return logger.With("component", component)
	}
	return logger
}

type Err struct {
	parent  *Err
	message string
}

func NewErr(message string) *Err {
	return &Err{
		parent:  nil,
		message: message,
	}
}

func (e *Err) Error() string {
	details := e.message
	m := e.Unwrap()
	if mErr, ok := m.(*Err); ok {
		for mErr != nil {
			details = fmt.Sprintf("%s.{%s}", mErr.message, details)
			e = mErr
			m = e.Unwrap()
			if mErr, ok = m.(*Err); !ok {
				break
			}
		}
	}
	return fmt.Sprintf("err:%s, details:{%s}", e.message, details)
}

func (e *Err) Wrap(message string) *Err {
	return &Err{
		parent:  e,
		message: message,
	}
}

func (e *Err) Unwrap() error {
	if e == nil || e.parent == nil {
		return nil
	}
	return e.parent
}

var (
	v *viper.Viper

	ErrInitFail  = NewErr("failed to initialization")
	ErrNoAccount = NewErr("account not configured")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", NetworkLocal)
	v.SetDefault("chainid", "31337")
	v.SetDefault("deployments", "deployments")
	v.SetDefault("loglevel", "info")
	v.SetDefault("mock.decimals", 8)
	v.SetDefault("mock.initialanswer", "0")
	v.SetDefault("mock.description", "v0.8/tests/MockV3Aggregator.sol")
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.ratelimit", 10)
	v.SetDefault("server.burst", 20)
}

// InitConfig will only read path cfgFile once, and for reload after InitConfig, should use ReloadConfig
func InitConfig(cfgFile string) (*Config, error) {
	if len(cfgFile) == 0 {
		return nil, errors.New("empty file name")
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return nil, err
	}
	v = viper.New()
	setDefaults(v)
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COINPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, ErrInitFail.Wrap(fmt.Sprintf("failed to read config file:%s, error:%v", cfgFile, err))
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, ErrInitFail.Wrap(err.Error())
	}
	return conf, nil
}

// ReloadConfig will reload config file with path set by InitConfig
func ReloadConfig() (*Config, error) {
	if v == nil {
		return nil, ErrInitFail.Wrap("config not initialized")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, ErrInitFail.Wrap(fmt.Sprintf("failed to reload config file:%s, error:%v", v.ConfigFileUsed(), err))
	}
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, ErrInitFail.Wrap(err.Error())
	}
	return conf, nil
}
