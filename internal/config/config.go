package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
	"github.com/tdex-network/tdex-stealth/internal/core/application/bundle"
	"github.com/tdex-network/tdex-stealth/internal/core/application/planner"
	"github.com/tdex-network/tdex-stealth/internal/core/application/scheduler"
	"github.com/tdex-network/tdex-stealth/internal/core/application/transfer"
	"github.com/vulpemventures/go-elements/network"
)

const (
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// HTTPListeningPortKey is the port where the HTTP interface will listen on
	HTTPListeningPortKey = "HTTP_LISTENING_PORT"
	// NetworkKey is the network the stealth addresses are encoded for. Either
	// "liquid", "testnet" or "regtest"
	NetworkKey = "NETWORK"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// PathIndexStoreKey selects where the path index counters are kept, the
	// db or a redis instance shared by more daemons
	PathIndexStoreKey = "PATH_INDEX_STORE"
	// RedisAddrKey is the <host:port> address of the redis instance
	RedisAddrKey = "REDIS_ADDR"
	// RelayTypeKey selects the relay, either an http one or the in-process
	// simulated ledger
	RelayTypeKey = "RELAY_TYPE"
	// RelayURLKey is the base url of the http relay
	RelayURLKey = "RELAY_URL"
	// RelayRateLimitKey is the max number of requests per second to the relay
	RelayRateLimitKey = "RELAY_RATE_LIMIT"
	// SimulatedFundsKey is the balance given to the wallet's sender address
	// by the simulated relay, in base units
	SimulatedFundsKey = "SIMULATED_FUNDS"
	// SimulatedLandingDelayKey is how long the simulated relay takes to land
	// accepted bundles
	SimulatedLandingDelayKey = "SIMULATED_LANDING_DELAY"
	// HopFeeKey is the network fee paid for every hop, in base units
	HopFeeKey = "HOP_FEE"
	// MinHopAmountKey is the min amount a hop can move, in base units
	MinHopAmountKey = "MIN_HOP_AMOUNT"
	// FeeDriftBpsKey is the max share of the amount spent in fees, in basis points
	FeeDriftBpsKey = "FEE_DRIFT_BPS"
	// DelayDistributionKey is the distribution of the delays between hops,
	// either "uniform" or "skewed"
	DelayDistributionKey = "DELAY_DISTRIBUTION"
	// MaxSubmitAttemptsKey is the max number of bundles submitted for the same hops
	MaxSubmitAttemptsKey = "MAX_SUBMIT_ATTEMPTS"
	// BaseBackoffKey is the wait before the first resubmission
	BaseBackoffKey = "BASE_BACKOFF"
	// MaxBackoffKey is the max wait between two resubmissions
	MaxBackoffKey = "MAX_BACKOFF"
	// SubmitTimeoutKey bounds every submission call to the relay
	SubmitTimeoutKey = "SUBMIT_TIMEOUT"
	// ConfirmTimeoutKey bounds the polling of the status of a bundle
	ConfirmTimeoutKey = "CONFIRM_TIMEOUT"
	// PollIntervalKey is the interval between two bundle status queries
	PollIntervalKey = "POLL_INTERVAL"
	// TransferTimeoutKey is the max duration of a transfer, 0 for no limit
	TransferTimeoutKey = "TRANSFER_TIMEOUT"
	// KafkaBrokersKey is the comma separated list of kafka brokers. Events are
	// not published to kafka if empty
	KafkaBrokersKey = "KAFKA_BROKERS"
	// KafkaTopicKey is the kafka topic of the transfer events
	KafkaTopicKey = "KAFKA_TOPIC"
	// WebhookEndpointsKey is the comma separated list of endpoints notified
	// of every transfer event at startup
	WebhookEndpointsKey = "WEBHOOK_ENDPOINTS"
	// WebhookSecretKey is the secret used to sign the token of the webhooks
	// added at startup
	WebhookSecretKey = "WEBHOOK_SECRET"
	// StatsIntervalKey defines interval for printing basic statistics, 0 to disable
	StatsIntervalKey = "STATS_INTERVAL"
	// WalletMnemonicFileKey defines full path to a file that contains the
	// mnemonic of the daemon's wallet
	WalletMnemonicFileKey = "WALLET_MNEMONIC_FILE"
	// WalletSessionIDKey is the id of the wallet session, the path index
	// counter is bound to it
	WalletSessionIDKey = "WALLET_SESSION_ID"

	DbLocation       = "db"
	ProfilerLocation = "stats"

	DBBadger   = "badger"
	DBInMemory = "inmemory"

	PathIndexStoreDB    = "db"
	PathIndexStoreRedis = "redis"

	RelayHTTP      = "http"
	RelaySimulated = "simulated"
)

var (
	vip            *viper.Viper
	defaultDatadir = btcutil.AppDataDir("tdex-stealth", false)

	supportedDBTypes = map[string]struct{}{
		DBBadger:   {},
		DBInMemory: {},
	}
	supportedPathIndexStores = map[string]struct{}{
		PathIndexStoreDB:    {},
		PathIndexStoreRedis: {},
	}
	supportedRelays = map[string]struct{}{
		RelayHTTP:      {},
		RelaySimulated: {},
	}
	supportedNetworks = map[string]*network.Network{
		network.Liquid.Name:  &network.Liquid,
		network.Testnet.Name: &network.Testnet,
		network.Regtest.Name: &network.Regtest,
	}
)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("STEALTH")
	vip.AutomaticEnv()

	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(HTTPListeningPortKey, 9080)
	vip.SetDefault(NetworkKey, network.Liquid.Name)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(PathIndexStoreKey, PathIndexStoreDB)
	vip.SetDefault(RelayTypeKey, RelayHTTP)
	vip.SetDefault(RelayRateLimitKey, 20)
	vip.SetDefault(SimulatedFundsKey, 0)
	vip.SetDefault(SimulatedLandingDelayKey, 0)
	vip.SetDefault(HopFeeKey, planner.DefaultHopFee)
	vip.SetDefault(MinHopAmountKey, planner.DefaultMinHopAmount)
	vip.SetDefault(FeeDriftBpsKey, planner.DefaultFeeDriftBps)
	vip.SetDefault(DelayDistributionKey, scheduler.DistributionUniform.String())
	vip.SetDefault(MaxSubmitAttemptsKey, bundle.DefaultMaxAttempts)
	vip.SetDefault(BaseBackoffKey, bundle.DefaultBaseBackoff)
	vip.SetDefault(MaxBackoffKey, bundle.DefaultMaxBackoff)
	vip.SetDefault(SubmitTimeoutKey, bundle.DefaultSubmitTimeout)
	vip.SetDefault(ConfirmTimeoutKey, bundle.DefaultConfirmTimeout)
	vip.SetDefault(PollIntervalKey, bundle.DefaultPollInterval)
	vip.SetDefault(TransferTimeoutKey, transfer.DefaultTransferTimeout)
	vip.SetDefault(KafkaTopicKey, "stealth.transfers")
	vip.SetDefault(StatsIntervalKey, 0)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetUint64(key string) uint64 {
	return vip.GetUint64(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetStringSlice returns the comma separated values of the given key.
func GetStringSlice(key string) []string {
	list := make([]string, 0)
	for _, v := range strings.Split(vip.GetString(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

func GetNetwork() *network.Network {
	return supportedNetworks[GetString(NetworkKey)]
}

func GetPlannerConfig() planner.Config {
	return planner.Config{
		HopFee:       GetUint64(HopFeeKey),
		MinHopAmount: GetUint64(MinHopAmountKey),
		FeeDriftBps:  GetUint64(FeeDriftBpsKey),
	}
}

func GetSubmitterConfig() bundle.Config {
	return bundle.Config{
		MaxAttempts:    GetInt(MaxSubmitAttemptsKey),
		BaseBackoff:    GetDuration(BaseBackoffKey),
		MaxBackoff:     GetDuration(MaxBackoffKey),
		SubmitTimeout:  GetDuration(SubmitTimeoutKey),
		ConfirmTimeout: GetDuration(ConfirmTimeoutKey),
		PollInterval:   GetDuration(PollIntervalKey),
	}
}

func GetTransferConfig() transfer.Config {
	cfg := transfer.DefaultConfig()
	cfg.TransferTimeout = GetDuration(TransferTimeoutKey)
	return cfg
}

func GetDelayDistribution() scheduler.Distribution {
	//nolint
	d, _ := scheduler.ParseDistribution(GetString(DelayDistributionKey))
	return d
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if _, ok := supportedNetworks[GetString(NetworkKey)]; !ok {
		return fmt.Errorf(
			"network must be one of '%s', '%s' or '%s'",
			network.Liquid.Name, network.Testnet.Name, network.Regtest.Name,
		)
	}

	if _, ok := supportedDBTypes[GetString(DBTypeKey)]; !ok {
		return fmt.Errorf("db type must be either '%s' or '%s'", DBBadger, DBInMemory)
	}

	pathIndexStore := GetString(PathIndexStoreKey)
	if _, ok := supportedPathIndexStores[pathIndexStore]; !ok {
		return fmt.Errorf(
			"path index store must be either '%s' or '%s'",
			PathIndexStoreDB, PathIndexStoreRedis,
		)
	}
	if pathIndexStore == PathIndexStoreRedis && GetString(RedisAddrKey) == "" {
		return fmt.Errorf("missing redis address")
	}

	relayType := GetString(RelayTypeKey)
	if _, ok := supportedRelays[relayType]; !ok {
		return fmt.Errorf("relay type must be either '%s' or '%s'", RelayHTTP, RelaySimulated)
	}
	if relayType == RelayHTTP && GetString(RelayURLKey) == "" {
		return fmt.Errorf("missing relay url")
	}
	if GetInt(RelayRateLimitKey) <= 0 {
		return fmt.Errorf("relay rate limit must be greater than zero")
	}

	if _, err := scheduler.ParseDistribution(GetString(DelayDistributionKey)); err != nil {
		return err
	}
	if GetDuration(TransferTimeoutKey) < 0 {
		return fmt.Errorf("transfer timeout must not be negative")
	}
	if GetDuration(StatsIntervalKey) < 0 {
		return fmt.Errorf("stats interval must not be negative")
	}

	if !vip.IsSet(WalletMnemonicFileKey) {
		return fmt.Errorf("missing wallet mnemonic file")
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}
	if GetDuration(StatsIntervalKey) > 0 {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
