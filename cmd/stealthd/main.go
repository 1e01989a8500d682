package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-stealth/internal/config"
	"github.com/tdex-network/tdex-stealth/internal/core/application/allocator"
	"github.com/tdex-network/tdex-stealth/internal/core/application/bundle"
	"github.com/tdex-network/tdex-stealth/internal/core/application/planner"
	"github.com/tdex-network/tdex-stealth/internal/core/application/pubsub"
	"github.com/tdex-network/tdex-stealth/internal/core/application/scheduler"
	"github.com/tdex-network/tdex-stealth/internal/core/application/transfer"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	eventpubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub"
	kafkapubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub/kafka"
	metricspubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub/metrics"
	webhookpubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub/webhook"
	httprelay "github.com/tdex-network/tdex-stealth/internal/infrastructure/relay/http"
	simulatedrelay "github.com/tdex-network/tdex-stealth/internal/infrastructure/relay/simulated"
	dbbadger "github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/db/inmemory"
	redisstore "github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/redis"
	walletsession "github.com/tdex-network/tdex-stealth/internal/infrastructure/wallet"
	httpinterface "github.com/tdex-network/tdex-stealth/internal/interfaces/http"
	"github.com/tdex-network/tdex-stealth/pkg/randutil"
	"github.com/tdex-network/tdex-stealth/pkg/stats"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

const (
	defaultSessionID = "default"
	shutdownTimeout  = time.Minute
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to initialize config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	deriver, err := stealth.NewDeriver(stealth.NewDeriverOpts{
		Network: config.GetNetwork(),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize stealth deriver")
	}

	session, err := newWalletSession(deriver)
	if err != nil {
		log.WithError(err).Fatal("failed to open wallet session")
	}
	defer session.Lock()

	repoManager, err := newRepoManager()
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}
	defer repoManager.Close()

	pathIndexRepo, err := newPathIndexRepository(ctx, repoManager)
	if err != nil {
		log.WithError(err).Fatal("failed to open path index store")
	}

	relay, simulated, err := newRelay(session)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize relay")
	}

	webhooks := webhookpubsub.NewPublisher(0)
	publisher, err := newEventPublisher(webhooks)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize event publishers")
	}
	pubsubSvc := pubsub.NewService(publisher)
	defer pubsubSvc.Close()

	transferSvc, err := newTransferService(
		repoManager, pathIndexRepo, relay, deriver, pubsubSvc,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize transfer service")
	}

	if err := transferSvc.FailInterruptedTransfers(ctx); err != nil {
		log.WithError(err).Fatal("failed to terminate interrupted transfers")
	}

	httpOpts := httpinterface.ServiceOpts{
		Address:     fmt.Sprintf(":%d", config.GetInt(config.HTTPListeningPortKey)),
		TransferSvc: transferSvc,
		Session:     session,
		Webhooks:    webhooks,
		Gatherer:    prometheus.DefaultGatherer,
	}
	if simulated {
		httpOpts.Relay = relay
	}
	httpSvc, err := httpinterface.NewService(httpOpts)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize http interface")
	}
	if err := httpSvc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start http interface")
	}

	stats.EnableMemoryStatistics(ctx, stats.Opts{
		Interval:        config.GetDuration(config.StatsIntervalKey),
		DumpFile:        filepath.Join(config.GetDatadir(), config.ProfilerLocation, "stats"),
		Gatherer:        prometheus.DefaultGatherer,
		ActiveTransfers: transferSvc.ActiveTransfers,
	})

	log.WithFields(log.Fields{
		"network": config.GetNetwork().Name,
		"relay":   config.GetString(config.RelayTypeKey),
		"sender":  session.SenderAddress(),
	}).Info("stealth daemon started")

	<-ctx.Done()

	log.Info("shutting down daemon")
	httpSvc.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := transferSvc.Wait(waitCtx); err != nil {
		log.WithError(err).Warn(
			"some transfers are still running, they will be marked as interrupted " +
				"at next startup",
		)
	}

	log.Info("exiting")
}

func newWalletSession(deriver *stealth.Deriver) (*walletsession.Session, error) {
	buf, err := os.ReadFile(config.GetString(config.WalletMnemonicFileKey))
	if err != nil {
		return nil, fmt.Errorf("reading mnemonic file: %w", err)
	}

	sessionID := config.GetString(config.WalletSessionIDKey)
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	return walletsession.NewSession(walletsession.NewSessionOpts{
		ID:       sessionID,
		Mnemonic: strings.TrimSpace(string(buf)),
		Deriver:  deriver,
	})
}

func newRepoManager() (ports.RepoManager, error) {
	if config.GetString(config.DBTypeKey) == config.DBInMemory {
		return inmemory.NewRepoManager(), nil
	}
	return dbbadger.NewRepoManager(config.GetDbDir(), log.StandardLogger())
}

func newPathIndexRepository(
	ctx context.Context, repoManager ports.RepoManager,
) (domain.PathIndexRepository, error) {
	if config.GetString(config.PathIndexStoreKey) != config.PathIndexStoreRedis {
		return repoManager.PathIndexRepository(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: config.GetString(config.RedisAddrKey),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return redisstore.NewPathIndexRepository(client, "")
}

func newRelay(session ports.WalletSession) (ports.Relay, bool, error) {
	if config.GetString(config.RelayTypeKey) == config.RelaySimulated {
		balances := make(map[string]uint64)
		if funds := config.GetUint64(config.SimulatedFundsKey); funds > 0 {
			balances[session.SenderAddress()] = funds
		}
		relay, err := simulatedrelay.NewRelay(simulatedrelay.Options{
			Network:      config.GetNetwork(),
			LandingDelay: config.GetDuration(config.SimulatedLandingDelayKey),
			Balances:     balances,
		})
		return relay, true, err
	}

	relay, err := httprelay.NewClient(httprelay.ClientOpts{
		URL:               config.GetString(config.RelayURLKey),
		RequestsPerSecond: config.GetInt(config.RelayRateLimitKey),
	})
	return relay, false, err
}

func newEventPublisher(
	webhooks *webhookpubsub.Publisher,
) (ports.EventPublisher, error) {
	publishers := []ports.EventPublisher{webhooks}

	metrics, err := metricspubsub.NewPublisher(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	publishers = append(publishers, metrics)

	if brokers := config.GetStringSlice(config.KafkaBrokersKey); len(brokers) > 0 {
		kafka, err := kafkapubsub.NewPublisher(brokers, config.GetString(config.KafkaTopicKey))
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, kafka)
		log.Infof("publishing transfer events to kafka topic %s", kafka.Topic())
	}

	secret := config.GetString(config.WebhookSecretKey)
	for _, endpoint := range config.GetStringSlice(config.WebhookEndpointsKey) {
		if _, err := webhooks.Subscribe(
			webhookpubsub.AllTopics.String(), endpoint, secret,
		); err != nil {
			return nil, fmt.Errorf("adding webhook %s: %w", endpoint, err)
		}
	}

	return eventpubsub.NewService(publishers...), nil
}

func newTransferService(
	repoManager ports.RepoManager,
	pathIndexRepo domain.PathIndexRepository,
	relay ports.Relay,
	deriver *stealth.Deriver,
	pubsubSvc *pubsub.Service,
) (*transfer.Service, error) {
	pathAllocator, err := allocator.NewPathAllocator(pathIndexRepo)
	if err != nil {
		return nil, err
	}
	rand := randutil.NewSecureSource()

	plannerSvc, err := planner.NewService(
		deriver, pathAllocator, rand, config.GetPlannerConfig(),
	)
	if err != nil {
		return nil, err
	}
	schedulerSvc, err := scheduler.NewService(rand, config.GetDelayDistribution())
	if err != nil {
		return nil, err
	}
	submitterSvc, err := bundle.NewService(deriver, config.GetSubmitterConfig())
	if err != nil {
		return nil, err
	}

	return transfer.NewService(
		repoManager, relay, plannerSvc, schedulerSvc, submitterSvc, pubsubSvc,
		config.GetTransferConfig(),
	)
}
