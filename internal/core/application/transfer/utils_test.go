package transfer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/application/allocator"
	"github.com/tdex-network/tdex-stealth/internal/core/application/bundle"
	"github.com/tdex-network/tdex-stealth/internal/core/application/planner"
	"github.com/tdex-network/tdex-stealth/internal/core/application/pubsub"
	"github.com/tdex-network/tdex-stealth/internal/core/application/scheduler"
	"github.com/tdex-network/tdex-stealth/internal/core/application/transfer"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	simulatedrelay "github.com/tdex-network/tdex-stealth/internal/infrastructure/relay/simulated"
	"github.com/tdex-network/tdex-stealth/internal/infrastructure/storage/db/inmemory"
	walletsession "github.com/tdex-network/tdex-stealth/internal/infrastructure/wallet"
	"github.com/tdex-network/tdex-stealth/pkg/randutil"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
	"github.com/vulpemventures/go-elements/network"
)

const (
	testMnemonic  = "quarter multiply swarm depth slice security flight glad arrow express worth legend wasp mobile anchor dinner mutual six sure wear section delay initial thank"
	testRecipient = "el1qqtestrecipient"
	testAmount    = uint64(10000000) // 0.1
	testFunds     = uint64(1000000000)
)

var submitterConfig = bundle.Config{
	MaxAttempts:    3,
	BaseBackoff:    time.Millisecond,
	MaxBackoff:     4 * time.Millisecond,
	SubmitTimeout:  50 * time.Millisecond,
	ConfirmTimeout: 30 * time.Millisecond,
	PollInterval:   5 * time.Millisecond,
}

type testEnv struct {
	svc         *transfer.Service
	session     *walletsession.Session
	deriver     *stealth.Deriver
	relay       *simulatedrelay.Relay
	repoManager ports.RepoManager
	publisher   *mockPublisher
	sleeper     *sleeper
}

type testOpts struct {
	relay           ports.Relay
	sleep           transfer.SleepFunc
	transferTimeout time.Duration
}

func newTestEnv(t *testing.T, opts testOpts) *testEnv {
	deriver, err := stealth.NewDeriver(stealth.NewDeriverOpts{Network: &network.Regtest})
	require.NoError(t, err)

	session, err := walletsession.NewSession(walletsession.NewSessionOpts{
		ID:       "test-session",
		Mnemonic: testMnemonic,
		Deriver:  deriver,
	})
	require.NoError(t, err)

	repoManager := inmemory.NewRepoManager()
	pathAllocator, err := allocator.NewPathAllocator(repoManager.PathIndexRepository())
	require.NoError(t, err)

	// min hop count of every profile
	plannerSvc, err := planner.NewService(
		deriver, pathAllocator, &randutil.FixedSource{Ints: []int64{0}},
		planner.DefaultConfig(),
	)
	require.NoError(t, err)

	schedulerSvc, err := scheduler.NewService(
		randutil.NewDeterministicSource(1), scheduler.DistributionUniform,
	)
	require.NoError(t, err)

	submitterSvc, err := bundle.NewService(deriver, submitterConfig)
	require.NoError(t, err)

	simRelay, err := simulatedrelay.NewRelay(simulatedrelay.Options{
		Network:  &network.Regtest,
		Balances: map[string]uint64{session.SenderAddress(): testFunds},
	})
	require.NoError(t, err)

	relay := opts.relay
	if relay == nil {
		relay = simRelay
	}

	publisher := &mockPublisher{}
	publisher.On("PublishTransferEvent", mock.Anything, mock.Anything).Return(nil)

	s := &sleeper{}
	sleep := opts.sleep
	if sleep == nil {
		sleep = s.sleep
	}

	cfg := transfer.DefaultConfig()
	cfg.Sleep = sleep
	cfg.TransferTimeout = opts.transferTimeout

	svc, err := transfer.NewService(
		repoManager, relay, plannerSvc, schedulerSvc, submitterSvc,
		pubsub.NewService(publisher), cfg,
	)
	require.NoError(t, err)

	return &testEnv{
		svc:         svc,
		session:     session,
		deriver:     deriver,
		relay:       simRelay,
		repoManager: repoManager,
		publisher:   publisher,
		sleeper:     s,
	}
}

func (e *testEnv) request(level domain.PrivacyLevel) domain.TransferRequest {
	return domain.TransferRequest{
		Sender:       e.session.SenderAddress(),
		Recipient:    testRecipient,
		Amount:       testAmount,
		PrivacyLevel: level,
		Memo:         "test",
	}
}

// interruptedTransfer stores a transfer left executing its first hop, as if
// the process stopped in the middle of the submission.
func (e *testEnv) interruptedTransfer(t *testing.T, hops []domain.Hop) *domain.Transfer {
	tx, err := domain.NewTransfer(e.session.ID(), e.request(domain.PrivacyLevelAdvanced))
	require.NoError(t, err)

	route := &domain.Route{
		Sender:    tx.Request.Sender,
		Recipient: tx.Request.Recipient,
		Amount:    tx.Request.Amount,
		HopFee:    500,
		Hops:      append([]domain.Hop{}, hops...),
	}
	route.Hops[0].From = tx.Request.Sender
	require.NoError(t, tx.Plan(route))
	require.NoError(t, tx.ExecuteHop(0))
	require.NoError(t, e.repoManager.TransferRepository().AddTransfer(
		context.Background(), tx,
	))
	return tx
}

// submitBeforeRestart lands the given hops on the relay and returns the
// record of the bundle as it was stored right before sending it.
func (e *testEnv) submitBeforeRestart(
	t *testing.T, hops []domain.Hop,
) domain.BundleSubmission {
	submitter, err := bundle.NewService(e.deriver, submitterConfig)
	require.NoError(t, err)

	res, err := submitter.Submit(context.Background(), e.relay, e.session, hops)
	require.NoError(t, err)
	return domain.NewBundleSubmission(res.BundleID, res.HopIndexes, 1)
}

func (e *testEnv) store(t *testing.T, tx *domain.Transfer) {
	require.NoError(t, e.repoManager.TransferRepository().UpdateTransfer(
		context.Background(), tx.ID,
		func(_ *domain.Transfer) (*domain.Transfer, error) {
			return tx, nil
		},
	))
}

// strandedAddress derives again the address at the path of the stranded funds.
func (e *testEnv) strandedAddress(t *testing.T, stranded *domain.StrandedFunds) string {
	seed, err := e.session.Seed(context.Background())
	require.NoError(t, err)
	path, err := stealth.ParseDerivationPath(stranded.DerivationPath)
	require.NoError(t, err)
	addr, err := e.deriver.DeriveAddress(seed, path)
	require.NoError(t, err)
	return addr
}

func (e *testEnv) balance(t *testing.T, addr string) uint64 {
	balance, err := e.relay.GetBalance(context.Background(), addr)
	require.NoError(t, err)
	return balance
}

// sleeper records the delays without actually waiting them.
type sleeper struct {
	lock   sync.Mutex
	delays []time.Duration
}

func (s *sleeper) sleep(ctx context.Context, d time.Duration) error {
	s.lock.Lock()
	s.delays = append(s.delays, d)
	s.lock.Unlock()
	return ctx.Err()
}

func (s *sleeper) recorded() []time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]time.Duration{}, s.delays...)
}

// blockingSleep waits until ctx is done, signaling every call on the given
// channel.
func blockingSleep(waiting chan<- struct{}) transfer.SleepFunc {
	return func(ctx context.Context, _ time.Duration) error {
		select {
		case waiting <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

// gatedRelay holds every bundle submission until released.
type gatedRelay struct {
	*simulatedrelay.Relay
	entered chan struct{}
	release chan struct{}
}

func newGatedRelay(t *testing.T) *gatedRelay {
	relay, err := simulatedrelay.NewRelay(simulatedrelay.Options{
		Network: &network.Regtest,
	})
	require.NoError(t, err)
	return &gatedRelay{
		Relay:   relay,
		entered: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
}

func (r *gatedRelay) SubmitBundle(
	_ context.Context, b ports.Bundle,
) (*ports.SubmitResponse, error) {
	select {
	case r.entered <- struct{}{}:
	default:
	}
	<-r.release
	return r.Relay.SubmitBundle(context.Background(), b)
}

// **** Publisher ****

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishTransferEvent(
	ctx context.Context, event ports.TransferEvent,
) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func (m *mockPublisher) statuses(transferID string) []string {
	statuses := make([]string, 0)
	for _, call := range m.Calls {
		if call.Method != "PublishTransferEvent" {
			continue
		}
		event := call.Arguments.Get(1).(ports.TransferEvent)
		if event.TransferID == transferID {
			statuses = append(statuses, event.Status)
		}
	}
	return statuses
}
