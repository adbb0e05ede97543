package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"polyedge/internal/agent"
	"polyedge/internal/detect"
	"polyedge/internal/domain"
	"polyedge/internal/match"
	"polyedge/internal/paper"
	"polyedge/internal/volume"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeMarketSource struct {
	batches [][]domain.Market
	calls   int
	err     error
}

func (f *fakeMarketSource) ActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.batches) {
		idx = len(f.batches) - 1
	}
	return f.batches[idx], nil
}

type fakeOppStore struct {
	inserted []domain.Opportunity
}

func (f *fakeOppStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	f.inserted = append(f.inserted, opp)
	return nil
}

func (f *fakeOppStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return f.inserted, nil
}

func (f *fakeOppStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}

type fakeSpikeStore struct {
	inserted []domain.VolumeSpike
}

func (f *fakeSpikeStore) Insert(ctx context.Context, spike domain.VolumeSpike) error {
	f.inserted = append(f.inserted, spike)
	return nil
}

func (f *fakeSpikeStore) ListRecent(ctx context.Context, limit int) ([]domain.VolumeSpike, error) {
	return f.inserted, nil
}

func (f *fakeSpikeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeSpike, error) {
	return nil, nil
}

type fakeBus struct {
	opps   []domain.Opportunity
	spikes []domain.VolumeSpike
}

func (f *fakeBus) PublishOpportunity(ctx context.Context, opp domain.Opportunity) error {
	f.opps = append(f.opps, opp)
	return nil
}

func (f *fakeBus) PublishSpike(ctx context.Context, spike domain.VolumeSpike) error {
	f.spikes = append(f.spikes, spike)
	return nil
}

type fakeAlerter struct {
	opps   int
	spikes int
	trades int
}

func (f *fakeAlerter) NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error {
	f.opps++
	return nil
}

func (f *fakeAlerter) NotifySpike(ctx context.Context, spike domain.VolumeSpike) error {
	f.spikes++
	return nil
}

func (f *fakeAlerter) NotifyPaperTrade(ctx context.Context, trade domain.PaperTrade) error {
	f.trades++
	return nil
}

type fakeArchiver struct {
	oppCount    int64
	spikeCount  int64
	oppErr      error
	historyRuns int
	cutoffs     []time.Time
}

func (f *fakeArchiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return f.oppCount, f.oppErr
}

func (f *fakeArchiver) ArchiveSpikes(ctx context.Context, before time.Time) (int64, error) {
	return f.spikeCount, nil
}

func (f *fakeArchiver) ArchiveVolumeHistory(ctx context.Context) error {
	f.historyRuns++
	return nil
}

type fakePruner struct {
	calls   int
	deleted int64
}

func (f *fakePruner) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	f.calls++
	return f.deleted, nil
}

type fakeLocks struct {
	err      error
	acquired int
	released int
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() { f.released++ }, nil
}

type fakeLimiter struct {
	allow bool
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return f.allow, nil
}

func (f *fakeLimiter) Wait(ctx context.Context, key string) error { return nil }

type stubSentiment struct{ score float64 }

func (s stubSentiment) AnalyzeSentiment(ctx context.Context, opp domain.Opportunity) (float64, error) {
	return s.score, nil
}

type stubRisk struct{ score float64 }

func (s stubRisk) AssessRisk(ctx context.Context, opp domain.Opportunity) (float64, error) {
	return s.score, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func lakersMarket() domain.Market {
	return domain.Market{
		ID:          "m1",
		ConditionID: "0xcond1",
		Slug:        "lakers-nba-finals",
		Question:    "Will the Lakers win the NBA Finals?",
		Volume24h:   50000,
		Liquidity:   20000,
		EndDate:     time.Now().Add(24 * time.Hour),
		Tokens: []domain.OutcomeToken{
			{TokenID: "tok-yes", Outcome: "Yes", Price: 0.65},
			{TokenID: "tok-no", Outcome: "No", Price: 0.35},
		},
	}
}

func lakersEvent() domain.DetectedEvent {
	return domain.DetectedEvent{
		ID:          "ev1",
		Type:        domain.EventTypeSports,
		Description: "Lakers win NBA Finals",
		Outcome:     "Lakers Won",
		Timestamp:   time.Now().Add(-30 * time.Second),
		Source:      "ESPN Official API",
		Metadata:    map[string]string{"score": "108-95"},
	}
}

func testDetector() *detect.OpportunityDetector {
	return detect.NewOpportunityDetector(
		detect.NewProfitCalculator(detect.NewCostModel(0.50)),
		testLogger(),
	)
}

// ---------------------------------------------------------------------------
// Event pipeline
// ---------------------------------------------------------------------------

func TestProcessEventEndToEnd(t *testing.T) {
	source := &fakeMarketSource{batches: [][]domain.Market{{lakersMarket()}}}
	oppStore := &fakeOppStore{}
	bus := &fakeBus{}
	alerter := &fakeAlerter{}
	trader := paper.NewEngine(10000, nil, testLogger())

	m := New(Config{}, Deps{
		Markets:   source,
		Matcher:   match.New(source, match.Config{}, testLogger()),
		Detector:  testDetector(),
		Validator: agent.NewValidator(nil, nil, testLogger()),
		Trader:    trader,
		OppStore:  oppStore,
		Bus:       bus,
		Alerter:   alerter,
	}, testLogger())

	m.processEvent(context.Background(), lakersEvent())

	if len(oppStore.inserted) != 1 {
		t.Fatalf("stored opportunities = %d, want 1", len(oppStore.inserted))
	}
	opp := oppStore.inserted[0]
	if opp.Outcome != "Yes" || opp.MarketID != "m1" {
		t.Errorf("unexpected opportunity: outcome %q, market %q", opp.Outcome, opp.MarketID)
	}
	if len(bus.opps) != 1 {
		t.Errorf("published opportunities = %d, want 1", len(bus.opps))
	}
	if alerter.opps != 1 || alerter.trades != 1 {
		t.Errorf("alerts: opps %d trades %d, want 1 and 1", alerter.opps, alerter.trades)
	}
	// A paper trade was opened for the full position size.
	if got := trader.Balance(); got != 10000-opp.PositionSizeUSD {
		t.Errorf("paper balance = %v, want %v", got, 10000-opp.PositionSizeUSD)
	}
}

func TestProcessEventValidatorRejects(t *testing.T) {
	source := &fakeMarketSource{batches: [][]domain.Market{{lakersMarket()}}}
	oppStore := &fakeOppStore{}
	trader := paper.NewEngine(10000, nil, testLogger())

	m := New(Config{}, Deps{
		Markets:   source,
		Matcher:   match.New(source, match.Config{}, testLogger()),
		Detector:  testDetector(),
		Validator: agent.NewValidator(stubSentiment{score: 0.9}, stubRisk{score: 0.9}, testLogger()),
		Trader:    trader,
		OppStore:  oppStore,
	}, testLogger())

	m.processEvent(context.Background(), lakersEvent())

	if len(oppStore.inserted) != 0 {
		t.Errorf("stored opportunities = %d, want 0", len(oppStore.inserted))
	}
	if got := trader.Balance(); got != 10000 {
		t.Errorf("paper balance = %v, want untouched 10000", got)
	}
}

func TestProcessEventNoMatch(t *testing.T) {
	source := &fakeMarketSource{batches: [][]domain.Market{{lakersMarket()}}}
	oppStore := &fakeOppStore{}

	m := New(Config{}, Deps{
		Markets:  source,
		Matcher:  match.New(source, match.Config{}, testLogger()),
		Detector: testDetector(),
		OppStore: oppStore,
	}, testLogger())

	ev := lakersEvent()
	ev.Description = "quarterly earnings beat expectations"
	m.processEvent(context.Background(), ev)

	if len(oppStore.inserted) != 0 {
		t.Errorf("stored opportunities = %d, want 0", len(oppStore.inserted))
	}
}

// ---------------------------------------------------------------------------
// Spike scanning
// ---------------------------------------------------------------------------

func spikingSource() *fakeMarketSource {
	end := time.Now().Add(90 * time.Minute)
	flat := func(price float64) []domain.Market {
		return []domain.Market{{
			ID:        "m1",
			Slug:      "spiking-market",
			Volume24h: 50000,
			Liquidity: 25000,
			EndDate:   end,
			Tokens:    []domain.OutcomeToken{{TokenID: "tok", Outcome: "Yes", Price: price}},
		}}
	}
	spiked := flat(0.60)
	spiked[0].Volume24h = 300000
	return &fakeMarketSource{batches: [][]domain.Market{
		flat(0.50), flat(0.52), flat(0.54), flat(0.56), flat(0.58), spiked,
	}}
}

func TestScanSpikesPublishes(t *testing.T) {
	source := spikingSource()
	store := &fakeSpikeStore{}
	bus := &fakeBus{}
	alerter := &fakeAlerter{}
	engine := volume.NewSpikeEngine(volume.Config{
		MinSpikeRatio:      3.0,
		MinVolumeUSD:       50000,
		MaxHoursToDeadline: 72,
	}, testLogger())

	m := New(Config{SpikeScanInterval: time.Minute}, Deps{
		Markets:    source,
		Spikes:     engine,
		SpikeStore: store,
		Bus:        bus,
		Alerter:    alerter,
	}, testLogger())

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		m.scanSpikes(ctx)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("stored spikes = %d, want 1", len(store.inserted))
	}
	if store.inserted[0].MarketID != "m1" {
		t.Errorf("spike market = %q, want m1", store.inserted[0].MarketID)
	}
	if len(bus.spikes) != 1 || alerter.spikes != 1 {
		t.Errorf("published %d, alerted %d, want 1 and 1", len(bus.spikes), alerter.spikes)
	}
}

func TestScanSpikesRateLimited(t *testing.T) {
	source := spikingSource()
	m := New(Config{SpikeScanInterval: time.Minute}, Deps{
		Markets: source,
		Spikes:  volume.NewSpikeEngine(volume.Config{}, testLogger()),
		Limiter: &fakeLimiter{allow: false},
	}, testLogger())

	m.scanSpikes(context.Background())

	if source.calls != 0 {
		t.Errorf("market source called %d times despite rate limit", source.calls)
	}
}

func TestScanSpikesLockHeld(t *testing.T) {
	source := spikingSource()
	m := New(Config{SpikeScanInterval: time.Minute}, Deps{
		Markets: source,
		Spikes:  volume.NewSpikeEngine(volume.Config{}, testLogger()),
		Locks:   &fakeLocks{err: domain.ErrLockHeld},
	}, testLogger())

	m.scanSpikes(context.Background())

	if source.calls != 0 {
		t.Errorf("market source called %d times while lock was held", source.calls)
	}
}

func TestScanSpikesReleasesLock(t *testing.T) {
	source := spikingSource()
	locks := &fakeLocks{}
	m := New(Config{SpikeScanInterval: time.Minute}, Deps{
		Markets: source,
		Spikes:  volume.NewSpikeEngine(volume.Config{}, testLogger()),
		Locks:   locks,
	}, testLogger())

	m.scanSpikes(context.Background())

	if locks.acquired != 1 || locks.released != 1 {
		t.Errorf("lock acquired %d released %d, want 1 and 1", locks.acquired, locks.released)
	}
}

// ---------------------------------------------------------------------------
// Archival
// ---------------------------------------------------------------------------

func TestRunArchive(t *testing.T) {
	arch := &fakeArchiver{oppCount: 12, spikeCount: 0}
	oppPruner := &fakePruner{deleted: 12}
	spikePruner := &fakePruner{}

	m := New(Config{ArchiveRetention: 30 * 24 * time.Hour}, Deps{
		Archiver:    arch,
		OppPruner:   oppPruner,
		SpikePruner: spikePruner,
	}, testLogger())

	if err := m.runArchive(context.Background()); err != nil {
		t.Fatalf("runArchive: %v", err)
	}

	if len(arch.cutoffs) != 1 {
		t.Fatalf("archive runs = %d, want 1", len(arch.cutoffs))
	}
	wantCutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if diff := arch.cutoffs[0].Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", arch.cutoffs[0], wantCutoff)
	}
	if oppPruner.calls != 1 {
		t.Errorf("opportunity pruner calls = %d, want 1", oppPruner.calls)
	}
	// Nothing was archived for spikes, so nothing may be pruned.
	if spikePruner.calls != 0 {
		t.Errorf("spike pruner calls = %d, want 0", spikePruner.calls)
	}
	if arch.historyRuns != 1 {
		t.Errorf("history archive runs = %d, want 1", arch.historyRuns)
	}
}

func TestRunArchiveUploadFailureSkipsPrune(t *testing.T) {
	arch := &fakeArchiver{oppErr: errors.New("bucket unavailable")}
	pruner := &fakePruner{}

	m := New(Config{ArchiveRetention: 24 * time.Hour}, Deps{
		Archiver:  arch,
		OppPruner: pruner,
	}, testLogger())

	if err := m.runArchive(context.Background()); err == nil {
		t.Fatal("expected error from failed upload")
	}
	if pruner.calls != 0 {
		t.Errorf("pruner called %d times after failed upload", pruner.calls)
	}
}

// ---------------------------------------------------------------------------
// Run lifecycle
// ---------------------------------------------------------------------------

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	source := spikingSource()
	m := New(Config{
		SpikeScanInterval: 10 * time.Millisecond,
	}, Deps{
		Markets: source,
		Spikes:  volume.NewSpikeEngine(volume.Config{}, testLogger()),
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancellation, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

type fakeFetcher struct {
	market domain.Market
	err    error
	calls  int
}

func (f *fakeFetcher) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	f.calls++
	if f.err != nil {
		return domain.Market{}, f.err
	}
	return f.market, nil
}

func TestProcessEventRefreshesMatchedMarket(t *testing.T) {
	source := &fakeMarketSource{batches: [][]domain.Market{{lakersMarket()}}}
	oppStore := &fakeOppStore{}

	fresh := lakersMarket()
	fresh.Tokens[0].Price = 0.60
	fetcher := &fakeFetcher{market: fresh}

	m := New(Config{}, Deps{
		Fetcher:  fetcher,
		Matcher:  match.New(source, match.Config{}, testLogger()),
		Detector: testDetector(),
		OppStore: oppStore,
	}, testLogger())

	m.processEvent(context.Background(), lakersEvent())

	if fetcher.calls != 1 {
		t.Fatalf("fetcher called %d times, want 1", fetcher.calls)
	}
	if len(oppStore.inserted) != 1 {
		t.Fatalf("stored opportunities = %d, want 1", len(oppStore.inserted))
	}
	if got := oppStore.inserted[0].EntryPrice; got != 0.60 {
		t.Errorf("entry price = %v, want refreshed 0.60", got)
	}
}

func TestProcessEventRefreshFailureUsesSnapshot(t *testing.T) {
	source := &fakeMarketSource{batches: [][]domain.Market{{lakersMarket()}}}
	oppStore := &fakeOppStore{}
	fetcher := &fakeFetcher{err: errors.New("gamma unavailable")}

	m := New(Config{}, Deps{
		Fetcher:  fetcher,
		Matcher:  match.New(source, match.Config{}, testLogger()),
		Detector: testDetector(),
		OppStore: oppStore,
	}, testLogger())

	m.processEvent(context.Background(), lakersEvent())

	if len(oppStore.inserted) != 1 {
		t.Fatalf("stored opportunities = %d, want 1", len(oppStore.inserted))
	}
	if got := oppStore.inserted[0].EntryPrice; got != 0.65 {
		t.Errorf("entry price = %v, want snapshot 0.65", got)
	}
}
