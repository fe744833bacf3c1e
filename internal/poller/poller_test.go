package poller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bidflow/config"
	"bidflow/internal/channel"
	"bidflow/internal/model"
	"bidflow/internal/rules"
)

type stubAdapter struct {
	orders []model.Order
	err    error
	calls  chan struct{}
}

func (s *stubAdapter) Name() string             { return "stub" }
func (s *stubAdapter) Platform() model.Platform { return model.PlatformHaha }

func (s *stubAdapter) PollOnce(ctx context.Context) ([]model.Order, error) {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	return s.orders, s.err
}

func testEngine(t *testing.T) *rules.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	content := `[{
		"rule_id": "1",
		"rule_name": "any profitable order",
		"match_conditions": {"city": "", "cinema_keywords": []},
		"hall_logic": {"mode": "ALL", "hall_list": [], "cost": 50},
		"profit_logic": {"min_profit_threshold": 10}
	}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return rules.NewEngine(path)
}

func testPoller(t *testing.T, a *stubAdapter) (*Poller, *channel.Channels) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Poller.IntervalMs = 5000
	channels := channel.NewChannels(16, 16)
	return New(cfg, a, testEngine(t), channels, 0), channels
}

func TestPollerForwardsDecisions(t *testing.T) {
	stub := &stubAdapter{
		orders: []model.Order{
			{OrderID: "o-1", Platform: model.PlatformHaha, BiddingPrice: decimal.NewFromInt(80), SeatCount: 2},
			{OrderID: "o-2", Platform: model.PlatformHaha, BiddingPrice: decimal.NewFromInt(55), SeatCount: 1},
		},
		calls: make(chan struct{}, 1),
	}
	p, channels := testPoller(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		cancel()
		p.Stop()
	}()

	select {
	case batch := <-channels.Orders:
		if len(batch.Orders) != 2 || batch.Platform != model.PlatformHaha {
			t.Errorf("unexpected batch: %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no order batch forwarded")
	}

	// only o-1 clears the threshold: (80-50)*2=60 vs (55-50)*1=5
	select {
	case decision := <-channels.Decisions:
		if decision.Order.OrderID != "o-1" {
			t.Errorf("wrong order matched: %+v", decision)
		}
		if !decision.TotalProfit.Equal(decimal.NewFromInt(60)) {
			t.Errorf("wrong profit: %s", decision.TotalProfit)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no decision forwarded")
	}

	select {
	case decision := <-channels.Decisions:
		t.Fatalf("unexpected second decision: %+v", decision)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollerSurvivesAdapterFailure(t *testing.T) {
	stub := &stubAdapter{err: errors.New("upstream down"), calls: make(chan struct{}, 1)}
	p, channels := testPoller(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-stub.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("adapter never polled")
	}

	select {
	case batch := <-channels.Orders:
		t.Fatalf("failed cycle must not emit orders, got %+v", batch)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	p.Stop()
}

func TestPollerDoubleStart(t *testing.T) {
	stub := &stubAdapter{calls: make(chan struct{}, 1)}
	p, _ := testPoller(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("second start must fail")
	}

	cancel()
	p.Stop()
}
