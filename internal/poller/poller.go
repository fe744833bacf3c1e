// Package poller drives the per-platform poll cycles. Each platform gets an
// independent loop so a broken or slow API never stalls the other one.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bidflow/config"
	"bidflow/internal/adapter"
	"bidflow/internal/channel"
	"bidflow/internal/model"
	"bidflow/internal/rules"
	"bidflow/logger"
)

// minInterval is the floor for the cycle timer regardless of configuration.
const minInterval = time.Second

// Poller runs the fetch, evaluate and forward cycle for one platform.
type Poller struct {
	adapter  adapter.PlatformAdapter
	engine   *rules.Engine
	channels *channel.Channels
	interval time.Duration
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

// New builds a Poller for the given adapter. intervalMs falls back to the
// shared poller interval when the source does not set its own.
func New(cfg *config.Config, a adapter.PlatformAdapter, engine *rules.Engine, channels *channel.Channels, intervalMs int) *Poller {
	if intervalMs <= 0 {
		intervalMs = cfg.Poller.IntervalMs
	}
	interval := time.Duration(intervalMs) * time.Millisecond
	if interval < minInterval {
		interval = minInterval
	}

	return &Poller{
		adapter:  a,
		engine:   engine,
		channels: channels,
		interval: interval,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches the poll loop. It returns an error if already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	p.log.WithComponent("poller").WithFields(logger.Fields{
		"platform": p.adapter.Name(),
		"interval": p.interval,
	}).Info("starting poller")

	p.wg.Add(1)
	go p.worker()
	return nil
}

// Stop waits for the worker to exit. Cancel the Start context first.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.log.WithComponent("poller").WithFields(logger.Fields{
		"platform": p.adapter.Name(),
	}).Info("poller stopped")
}

func (p *Poller) worker() {
	defer p.wg.Done()

	log := p.log.WithComponent("poller").WithFields(logger.Fields{
		"platform": p.adapter.Name(),
		"worker":   "poll_cycle",
	})
	log.Info("starting poll worker")

	// run one cycle immediately, then settle on the timer
	p.runCycle(log)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()
			p.runCycle(log)
			duration := time.Since(start)

			if duration > p.interval {
				log.WithFields(logger.Fields{
					"duration": duration.Milliseconds(),
					"interval": p.interval.Milliseconds(),
				}).Warn("poll cycle took longer than interval")
			}
			timer.Reset(p.interval)
		}
	}
}

// runCycle executes one full cycle. Any failure truncates the cycle to zero
// decisions; the loop itself never stops on errors.
func (p *Poller) runCycle(log *logger.Entry) {
	logger.IncrementPollCycle(p.adapter.Name())

	orders, err := p.adapter.PollOnce(p.ctx)
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("poll cycle failed")
		return
	}
	if len(orders) == 0 {
		return
	}

	logger.IncrementOrdersIngested(p.adapter.Name(), len(orders))

	batch := model.OrderBatch{
		Platform:  p.adapter.Platform(),
		Orders:    orders,
		FetchedAt: time.Now().UTC(),
	}
	p.channels.SendOrders(p.ctx, batch)

	matched := 0
	for _, order := range orders {
		decision := p.engine.Evaluate(order)
		if decision == nil {
			continue
		}
		matched++
		if p.channels.SendDecision(p.ctx, *decision) {
			log.WithFields(logger.Fields{
				"order_id":     order.OrderID,
				"rule":         decision.RuleName,
				"total_profit": decision.TotalProfit,
			}).Info("order matched rule")
		}
	}
	if matched > 0 {
		logger.IncrementDecisions(matched)
	}

	log.WithFields(logger.Fields{
		"orders":  len(orders),
		"matched": matched,
	}).Debug("poll cycle complete")
}
