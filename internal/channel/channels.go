// Package channel wires the platform pollers to the downstream sinks.
// Sends are non-blocking: a full buffer drops the message and bumps a
// counter, so a slow sink can never stall a poll loop.
package channel

import (
	"context"
	"sync"
	"time"

	"bidflow/internal/model"
	"bidflow/logger"
)

type Stats struct {
	OrdersSent       int64
	OrdersDropped    int64
	DecisionsSent    int64
	DecisionsDropped int64
}

type Channels struct {
	Orders    chan model.OrderBatch
	Decisions chan model.Decision

	stats      Stats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(orderBufferSize, decisionBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Orders:    make(chan model.OrderBatch, orderBufferSize),
		Decisions: make(chan model.Decision, decisionBufferSize),
		log:       log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"order_buffer_size":    orderBufferSize,
		"decision_buffer_size": decisionBufferSize,
	}).Info("pipeline channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Orders)
	close(c.Decisions)
	c.log.WithComponent("channels").Info("pipeline channels closed")
}

// SendOrders places a batch on the order channel unless the context is done
// or the buffer is full. It reports whether the batch was delivered.
func (c *Channels) SendOrders(ctx context.Context, batch model.OrderBatch) bool {
	select {
	case <-ctx.Done():
		return false
	case c.Orders <- batch:
		c.statsMutex.Lock()
		c.stats.OrdersSent++
		c.statsMutex.Unlock()
		logger.RecordChannelMessage("orders", len(batch.Orders))
		return true
	default:
		c.statsMutex.Lock()
		c.stats.OrdersDropped++
		c.statsMutex.Unlock()
		return false
	}
}

// SendDecision places a decision on the decision channel, dropping it when
// the buffer is full. Decisions are best-effort by contract.
func (c *Channels) SendDecision(ctx context.Context, decision model.Decision) bool {
	select {
	case <-ctx.Done():
		return false
	case c.Decisions <- decision:
		c.statsMutex.Lock()
		c.stats.DecisionsSent++
		c.statsMutex.Unlock()
		logger.RecordChannelMessage("decisions", 1)
		return true
	default:
		c.statsMutex.Lock()
		c.stats.DecisionsDropped++
		c.statsMutex.Unlock()
		return false
	}
}

func (c *Channels) GetStats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting logs channel fill levels and counters periodically
// until the context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.GetStats()
			c.log.WithComponent("channels").WithFields(logger.Fields{
				"orders_sent":       stats.OrdersSent,
				"orders_dropped":    stats.OrdersDropped,
				"decisions_sent":    stats.DecisionsSent,
				"decisions_dropped": stats.DecisionsDropped,
				"orders_queued":     len(c.Orders),
				"decisions_queued":  len(c.Decisions),
			}).Info("channel metrics")
		}
	}
}
