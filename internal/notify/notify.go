// Package notify fans qualifying decisions out to alert sinks. Delivery is
// best effort; a failing sink is logged and the next decision proceeds.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bidflow/internal/model"
	"bidflow/logger"
)

// DefaultAlertTemplate mirrors the operator-facing alert wording.
const DefaultAlertTemplate = "发现抢单机会: {rule_name} - 总利润{total_profit}元 ({seat_count}张票)"

// Notifier delivers one decision to one sink.
type Notifier interface {
	Notify(decision model.Decision) error
}

// LogNotifier renders the alert template and emits it as a structured log
// line. It stands in for the voice alerting the desktop build ships.
type LogNotifier struct {
	template string
	log      *logger.Log
}

func NewLogNotifier(template string) *LogNotifier {
	if strings.TrimSpace(template) == "" {
		template = DefaultAlertTemplate
	}
	return &LogNotifier{template: template, log: logger.GetLogger()}
}

func (n *LogNotifier) Notify(decision model.Decision) error {
	n.log.WithComponent("notifier").WithFields(logger.Fields{
		"decision_id":  decision.DecisionID,
		"order_id":     decision.Order.OrderID,
		"platform":     decision.Order.Platform,
		"rule":         decision.RuleName,
		"total_profit": decision.TotalProfit,
	}).Info(RenderAlert(n.template, decision))
	return nil
}

// RenderAlert substitutes the decision's fields into the template.
func RenderAlert(template string, decision model.Decision) string {
	return strings.NewReplacer(
		"{rule_name}", decision.RuleName,
		"{total_profit}", decision.TotalProfit.String(),
		"{seat_count}", fmt.Sprintf("%d", decision.SeatCount),
		"{order_id}", decision.Order.OrderID,
		"{city}", decision.Order.City,
		"{cinema_name}", decision.Order.CinemaName,
		"{movie_name}", decision.Order.MovieName,
	).Replace(template)
}

// Dispatcher consumes the decision channel and forwards each decision to
// every registered notifier.
type Dispatcher struct {
	notifiers []Notifier
	decisions <-chan model.Decision
	ctx       context.Context
	wg        *sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	log       *logger.Log
}

func NewDispatcher(decisions <-chan model.Decision, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		decisions: decisions,
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx = ctx
	d.mu.Unlock()

	d.log.WithComponent("notifier").WithFields(logger.Fields{
		"sinks": len(d.notifiers),
	}).Info("starting decision dispatcher")

	d.wg.Add(1)
	go d.worker()
	return nil
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()
	d.log.WithComponent("notifier").Info("decision dispatcher stopped")
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	log := d.log.WithComponent("notifier").WithFields(logger.Fields{"worker": "decision_sink"})

	for {
		select {
		case <-d.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case decision := <-d.decisions:
			for _, n := range d.notifiers {
				if err := n.Notify(decision); err != nil {
					log.WithError(err).WithFields(logger.Fields{
						"decision_id": decision.DecisionID,
					}).Warn("notifier failed")
				}
			}
		}
	}
}
