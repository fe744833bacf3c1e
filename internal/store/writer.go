package store

import (
	"context"
	"fmt"
	"sync"

	"bidflow/internal/model"
	"bidflow/logger"
)

// Writer consumes order batches from the pipeline and appends them to the
// store. It is the only component that writes to the database.
type Writer struct {
	store   *Store
	orders  <-chan model.OrderBatch
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewWriter(store *Store, orders <-chan model.OrderBatch) *Writer {
	return &Writer{
		store:  store,
		orders: orders,
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
	}
}

func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("writer already running")
	}
	w.running = true
	w.ctx = ctx
	w.mu.Unlock()

	w.log.WithComponent("store_writer").Info("starting store writer")

	w.wg.Add(1)
	go w.worker()
	return nil
}

func (w *Writer) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
	w.log.WithComponent("store_writer").Info("store writer stopped")
}

func (w *Writer) worker() {
	defer w.wg.Done()

	log := w.log.WithComponent("store_writer").WithFields(logger.Fields{"worker": "order_sink"})
	log.Info("starting order sink worker")

	for {
		select {
		case <-w.ctx.Done():
			// drain whatever the pollers managed to send before shutdown
			for {
				select {
				case batch := <-w.orders:
					w.persist(log, batch)
				default:
					log.Info("worker stopped due to context cancellation")
					return
				}
			}
		case batch := <-w.orders:
			w.persist(log, batch)
		}
	}
}

func (w *Writer) persist(log *logger.Entry, batch model.OrderBatch) {
	inserted, err := w.store.SaveOrders(batch.Orders)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"platform": batch.Platform,
			"orders":   len(batch.Orders),
		}).Error("failed to persist order batch")
		return
	}

	log.WithFields(logger.Fields{
		"platform": batch.Platform,
		"orders":   len(batch.Orders),
		"inserted": inserted,
	}).Debug("order batch persisted")
}
