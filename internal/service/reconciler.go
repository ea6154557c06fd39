package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Reconciler sweeps payment sessions the return flow never closed, e.g. the
// customer abandoned the hosted page or the redirect was lost.
type Reconciler struct {
	payments PaymentService
	interval time.Duration
	ttl      time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewReconciler(payments PaymentService, interval, ttl time.Duration) *Reconciler {
	return &Reconciler{
		payments: payments,
		interval: interval,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
}

func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.loop()
}

func (r *Reconciler) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *Reconciler) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	expired, err := r.payments.ExpireStale(ctx, time.Now().Add(-r.ttl))
	if err != nil {
		log.Error().Err(err).Msg("payment session sweep failed")
		return
	}
	if expired > 0 {
		log.Info().Int("expired", expired).Msg("expired stale payment sessions")
	}
}
