package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trip-booking-backend/internal/common/logger"
	"trip-booking-backend/internal/platform/backend"
)

// Poller periodically scans the resource service for registrations that
// are confirmed and paid but not yet in their trip's group, and asks the
// coordinator to invite them. Deduplication is two-layered: an in-memory
// processed set for this process's lifetime, and the awaiting-join marker
// on the registration for everything that survives a restart.
type Poller struct {
	backend  BackendClient
	inviter  Inviter
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// processed is touched only by the poll goroutine (and direct cycle
	// calls in tests); entries reset on restart by design.
	processed map[string]struct{}
}

func NewPoller(backendClient BackendClient, inviter Inviter, interval time.Duration) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		backend:   backendClient,
		inviter:   inviter,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
		processed: make(map[string]struct{}),
	}
}

func (p *Poller) Start() {
	logger.Info().Dur("interval", p.interval).Msg("Starting group join poller")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.runCycle(p.ctx)
			case <-p.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for any in-flight cycle to finish.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
	logger.Info().Msg("Group join poller stopped")
}

// runCycle contains one scan. Errors and panics are contained here so a
// bad registration or a transient backend failure never stops the loop.
func (p *Poller) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Group join cycle panicked")
		}
	}()

	if err := p.processPending(ctx); err != nil {
		logger.Error().Err(err).Msg("Group join cycle failed")
	}
}

func (p *Poller) processPending(ctx context.Context) error {
	notJoined := false
	registrations, err := p.backend.ListRegistrations(ctx, backend.RegistrationFilter{
		Status:        backend.StatusConfirmed,
		PaymentStatus: backend.PaymentConfirmed,
		GroupJoined:   &notJoined,
	})
	if err != nil {
		return fmt.Errorf("list confirmed registrations: %w", err)
	}

	for i := range registrations {
		registration := &registrations[i]

		if _, done := p.processed[registration.ID]; done {
			continue
		}
		if registration.GroupJoinedAt != nil {
			continue
		}
		// An invite is already in flight, possibly sent before a restart.
		if hasAwaitingMarker(registration.GroupJoinError) {
			continue
		}

		if err := p.inviter.AttemptJoin(ctx, registration); err != nil {
			logger.Error().Err(err).
				Str("registration_id", registration.ID).
				Msg("Group invite attempt failed")
			continue
		}
		p.processed[registration.ID] = struct{}{}
	}

	return nil
}
