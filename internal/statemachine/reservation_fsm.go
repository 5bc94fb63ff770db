package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/transfer-ledger/internal/models"
)

// Reservation lifecycle events
const (
	EventComplete = "complete"
	EventReverse  = "reverse"
)

// ReservationFSM wraps a reservation record with its ledger lifecycle
type ReservationFSM struct {
	reservation *models.ReservationRecord
	fsm         *fsm.FSM
}

// NewReservationFSM creates a new reservation state machine
func NewReservationFSM(reservation *models.ReservationRecord) *ReservationFSM {
	if reservation.Status == "" {
		reservation.Status = models.ReservationStatusPending
	}

	rfsm := &ReservationFSM{
		reservation: reservation,
	}

	rfsm.fsm = fsm.NewFSM(
		reservation.Status,
		fsm.Events{
			// pending → completed
			{Name: EventComplete, Src: []string{models.ReservationStatusPending}, Dst: models.ReservationStatusCompleted},

			// completed → reversed
			{Name: EventReverse, Src: []string{models.ReservationStatusCompleted}, Dst: models.ReservationStatusReversed},
		},
		fsm.Callbacks{},
	)

	return rfsm
}

// Complete marks the reservation as booked in the ledger
func (r *ReservationFSM) Complete(ctx context.Context, at time.Time) error {
	if !r.reservation.MayComplete() {
		return fmt.Errorf("reservation cannot be completed in current state: %s", r.reservation.Status)
	}

	if err := r.fsm.Event(ctx, EventComplete); err != nil {
		return fmt.Errorf("failed to complete reservation: %w", err)
	}

	r.reservation.Status = r.fsm.Current()
	r.reservation.CompletedAt = &at
	return nil
}

// Reverse marks the reservation as compensated
func (r *ReservationFSM) Reverse(ctx context.Context, at time.Time) error {
	if !r.reservation.MayReverse() {
		return fmt.Errorf("reservation cannot be reversed in current state: %s", r.reservation.Status)
	}

	if err := r.fsm.Event(ctx, EventReverse); err != nil {
		return fmt.Errorf("failed to reverse reservation: %w", err)
	}

	r.reservation.Status = r.fsm.Current()
	r.reservation.ReversedAt = &at
	return nil
}

// Can checks if an event can be triggered
func (r *ReservationFSM) Can(event string) bool {
	return r.fsm.Can(event)
}

// AvailableTransitions returns available transitions from current state
func (r *ReservationFSM) AvailableTransitions() []string {
	return r.fsm.AvailableTransitions()
}
