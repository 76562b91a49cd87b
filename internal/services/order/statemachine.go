package order

import (
	"time"

	"restaurant-ordering/internal/models"
)

// TransitionEffects lists the writes outside the order row a transition requires
type TransitionEffects struct {
	ReleaseTable bool
	CloseSession bool
}

// ApplyTransition validates moving order to status `to` and mutates the order in place.
// The caller persists the result. The order is left untouched on error.
func ApplyTransition(order *models.Order, to models.OrderStatus, reason string, now time.Time) (TransitionEffects, error) {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return TransitionEffects{}, models.Errorf(models.ErrInvalidTransition,
			"cannot move order %s from %s to %s", order.OrderNumber, from, to)
	}

	var effects TransitionEffects
	switch to {
	case models.StatusConfirmed:
		stampOnce(&order.ConfirmedAt, now)
	case models.StatusPreparing:
		stampOnce(&order.PreparingAt, now)
	case models.StatusReady:
		stampOnce(&order.ReadyAt, now)
	case models.StatusServed:
		stampOnce(&order.ServedAt, now)
	case models.StatusCompleted:
		if order.PaymentStatus != models.PaymentPaid {
			return TransitionEffects{}, models.Errorf(models.ErrPaymentNotConfirmed,
				"order %s has payment status %s", order.OrderNumber, order.PaymentStatus)
		}
		stampOnce(&order.CompletedAt, now)
		effects = TransitionEffects{ReleaseTable: true, CloseSession: true}
	case models.StatusCancelled:
		if order.PaymentStatus == models.PaymentPaid {
			return TransitionEffects{}, models.Errorf(models.ErrRefundRequired,
				"order %s is paid, refund it before cancelling", order.OrderNumber)
		}
		stampOnce(&order.CancelledAt, now)
		if reason != "" {
			order.CancellationReason = &reason
		}
		effects = TransitionEffects{ReleaseTable: true}
	}

	order.Status = to
	order.UpdatedAt = now
	return effects, nil
}

func stampOnce(field **time.Time, now time.Time) {
	if *field == nil {
		t := now
		*field = &t
	}
}
