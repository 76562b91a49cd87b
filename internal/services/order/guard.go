package order

import (
	"context"
	"fmt"
	"time"

	"restaurant-ordering/internal/models"
)

// AssertBranchReady fails with ErrBranchClosed unless the branch is active, accepting
// orders and open at now in its own time zone.
func AssertBranchReady(branch *models.Branch, now time.Time) error {
	if !branch.IsActive {
		return models.Errorf(models.ErrBranchClosed, "branch %s is not active", branch.Name)
	}
	if !branch.AcceptOrders {
		return models.Errorf(models.ErrBranchClosed, "branch %s is not accepting orders", branch.Name)
	}
	if !isOpen(branch, now.In(branch.Location())) {
		return models.Errorf(models.ErrBranchClosed, "branch %s is closed now", branch.Name)
	}
	return nil
}

// isOpen checks today's window and the tail of yesterday's window when it ran past midnight.
// A branch without configured hours is always open.
func isOpen(branch *models.Branch, local time.Time) bool {
	if len(branch.OperatingHours) == 0 {
		return true
	}
	minute := local.Hour()*60 + local.Minute()

	if h, ok := branch.OperatingHours[local.Weekday()]; ok && !h.Closed {
		open, errOpen := parseClock(h.Open)
		closing, errClose := parseClock(h.Close)
		if errOpen == nil && errClose == nil {
			switch {
			case open == closing:
				return true
			case open < closing:
				if minute >= open && minute < closing {
					return true
				}
			default:
				if minute >= open {
					return true
				}
			}
		}
	}

	prev := local.AddDate(0, 0, -1).Weekday()
	if h, ok := branch.OperatingHours[prev]; ok && !h.Closed {
		open, errOpen := parseClock(h.Open)
		closing, errClose := parseClock(h.Close)
		if errOpen == nil && errClose == nil && closing < open && minute < closing {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	if s == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Guard checks table occupancy before an order is built. The store re-checks at commit.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// AssertTableFree fails with ErrTableOccupied when the table has a non-terminal order
func (g *Guard) AssertTableFree(ctx context.Context, tableID string) error {
	active, err := g.store.HasActiveOrder(ctx, tableID)
	if err != nil {
		return fmt.Errorf("failed to check table occupancy: %w", err)
	}
	if active {
		return models.Errorf(models.ErrTableOccupied, "table %s already has an active order", tableID)
	}
	return nil
}
