// Package pricing computes the amount due for a set of seats on a trip.
package pricing

import "context"

type Pricer interface {
	// Quote returns the total amount for the given seats on a trip.
	Quote(ctx context.Context, tripID int64, seatNos []string) (float64, error)
}

// FlatPricer charges a fixed amount per seat. Trip-specific fare tables
// live behind the same interface once they exist.
type FlatPricer struct {
	PerSeat float64
}

func (p FlatPricer) Quote(ctx context.Context, tripID int64, seatNos []string) (float64, error) {
	return p.PerSeat * float64(len(seatNos)), nil
}
