// Package directory is the client for the customer directory: the business
// system of record for customers, staff, and bookings. The conversation
// engine only reads from it, except for the consent flag which the consent
// gate flips on regulatory keywords.
package directory

import (
	"context"
	"time"
)

// BookingSummary is a read-only snapshot of one booking.
type BookingSummary struct {
	Date       time.Time
	Service    string
	Cleaner    string
	PriceCents int
}

// CustomerRecord is a read-only snapshot of a known customer.
type CustomerRecord struct {
	Phone           string
	Name            string
	Consent         bool
	AssignedCleaner string
}

// Directory resolves phone numbers to customer context. A nil record with a
// nil error means the phone is unknown (a prospect), not a failure. A nil
// booking summary means the customer simply has no such booking.
type Directory interface {
	Lookup(ctx context.Context, phone string) (*CustomerRecord, error)
	UpcomingBooking(ctx context.Context, phone string) (*BookingSummary, error)
	LastCompletedBooking(ctx context.Context, phone string) (*BookingSummary, error)
	ConsentState(ctx context.Context, phone string) (bool, error)
	SetConsent(ctx context.Context, phone string, consented bool) error
}
