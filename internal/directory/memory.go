package directory

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory Directory for tests and local development.
type MemoryDirectory struct {
	mu        sync.RWMutex
	customers map[string]CustomerRecord
	upcoming  map[string]BookingSummary
	last      map[string]BookingSummary
	optedOut  map[string]bool
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		customers: make(map[string]CustomerRecord),
		upcoming:  make(map[string]BookingSummary),
		last:      make(map[string]BookingSummary),
		optedOut:  make(map[string]bool),
	}
}

var _ Directory = (*MemoryDirectory)(nil)

// AddCustomer seeds a customer record.
func (d *MemoryDirectory) AddCustomer(rec CustomerRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[rec.Phone] = rec
}

// SetUpcoming seeds the upcoming booking for a phone.
func (d *MemoryDirectory) SetUpcoming(phone string, b BookingSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upcoming[phone] = b
}

// SetLastCompleted seeds the last completed booking for a phone.
func (d *MemoryDirectory) SetLastCompleted(phone string, b BookingSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[phone] = b
}

func (d *MemoryDirectory) Lookup(_ context.Context, phone string) (*CustomerRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.customers[phone]
	if !ok {
		return nil, nil
	}
	rec.Consent = !d.optedOut[phone]
	return &rec, nil
}

func (d *MemoryDirectory) UpcomingBooking(_ context.Context, phone string) (*BookingSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if b, ok := d.upcoming[phone]; ok {
		return &b, nil
	}
	return nil, nil
}

func (d *MemoryDirectory) LastCompletedBooking(_ context.Context, phone string) (*BookingSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if b, ok := d.last[phone]; ok {
		return &b, nil
	}
	return nil, nil
}

func (d *MemoryDirectory) ConsentState(_ context.Context, phone string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.optedOut[phone], nil
}

func (d *MemoryDirectory) SetConsent(_ context.Context, phone string, consented bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.optedOut[phone] = !consented
	return nil
}
