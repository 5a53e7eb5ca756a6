package entity

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Balance represents a single organization's spendable token pool.
// Exactly one balance exists per organization. TokenCount is the sole
// authority for affordability decisions; concurrent workers must
// re-check it before each individual debit, not only before a batch.
type Balance struct {
	id             uuid.UUID
	organizationID uuid.UUID
	tokenCount     float64
	isTrial        bool
	createdAt      time.Time
	updatedAt      time.Time
}

// NewBalance creates a balance for an organization with an initial credit.
func NewBalance(organizationID uuid.UUID, initialTokens float64, trial bool) *Balance {
	now := time.Now()
	return &Balance{
		id:             uuid.New(),
		organizationID: organizationID,
		tokenCount:     initialTokens,
		isTrial:        trial,
		createdAt:      now,
		updatedAt:      now,
	}
}

// RestoreBalance creates a Balance entity from stored data.
func RestoreBalance(
	id uuid.UUID,
	organizationID uuid.UUID,
	tokenCount float64,
	isTrial bool,
	createdAt time.Time,
	updatedAt time.Time,
) *Balance {
	return &Balance{
		id:             id,
		organizationID: organizationID,
		tokenCount:     tokenCount,
		isTrial:        isTrial,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the balance ID.
func (b *Balance) ID() uuid.UUID {
	return b.id
}

// OrganizationID returns the owning organization ID.
func (b *Balance) OrganizationID() uuid.UUID {
	return b.organizationID
}

// TokenCount returns the current spendable token count.
func (b *Balance) TokenCount() float64 {
	return b.tokenCount
}

// IsTrial returns true while the balance still runs on trial credit.
func (b *Balance) IsTrial() bool {
	return b.isTrial
}

// CreatedAt returns the creation timestamp.
func (b *Balance) CreatedAt() time.Time {
	return b.createdAt
}

// UpdatedAt returns the last mutation timestamp.
func (b *Balance) UpdatedAt() time.Time {
	return b.updatedAt
}

// CanAfford reports whether the balance meets the minimum operating
// threshold. This check is advisory: the storage-layer conditional
// debit is what actually serializes concurrent spending.
func (b *Balance) CanAfford(minimumThreshold float64) bool {
	return b.tokenCount >= minimumThreshold
}

// RoundTokens rounds an internal-currency amount to two decimal places,
// the resolution the ledger stores.
func RoundTokens(amount float64) float64 {
	return math.Round(amount*100) / 100
}
