package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPromoCodeRedeemable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	deleted := now.Add(-time.Hour)

	tests := []struct {
		name string
		p    PromoCode
		want bool
	}{
		{"active", PromoCode{ValidUntil: now.Add(24 * time.Hour)}, true},
		{"valid until exactly now", PromoCode{ValidUntil: now}, true},
		{"expired", PromoCode{ValidUntil: now.Add(-24 * time.Hour)}, false},
		{"used", PromoCode{ValidUntil: now.Add(time.Hour), IsUsed: true}, false},
		{"deleted", PromoCode{ValidUntil: now.Add(time.Hour), DeletedAt: &deleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Redeemable(now))
		})
	}
}

func TestEventIsFree(t *testing.T) {
	zero := decimal.Zero
	price := decimal.NewFromInt(50000)
	assert.True(t, (&Event{}).IsFree())
	assert.True(t, (&Event{Price: &zero}).IsFree())
	assert.False(t, (&Event{Price: &price}).IsFree())
}

func TestTransactionTransitions(t *testing.T) {
	assert.True(t, TransactionTransitions.Can(TransactionUnpaid, TransactionPaid))
	assert.True(t, TransactionTransitions.Can(TransactionFailed, TransactionPending))
	assert.False(t, TransactionTransitions.Can(TransactionPaid, TransactionUnpaid))
	for _, s := range []TransactionStatus{TransactionCancelled, TransactionExpired, TransactionRefunded} {
		assert.True(t, TransactionTransitions.Terminal(s), s)
	}
	assert.Len(t, TransactionTransitions.States(), 7)
}

func TestRegistrantTransitions(t *testing.T) {
	assert.True(t, RegistrantTransitions.Can(RegistrantPending, RegistrantPaid))
	assert.True(t, RegistrantTransitions.Can(RegistrantPaid, RegistrantCancelled))
	assert.False(t, RegistrantTransitions.Can(RegistrantRejected, RegistrantPaid))
	assert.False(t, RegistrantTransitions.Can(RegistrantPaid, RegistrantPending))
}

func TestTransactionReleasesPromo(t *testing.T) {
	for _, s := range []TransactionStatus{TransactionFailed, TransactionCancelled, TransactionExpired} {
		assert.True(t, s.ReleasesPromo(), s)
	}
	for _, s := range []TransactionStatus{TransactionUnpaid, TransactionPending, TransactionPaid, TransactionRefunded} {
		assert.False(t, s.ReleasesPromo(), s)
	}
}

func TestTransactionBreakdown(t *testing.T) {
	tx := &CourseTransaction{OriginalPrice: decimal.NewFromInt(100000), Discount: decimal.NewFromInt(100000), FinalPrice: decimal.Zero}
	assert.True(t, tx.Breakdown().IsFree())
	assert.True(t, tx.Breakdown().Consistent())

	tx.FinalPrice = decimal.NewFromInt(1)
	assert.False(t, tx.Breakdown().Consistent())
}
