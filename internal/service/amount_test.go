package service

import (
	"testing"
	"time"

	"rentescrow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseAmount(t *testing.T) {
	tests := []struct {
		name        string
		paymentType string
		leaseTerm   string
		want        int64
		code        string
	}{
		{"security deposit", models.PaymentSecurityDeposit, "1_year", 50_000, ""},
		{"first month", models.PaymentFirstMonthRent, "", 50_000, ""},
		{"last month", models.PaymentLastMonthRent, "", 50_000, ""},
		{"booking fee", models.PaymentBookingFee, "", 10_000, ""},
		{"full lease one year", models.PaymentFullLease, "1_year", 600_000, ""},
		{"full lease six months", models.PaymentFullLease, "6_months", 300_000, ""},
		{"full lease two years", models.PaymentFullLease, "2_years", 1_200_000, ""},
		{"full lease monthly", models.PaymentFullLease, "monthly", 50_000, ""},
		{"full lease unknown term", models.PaymentFullLease, "3_years", 0, CodeUnsupportedLeaseTerm},
		{"hotel stay is not a lease", models.PaymentHotelStay, "", 0, CodeInvalidPaymentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LeaseAmount(tt.paymentType, 50_000, tt.leaseTerm, 10_000)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, CodeOf(err))
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeaseAmountIsDeterministic(t *testing.T) {
	first, err := LeaseAmount(models.PaymentFullLease, 50_000, "1_year", 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := LeaseAmount(models.PaymentFullLease, 50_000, "1_year", 0)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestStayAmount(t *testing.T) {
	in := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	amount, nights, err := StayAmount(25_000, in, out)
	require.NoError(t, err)
	assert.Equal(t, 3, nights)
	assert.Equal(t, int64(75_000), amount)

	_, _, err = StayAmount(25_000, in, in)
	assert.Equal(t, CodeInvalidDateRange, CodeOf(err))

	_, _, err = StayAmount(25_000, out, in)
	assert.Equal(t, CodeInvalidDateRange, CodeOf(err))
}
