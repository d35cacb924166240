package service

import (
	"time"

	"rentescrow/internal/models"
)

// LeaseAmount prices a landlord or agent payment in minor units.
func LeaseAmount(paymentType string, monthlyRent int64, leaseTerm string, bookingFee int64) (int64, error) {
	switch paymentType {
	case models.PaymentSecurityDeposit, models.PaymentFirstMonthRent, models.PaymentLastMonthRent:
		return monthlyRent, nil
	case models.PaymentBookingFee:
		return bookingFee, nil
	case models.PaymentFullLease:
		months, ok := models.LeaseTermMonths[leaseTerm]
		if !ok {
			return 0, validationError(CodeUnsupportedLeaseTerm,
				"full lease payment calculation not supported for lease term %q", leaseTerm)
		}
		return monthlyRent * int64(months), nil
	default:
		return 0, validationError(CodeInvalidPaymentType, "amount calculation not supported for %s", paymentType)
	}
}

// StayAmount prices a hotel stay and returns the number of nights.
func StayAmount(nightlyRate int64, checkIn, checkOut time.Time) (int64, int, error) {
	nights := models.NightsBetween(checkIn, checkOut)
	if nights <= 0 {
		return 0, 0, validationError(CodeInvalidDateRange, "check-out date must be after check-in date")
	}
	return nightlyRate * int64(nights), nights, nil
}
