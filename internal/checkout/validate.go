package checkout

import (
	"regexp"
	"strings"

	"velora-storefront/internal/dto"
)

var (
	phonePattern  = regexp.MustCompile(`^(0|\+84)[0-9]{9,10}$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	cardPattern   = regexp.MustCompile(`^[0-9]{12,19}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cvvPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// ValidationError carries field-level messages keyed by field name. The
// step that produced it does not advance.
type ValidationError map[string]string

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

func validateShipping(info dto.ShippingInfo) ValidationError {
	errs := ValidationError{}
	if strings.TrimSpace(info.Name) == "" {
		errs["name"] = "name is required"
	}
	if !phonePattern.MatchString(strings.TrimSpace(info.Phone)) {
		errs["phone"] = "phone number is invalid"
	}
	if !emailPattern.MatchString(strings.TrimSpace(info.Email)) {
		errs["email"] = "email address is invalid"
	}
	if strings.TrimSpace(info.Address) == "" {
		errs["address"] = "address is required"
	}
	if strings.TrimSpace(info.City) == "" {
		errs["city"] = "city is required"
	}
	if strings.TrimSpace(info.District) == "" {
		errs["district"] = "district is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validatePayment checks only the fields of the chosen method.
func validatePayment(sel PaymentSelection) ValidationError {
	errs := ValidationError{}
	switch sel.Method {
	case MethodCOD:
		// nothing to collect
	case MethodBankTransfer:
		if strings.TrimSpace(sel.BankCode) == "" {
			errs["bank_code"] = "bank code is required"
		}
	case MethodCard:
		if !cardPattern.MatchString(strings.ReplaceAll(sel.CardNumber, " ", "")) {
			errs["card_number"] = "card number is invalid"
		}
		if !expiryPattern.MatchString(sel.CardExpiry) {
			errs["card_expiry"] = "expiry must be MM/YY"
		}
		if !cvvPattern.MatchString(sel.CardCVV) {
			errs["card_cvv"] = "cvv is invalid"
		}
	default:
		errs["method"] = "unknown payment method"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
