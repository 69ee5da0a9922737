package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"grocer/internal/pricing"

	"github.com/go-playground/validator/v10"
)

// Details is the customer and delivery form filled in before payment.
type Details struct {
	Name                  string               `json:"name" validate:"required,max=100"`
	Email                 string               `json:"email" validate:"omitempty,email"`
	Phone                 string               `json:"phone" validate:"required,max=30"`
	Address               string               `json:"address" validate:"required,max=300"`
	Postcode              string               `json:"postcode" validate:"omitempty,max=12"`
	DeliveryNotes         string               `json:"deliveryNotes" validate:"omitempty,max=500"`
	DeliveryType          pricing.DeliveryType `json:"deliveryType" validate:"omitempty,oneof=standard express scheduled"`
	ScheduledDeliveryTime *time.Time           `json:"scheduledDeliveryTime,omitempty"`
	PromoCode             string               `json:"promoCode" validate:"omitempty,max=50"`
}

func (d Details) normalised() Details {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.Postcode = strings.ToUpper(strings.TrimSpace(d.Postcode))
	d.DeliveryNotes = strings.TrimSpace(d.DeliveryNotes)
	d.PromoCode = strings.ToUpper(strings.TrimSpace(d.PromoCode))
	if d.DeliveryType != pricing.DeliveryScheduled {
		d.ScheduledDeliveryTime = nil
	}
	return d
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateDetails checks the form. The returned error, when not nil, is a
// *ValidationError.
func validateDetails(d Details, now time.Time) *ValidationError {
	verr := &ValidationError{}
	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.add("details", err.Error())
			return verr
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), fieldMessage(fe))
		}
	}
	if d.DeliveryType == pricing.DeliveryScheduled {
		if d.ScheduledDeliveryTime == nil || !d.ScheduledDeliveryTime.After(now) {
			verr.add("scheduledDeliveryTime", "scheduledDeliveryTime must be in the future")
		}
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
}
