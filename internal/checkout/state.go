package checkout

// State is the position of a session in the checkout flow.
type State string

const (
	StateCollectingDetails           State = "collecting_details"
	StateAwaitingPaymentIntent       State = "awaiting_payment_intent"
	StateAwaitingPaymentConfirmation State = "awaiting_payment_confirmation"
	StateSubmitting                  State = "submitting"
	StateCompleted                   State = "completed"
	StateErrored                     State = "errored"
)

// InFlight reports whether an external call or payment is outstanding.
func (s State) InFlight() bool {
	switch s {
	case StateAwaitingPaymentIntent, StateAwaitingPaymentConfirmation, StateSubmitting:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}
