package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/toko-storefront/internal/cart"
)

// ErrUnknownPaymentMethod is returned for payment methods the store does not accept.
var ErrUnknownPaymentMethod = errors.New("checkout: unknown payment method")

// Step is a position in the checkout wizard.
type Step int

const (
	StepShipping Step = iota + 1
	StepPayment
	StepReview
	StepPlaced
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepPlaced:
		return "placed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// PaymentCard is the only accepted payment method; payment itself is simulated.
const PaymentCard = "card"

// Reasons attached to checkout results.
const (
	ReasonAddressIncomplete = "address_incomplete"
	ReasonPaymentMissing    = "payment_missing"
	ReasonWrongStep         = "wrong_step"
	ReasonInvalidStep       = "invalid_step"
	ReasonAlreadyPlaced     = "already_placed"
)

// Session is the state of one checkout.
type Session struct {
	ID                    string          `json:"id"`
	CartID                string          `json:"cartId"`
	Step                  Step            `json:"step"`
	Address               ShippingAddress `json:"address"`
	SaveAddress           bool            `json:"saveAddress"`
	PaymentMethod         string          `json:"paymentMethod"`
	BillingSameAsShipping bool            `json:"billingSameAsShipping"`
	OrderID               string          `json:"orderId,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// Result is a checkout reducer outcome.
type Result struct {
	Session Session
	Status  cart.Status
	Reason  string
}

// Applied reports whether the session changed.
func (r Result) Applied() bool { return r.Status == cart.StatusApplied }

func applied(s Session) Result {
	return Result{Session: s, Status: cart.StatusApplied}
}

func unchanged(s Session, reason string) Result {
	return Result{Session: s, Status: cart.StatusUnchanged, Reason: reason}
}

// NewSession starts a checkout at the shipping step with card payment and
// billing address matching the shipping address.
func NewSession(id, cartID string, now time.Time) Session {
	return Session{
		ID:                    id,
		CartID:                cartID,
		Step:                  StepShipping,
		Address:               ShippingAddress{Country: DefaultCountry},
		PaymentMethod:         PaymentCard,
		BillingSameAsShipping: true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// SetAddress replaces the shipping address. Partial addresses are accepted,
// but an incomplete address sends a session past shipping back to it.
func SetAddress(s Session, addr ShippingAddress, save bool) Result {
	if s.Step == StepPlaced {
		return unchanged(s, ReasonAlreadyPlaced)
	}
	s.Address = withDefaults(addr)
	s.SaveAddress = save
	if s.Step > StepShipping && !IsComplete(s.Address) {
		s.Step = StepShipping
	}
	return applied(s)
}

// SetPayment records the payment choice.
func SetPayment(s Session, method string, billingSame bool) (Result, error) {
	if method != PaymentCard {
		return Result{}, fmt.Errorf("%q: %w", method, ErrUnknownPaymentMethod)
	}
	if s.Step == StepPlaced {
		return unchanged(s, ReasonAlreadyPlaced), nil
	}
	s.PaymentMethod = method
	s.BillingSameAsShipping = billingSame
	return applied(s), nil
}

// ContinueToPayment moves from shipping to payment once the address is complete.
func ContinueToPayment(s Session) Result {
	if s.Step != StepShipping {
		return unchanged(s, ReasonWrongStep)
	}
	if !IsComplete(s.Address) {
		return unchanged(s, ReasonAddressIncomplete)
	}
	s.Step = StepPayment
	return applied(s)
}

// ContinueToReview moves from payment to review once a payment method is set.
func ContinueToReview(s Session) Result {
	if s.Step != StepPayment {
		return unchanged(s, ReasonWrongStep)
	}
	if s.PaymentMethod == "" {
		return unchanged(s, ReasonPaymentMissing)
	}
	s.Step = StepReview
	return applied(s)
}

// Continue advances from the current step.
func Continue(s Session) Result {
	switch s.Step {
	case StepShipping:
		return ContinueToPayment(s)
	case StepPayment:
		return ContinueToReview(s)
	case StepPlaced:
		return unchanged(s, ReasonAlreadyPlaced)
	default:
		return unchanged(s, ReasonWrongStep)
	}
}

// Back returns to an earlier step. Forward jumps and leaving a placed
// checkout are ignored.
func Back(s Session, to Step) Result {
	if s.Step == StepPlaced {
		return unchanged(s, ReasonAlreadyPlaced)
	}
	if to < StepShipping || to >= s.Step {
		return unchanged(s, ReasonInvalidStep)
	}
	s.Step = to
	return applied(s)
}

// MarkPlaced closes the checkout with the placed order.
func MarkPlaced(s Session, orderID string) Result {
	if s.Step == StepPlaced {
		return unchanged(s, ReasonAlreadyPlaced)
	}
	if s.Step != StepReview {
		return unchanged(s, ReasonWrongStep)
	}
	if !IsComplete(s.Address) {
		return unchanged(s, ReasonAddressIncomplete)
	}
	s.Step = StepPlaced
	s.OrderID = orderID
	return applied(s)
}
