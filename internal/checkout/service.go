package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrNotReady is returned when an order is placed before the review step.
	ErrNotReady = errors.New("checkout: not at review step")
	// ErrEmptyCart is returned when an order is placed for an empty cart.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrAddressIncomplete is returned when an order is placed without a
	// complete shipping address.
	ErrAddressIncomplete = errors.New("checkout: shipping address incomplete")
)

// Service drives checkout sessions and places simulated orders.
type Service struct {
	Store  Store
	Locker lock.Locker
	Carts  *cart.Service
	Events *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time
}

// View is a session together with the priced cart it checks out.
type View struct {
	Checkout        Session   `json:"checkout"`
	StepName        string    `json:"stepName"`
	AddressComplete bool      `json:"addressComplete"`
	MissingFields   []string  `json:"missingFields,omitempty"`
	Cart            cart.View `json:"cart"`
}

// Outcome is a View plus the reducer verdict.
type Outcome struct {
	View
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Locker == nil || s.Carts == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

// Start opens a checkout for an existing cart.
func (s *Service) Start(ctx context.Context, cartID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if _, err := s.Carts.State(ctx, cartID); err != nil {
		return View{}, err
	}
	session := NewSession(uuid.NewString(), cartID, s.now())
	if err := s.Store.SaveSession(ctx, session); err != nil {
		return View{}, err
	}
	s.Logger.Debug().Str("checkout_id", session.ID).Str("cart_id", cartID).Msg("checkout started")
	return s.view(ctx, session)
}

// Get returns the session and its cart.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	session, err := s.Store.LoadSession(ctx, id)
	if err != nil {
		return View{}, mapError(err)
	}
	return s.view(ctx, session)
}

// SetAddress replaces the shipping address.
func (s *Service) SetAddress(ctx context.Context, id string, addr ShippingAddress, save bool) (Outcome, error) {
	return s.mutate(ctx, id, func(sess Session) (Result, error) {
		return SetAddress(sess, addr, save), nil
	})
}

// SelectShipping changes the shipping method of the underlying cart so cart
// and checkout totals agree.
func (s *Service) SelectShipping(ctx context.Context, id string, method pricing.Method) (Outcome, error) {
	if err := s.ready(); err != nil {
		return Outcome{}, err
	}
	session, err := s.Store.LoadSession(ctx, id)
	if err != nil {
		return Outcome{}, mapError(err)
	}
	if session.Step == StepPlaced {
		view, err := s.view(ctx, session)
		return Outcome{View: view, Reason: ReasonAlreadyPlaced}, err
	}
	out, err := s.Carts.SelectShipping(ctx, session.CartID, method)
	if err != nil {
		return Outcome{}, err
	}
	view := s.viewWithCart(session, out.View)
	return Outcome{View: view, Applied: out.Applied, Reason: out.Reason}, nil
}

// Continue advances the wizard one step when the current step's gate passes.
func (s *Service) Continue(ctx context.Context, id string) (Outcome, error) {
	return s.mutate(ctx, id, func(sess Session) (Result, error) {
		return Continue(sess), nil
	})
}

// SetPayment records the payment method.
func (s *Service) SetPayment(ctx context.Context, id, method string, billingSame bool) (Outcome, error) {
	return s.mutate(ctx, id, func(sess Session) (Result, error) {
		return SetPayment(sess, method, billingSame)
	})
}

// Back returns to an earlier step.
func (s *Service) Back(ctx context.Context, id string, to Step) (Outcome, error) {
	return s.mutate(ctx, id, func(sess Session) (Result, error) {
		return Back(sess, to), nil
	})
}

// Order returns a placed order.
func (s *Service) Order(ctx context.Context, id string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	order, err := s.Store.LoadOrder(ctx, id)
	if err != nil {
		return Order{}, mapError(err)
	}
	return order, nil
}

// PlaceOrder prices the cart, records the order, clears the cart and emits
// order.placed followed by cart.cleared. The checkout lock is taken before the
// cart lock.
func (s *Service) PlaceOrder(ctx context.Context, id string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	ctx, span := obs.Tracer().Start(ctx, "checkout.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.id", id))

	var order Order
	err := s.Locker.WithLock(ctx, "checkout:"+id, func(ctx context.Context) error {
		session, err := s.Store.LoadSession(ctx, id)
		if err != nil {
			return err
		}
		if session.Step != StepReview {
			return fmt.Errorf("%s is at %s: %w", id, session.Step, ErrNotReady)
		}
		if !IsComplete(session.Address) {
			return ErrAddressIncomplete
		}
		now := s.now()
		_, err = s.Carts.WithCart(ctx, session.CartID, func(st cart.State) (cart.Result, error) {
			if len(st.Items) == 0 {
				return cart.Result{}, ErrEmptyCart
			}
			totals, err := cart.Totals(st, s.Carts.Policy)
			if err != nil {
				return cart.Result{}, err
			}
			order = Order{
				ID:            uuid.NewString(),
				CheckoutID:    session.ID,
				CartID:        st.ID,
				Items:         append([]pricing.Item(nil), st.Items...),
				Shipping:      st.Shipping,
				Address:       session.Address,
				PaymentMethod: session.PaymentMethod,
				Totals:        totals.Rounded(),
				TotalsDisplay: totals.Display(),
				PlacedAt:      now,
			}
			if st.Promo != nil {
				order.PromoCode = st.Promo.Code
			}
			if err := s.Store.SaveOrder(ctx, order); err != nil {
				return cart.Result{}, err
			}
			return cart.Clear(st), nil
		})
		if err != nil {
			return err
		}
		placed := MarkPlaced(session, order.ID)
		placed.Session.UpdatedAt = now
		return s.Store.SaveSession(ctx, placed.Session)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place order failed")
		return Order{}, mapError(err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	obs.ObserveOrderPlaced()
	s.Logger.Info().
		Str("checkout_id", id).
		Str("order_id", order.ID).
		Str("total", order.Totals.Total.StringFixed(2)).
		Msg("order placed")
	s.emit(ctx, order)
	return order, nil
}

func (s *Service) emit(ctx context.Context, order Order) {
	if s.Events == nil {
		return
	}
	placed := map[string]any{
		"orderId":  order.ID,
		"cartId":   order.CartID,
		"total":    order.Totals.Total,
		"items":    len(order.Items),
		"shipping": order.Shipping,
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderPlaced, order.ID, placed); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", order.ID).Msg("emit order.placed failed")
	}
	cleared := map[string]any{"cartId": order.CartID, "orderId": order.ID}
	if _, err := s.Events.Emit(ctx, events.TopicCartCleared, order.CartID, cleared); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", order.CartID).Msg("emit cart.cleared failed")
	}
}

func (s *Service) mutate(ctx context.Context, id string, reduce func(Session) (Result, error)) (Outcome, error) {
	if err := s.ready(); err != nil {
		return Outcome{}, err
	}
	var res Result
	err := s.Locker.WithLock(ctx, "checkout:"+id, func(ctx context.Context) error {
		session, err := s.Store.LoadSession(ctx, id)
		if err != nil {
			return err
		}
		res, err = reduce(session)
		if err != nil {
			return err
		}
		if !res.Applied() {
			return nil
		}
		res.Session.UpdatedAt = s.now()
		return s.Store.SaveSession(ctx, res.Session)
	})
	if err != nil {
		return Outcome{}, mapError(err)
	}
	s.Logger.Debug().
		Str("checkout_id", id).
		Str("step", res.Session.Step.String()).
		Str("status", string(res.Status)).
		Str("reason", res.Reason).
		Msg("checkout mutation")
	view, err := s.view(ctx, res.Session)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{View: view, Applied: res.Applied(), Reason: res.Reason}, nil
}

func (s *Service) view(ctx context.Context, session Session) (View, error) {
	cartView, err := s.Carts.Get(ctx, session.CartID)
	if err != nil {
		return View{}, err
	}
	return s.viewWithCart(session, cartView), nil
}

func (s *Service) viewWithCart(session Session, cartView cart.View) View {
	return View{
		Checkout:        session,
		StepName:        session.Step.String(),
		AddressComplete: IsComplete(session.Address),
		MissingFields:   MissingFields(session.Address),
		Cart:            cartView,
	}
}

func mapError(err error) error {
	if _, ok := common.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return common.NotFound("checkout not found", err)
	case errors.Is(err, ErrOrderNotFound):
		return common.NotFound("order not found", err)
	case errors.Is(err, ErrUnknownPaymentMethod):
		return common.BadRequest("method", "unsupported payment method", err)
	case errors.Is(err, ErrNotReady):
		return common.NewAppError(common.CodeConflict, "checkout is not at the review step", http.StatusConflict, err)
	case errors.Is(err, ErrAddressIncomplete):
		return common.NewAppError(common.CodeConflict, "shipping address is incomplete", http.StatusConflict, err)
	case errors.Is(err, ErrEmptyCart):
		return common.NewAppError(common.CodeConflict, "cart is empty", http.StatusConflict, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return common.NewAppError(common.CodeConflict, "checkout is busy, retry", http.StatusConflict, err)
	default:
		return fmt.Errorf("checkout: %w", err)
	}
}
