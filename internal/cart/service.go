package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

// ProductSource resolves catalog products for new cart lines.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Service encapsulates cart domain operations. Every mutation of one cart runs
// under that cart's lock: load, reduce, save.
type Service struct {
	Store    Store
	Locker   lock.Locker
	Products ProductSource
	Promos   *voucher.Registry
	Policy   pricing.Policy
	Logger   zerolog.Logger
	Now      func() time.Time
}

// View is the priced representation of a cart.
type View struct {
	Cart          State                  `json:"cart"`
	Totals        pricing.Summary        `json:"totals"`
	TotalsDisplay pricing.SummaryDisplay `json:"totalsDisplay"`
	InStock       []pricing.Item         `json:"inStock"`
	OutOfStock    []pricing.Item         `json:"outOfStock"`
	ItemCount     int                    `json:"itemCount"`
}

// Outcome is a View plus the reducer verdict, so ignored requests are visible.
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
	if s == nil || s.Store == nil || s.Locker == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	state := New(uuid.NewString(), s.now())
	if err := s.Store.Save(ctx, state); err != nil {
		return View{}, err
	}
	s.Logger.Debug().Str("cart_id", state.ID).Msg("cart created")
	return s.view(state)
}

// Get returns the priced cart.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	state, err := s.Store.Load(ctx, id)
	if err != nil {
		return View{}, s.mapError(err)
	}
	return s.view(state)
}

// State returns the raw cart snapshot.
func (s *Service) State(ctx context.Context, id string) (State, error) {
	if err := s.ready(); err != nil {
		return State{}, err
	}
	state, err := s.Store.Load(ctx, id)
	if err != nil {
		return State{}, s.mapError(err)
	}
	return state, nil
}

// Quote prices the cart.
func (s *Service) Quote(ctx context.Context, id string) (pricing.Summary, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return pricing.Summary{}, err
	}
	return Totals(state, s.Policy)
}

// AddItem adds qty units of a catalog product.
func (s *Service) AddItem(ctx context.Context, id, productID string, qty int) (Outcome, error) {
	if s.Products == nil {
		return Outcome{}, errors.New("cart product source not configured")
	}
	product, err := s.Products.GetProduct(ctx, productID)
	if err != nil {
		return Outcome{}, err
	}
	return s.mutate(ctx, id, "add_item", func(st State) (Result, error) {
		return AddItem(st, product.LineItem(qty))
	})
}

// UpdateQuantity sets the quantity of a line using the lenient clamp policy.
func (s *Service) UpdateQuantity(ctx context.Context, id, productID string, qty int) (Outcome, error) {
	return s.mutate(ctx, id, "set_quantity", func(st State) (Result, error) {
		return SetQuantity(st, productID, qty), nil
	})
}

// RemoveItem drops a line.
func (s *Service) RemoveItem(ctx context.Context, id, productID string) (Outcome, error) {
	return s.mutate(ctx, id, "remove_item", func(st State) (Result, error) {
		return RemoveItem(st, productID), nil
	})
}

// MoveToWishlist drops a line the shopper saved for later.
func (s *Service) MoveToWishlist(ctx context.Context, id, productID string) (Outcome, error) {
	return s.mutate(ctx, id, "move_to_wishlist", func(st State) (Result, error) {
		return MoveToWishlist(st, productID), nil
	})
}

// ApplyPromo activates a promo code. Unknown codes are reported as not applied.
func (s *Service) ApplyPromo(ctx context.Context, id, code string) (Outcome, error) {
	out, err := s.mutate(ctx, id, "apply_promo", func(st State) (Result, error) {
		return ApplyPromo(st, s.Promos, code), nil
	})
	if err == nil {
		obs.ObservePromoAttempt(out.Reason != ReasonUnknownPromo)
	}
	return out, err
}

// RemovePromo clears the active promo.
func (s *Service) RemovePromo(ctx context.Context, id string) (Outcome, error) {
	return s.mutate(ctx, id, "remove_promo", func(st State) (Result, error) {
		return RemovePromo(st), nil
	})
}

// SelectShipping changes the shipping method.
func (s *Service) SelectShipping(ctx context.Context, id string, method pricing.Method) (Outcome, error) {
	return s.mutate(ctx, id, "select_shipping", func(st State) (Result, error) {
		return SelectShipping(st, s.Policy, method)
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, id string) (Outcome, error) {
	return s.mutate(ctx, id, "clear", func(st State) (Result, error) {
		return Clear(st), nil
	})
}

// WithCart runs fn under the cart's lock with its current state. Callers that
// need to read and then mutate a cart atomically (order placement) use this
// together with the package reducers; the returned state is saved when fn
// reports a change.
func (s *Service) WithCart(ctx context.Context, id string, fn func(State) (Result, error)) (Outcome, error) {
	return s.mutate(ctx, id, "external", fn)
}

func (s *Service) mutate(ctx context.Context, id, op string, reduce func(State) (Result, error)) (Outcome, error) {
	if err := s.ready(); err != nil {
		return Outcome{}, err
	}
	var res Result
	err := s.Locker.WithLock(ctx, "cart:"+id, func(ctx context.Context) error {
		state, err := s.Store.Load(ctx, id)
		if err != nil {
			return err
		}
		res, err = reduce(state)
		if err != nil {
			return err
		}
		if !res.Applied() {
			return nil
		}
		res.State.UpdatedAt = s.now()
		return s.Store.Save(ctx, res.State)
	})
	if err != nil {
		obs.ObserveCartMutation(op, "error")
		return Outcome{}, s.mapError(err)
	}
	obs.ObserveCartMutation(op, string(res.Status))
	s.Logger.Debug().
		Str("cart_id", id).
		Str("op", op).
		Str("status", string(res.Status)).
		Str("reason", res.Reason).
		Msg("cart mutation")

	view, err := s.view(res.State)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{View: view, Applied: res.Applied(), Reason: res.Reason}, nil
}

func (s *Service) view(state State) (View, error) {
	totals, err := Totals(state, s.Policy)
	if err != nil {
		return View{}, s.mapError(err)
	}
	return View{
		Cart:          state,
		Totals:        totals.Rounded(),
		TotalsDisplay: totals.Display(),
		InStock:       InStock(state),
		OutOfStock:    OutOfStock(state),
		ItemCount:     ItemCount(state),
	}, nil
}

func (s *Service) mapError(err error) error {
	if _, ok := common.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("cart not found", err)
	case errors.Is(err, pricing.ErrInvalidLineItem),
		errors.Is(err, pricing.ErrUnknownShippingMethod),
		errors.Is(err, pricing.ErrInvalidPromoRate):
		return common.BadRequest("", err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return common.NewAppError(common.CodeConflict, "cart is busy, retry", http.StatusConflict, err)
	default:
		return fmt.Errorf("cart: %w", err)
	}
}
