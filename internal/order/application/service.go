package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/storefront-reconciler/internal/order/domain"
)

var (
	ErrInvalidCheckout = errors.New("invalid checkout")
	ErrForbidden       = errors.New("order belongs to another user")
)

type CheckoutItem struct {
	ProductID string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Image     string          `json:"image"`
}

type CheckoutCustomer struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

type CheckoutAddress struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country"`
}

type Checkout struct {
	UserID   string           `json:"userId"`
	Items    []CheckoutItem   `json:"items" validate:"required,min=1,dive"`
	Customer CheckoutCustomer `json:"user"`
	Address  CheckoutAddress  `json:"shippingAddress"`
	Discount decimal.Decimal  `json:"discount"`
}

type Pricing struct {
	ShippingCost   decimal.Decimal
	DefaultCountry string
}

type Service struct {
	repo     OrderRepository
	pricing  Pricing
	validate *validator.Validate
}

func NewService(repo OrderRepository, pricing Pricing) *Service {
	return &Service{repo: repo, pricing: pricing, validate: validator.New()}
}

// PlaceOrder records the order before any payment attempt; the returned
// order's external reference is what the gateway will echo back.
func (s *Service) PlaceOrder(ctx context.Context, c Checkout) (domain.Order, error) {
	if err := s.validate.StructCtx(ctx, c); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrInvalidCheckout, err)
	}
	if c.Discount.IsNegative() {
		return domain.Order{}, fmt.Errorf("%w: discount must not be negative", ErrInvalidCheckout)
	}

	items := make([]domain.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Price.IsNegative() {
			return domain.Order{}, fmt.Errorf("%w: item %s has a negative price", ErrInvalidCheckout, it.ProductID)
		}
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Image:       it.Image,
		})
	}

	country := strings.TrimSpace(c.Address.Country)
	if country == "" {
		country = s.pricing.DefaultCountry
	}
	draft := domain.NewDraft(c.UserID, items, c.Discount, s.pricing.ShippingCost,
		domain.Customer{Name: c.Customer.Name, Email: c.Customer.Email, Phone: c.Customer.Phone},
		domain.Address{
			Street:  c.Address.Street,
			City:    c.Address.City,
			State:   c.Address.State,
			ZipCode: c.Address.ZipCode,
			Country: country,
		},
	)
	if draft.Total.IsNegative() {
		return domain.Order{}, fmt.Errorf("%w: discount exceeds order value", ErrInvalidCheckout)
	}
	return s.repo.Create(ctx, draft)
}

// Get returns the order, refusing when requester and owner are both known
// and differ.
func (s *Service) Get(ctx context.Context, id, requester string) (domain.Order, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if requester != "" && o.UserID != "" && o.UserID != requester {
		return domain.Order{}, ErrForbidden
	}
	return o, nil
}

// ListForUser returns the user's orders newest first. Guests have no history.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return []domain.Order{}, nil
	}
	return s.repo.ListByUser(ctx, userID)
}

// GetByExternalReference applies the same ownership rule as Get.
func (s *Service) GetByExternalReference(ctx context.Context, ref, requester string) (domain.Order, error) {
	o, err := s.repo.FindByExternalReference(ctx, ref)
	if err != nil {
		return domain.Order{}, err
	}
	if requester != "" && o.UserID != "" && o.UserID != requester {
		return domain.Order{}, ErrForbidden
	}
	return o, nil
}
