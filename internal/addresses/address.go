package addresses

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
)

type Type string

const (
	TypeHome  Type = "home"
	TypeWork  Type = "work"
	TypeOther Type = "other"
)

type Address struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AddressType Type      `json:"address_type"`
	FullAddress string    `json:"full_address"`
	Landmark    string    `json:"landmark,omitempty"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Pincode     string    `json:"pincode"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewAddress struct {
	AddressType Type   `json:"address_type"`
	FullAddress string `json:"full_address"`
	Landmark    string `json:"landmark"`
	City        string `json:"city"`
	State       string `json:"state"`
	Pincode     string `json:"pincode"`
}

var pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// Normalize trims every field and defaults the type to home.
func (n NewAddress) Normalize() NewAddress {
	n.FullAddress = strings.TrimSpace(n.FullAddress)
	n.Landmark = strings.TrimSpace(n.Landmark)
	n.City = strings.TrimSpace(n.City)
	n.State = strings.TrimSpace(n.State)
	n.Pincode = strings.ReplaceAll(strings.TrimSpace(n.Pincode), " ", "")
	if n.AddressType == "" {
		n.AddressType = TypeHome
	}
	return n
}

func (n NewAddress) Validate() error {
	switch n.AddressType {
	case TypeHome, TypeWork, TypeOther:
	default:
		return apperr.Validation("InvalidAddressType", "address type must be home, work or other")
	}
	if n.FullAddress == "" || n.City == "" || n.State == "" || n.Pincode == "" {
		return apperr.Validation("MissingAddressFields", "please fill all required fields")
	}
	if !pincodeRe.MatchString(n.Pincode) {
		return apperr.Validation("InvalidPincode", "pincode must be 6 digits")
	}
	return nil
}

// Repository stores address books. Insert makes the address the default
// when it is the user's first one.
type Repository interface {
	Insert(ctx context.Context, userID string, a NewAddress) (Address, error)
	List(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, id string) (Address, error)
	SetDefault(ctx context.Context, userID, id string) error
}

type Service struct{ Repo Repository }

func (s *Service) Add(ctx context.Context, userID string, in NewAddress) (Address, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Address{}, err
	}
	a, err := s.Repo.Insert(ctx, userID, in)
	if err != nil {
		return Address{}, apperr.Remote("add address", err)
	}
	return a, nil
}

// List returns the default address first.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	out, err := s.Repo.List(ctx, userID)
	return out, apperr.Remote("list addresses", err)
}

func (s *Service) Get(ctx context.Context, userID, id string) (Address, error) {
	a, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return Address{}, apperr.Remote("get address", err)
	}
	return a, nil
}

func (s *Service) SetDefault(ctx context.Context, userID, id string) error {
	return apperr.Remote("set default address", s.Repo.SetDefault(ctx, userID, id))
}
