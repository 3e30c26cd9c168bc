// Package cart holds the customer's prospective order lines before checkout.
// The cart is entirely client-owned: every mutation is written through to a
// Storage so an interrupted session resumes with the same contents.
package cart

import (
	"errors"
	"sync"
)

type Customization struct {
	GroupID    int64  `json:"groupId"`
	GroupName  string `json:"groupName"`
	OptionID   int64  `json:"optionId"`
	OptionName string `json:"optionName"`
	ExtraPrice int64  `json:"extraPrice"`
}

type Item struct {
	MenuID         int64           `json:"menuId"`
	MenuName       string          `json:"menuName"`
	Quantity       int32           `json:"quantity"`
	UnitPrice      int64           `json:"unitPrice"`
	Customizations []Customization `json:"customizations,omitempty"`
}

func (i Item) ExtraPrice() int64 {
	var extra int64
	for _, c := range i.Customizations {
		extra += c.ExtraPrice
	}
	return extra
}

func (i Item) LineTotal() int64 {
	return int64(i.Quantity) * (i.UnitPrice + i.ExtraPrice())
}

type Cart struct {
	TableCode string `json:"tableCode"`
	Items     []Item `json:"items"`
}

// Storage persists the cart between sessions. The zero-value Cart is what a
// fresh session starts from.
type Storage interface {
	Load() (Cart, error)
	Save(Cart) error
}

type Store struct {
	mu      sync.Mutex
	storage Storage
	cart    Cart
}

func NewStore(storage Storage) (*Store, error) {
	if storage == nil {
		return nil, errors.New("cart: storage is required")
	}
	loaded, err := storage.Load()
	if err != nil {
		return nil, err
	}
	return &Store{storage: storage, cart: loaded}, nil
}

func (s *Store) SetTable(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart.TableCode != "" && s.cart.TableCode != code {
		// Switching tables abandons the previous table's cart.
		s.cart.Items = nil
	}
	s.cart.TableCode = code
	return s.storage.Save(s.cart)
}

// Add merges into an existing line when the item carries no customizations
// and an uncustomized line for the same menu id already exists. Customized
// items always become their own line.
func (s *Store) Add(item Item) error {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(item.Customizations) == 0 {
		for idx := range s.cart.Items {
			existing := &s.cart.Items[idx]
			if existing.MenuID == item.MenuID && len(existing.Customizations) == 0 {
				existing.Quantity += item.Quantity
				return s.storage.Save(s.cart)
			}
		}
	}

	s.cart.Items = append(s.cart.Items, item)
	return s.storage.Save(s.cart)
}

func (s *Store) SetQuantity(index int, quantity int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.cart.Items) {
		return errors.New("cart: item index out of range")
	}
	if quantity <= 0 {
		s.cart.Items = append(s.cart.Items[:index], s.cart.Items[index+1:]...)
	} else {
		s.cart.Items[index].Quantity = quantity
	}
	return s.storage.Save(s.cart)
}

func (s *Store) Remove(index int) error {
	return s.SetQuantity(index, 0)
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.cart.Items))
	copy(out, s.cart.Items)
	return out
}

func (s *Store) TableCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TableCode
}

func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, item := range s.cart.Items {
		total += item.LineTotal()
	}
	return total
}

// Clear empties the cart and persists the empty state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Items = nil
	return s.storage.Save(s.cart)
}
