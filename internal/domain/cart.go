package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Cart is the per-account selection of items not yet purchased. TotalAmount is
// derived from Items and recomputed by every mutating method.
type Cart struct {
	ID          string     `bson:"_id,omitempty" json:"-"`
	UserID      string     `bson:"user_id" json:"userId"`
	Items       []LineItem `bson:"items" json:"items"`
	TotalAmount Money      `bson:"total_amount" json:"totalAmount"`
	Version     int64      `bson:"version" json:"version"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`

	// ClearedOrders lists the most recent orders already taken out of the cart.
	ClearedOrders []string `bson:"cleared_orders,omitempty" json:"-"`
}

// LineItem holds the price captured when the book was first added; later
// catalog price changes do not touch it.
type LineItem struct {
	ID            string    `bson:"line_id" json:"id"`
	CatalogItemID string    `bson:"catalog_item_id" json:"catalogItemId"`
	Quantity      int       `bson:"quantity" json:"quantity"`
	Price         Money     `bson:"price" json:"price"`
	AddedAt       time.Time `bson:"added_at" json:"addedAt"`
}

func (l LineItem) Subtotal() Money {
	return l.Price.Mul(l.Quantity)
}

func NewCart(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:    userID,
		Items:     []LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Add increments the line for item if present, otherwise appends a new line
// priced at the item's discounted price.
func (c *Cart) Add(item CatalogItem, quantity int, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	defer c.recalculate()

	for i := range c.Items {
		if c.Items[i].CatalogItemID == item.ID {
			c.Items[i].Quantity += quantity
			return nil
		}
	}
	c.Items = append(c.Items, LineItem{
		ID:            uuid.NewString(),
		CatalogItemID: item.ID,
		Quantity:      quantity,
		Price:         item.DiscountedPrice,
		AddedAt:       now,
	})
	return nil
}

func (c *Cart) UpdateQuantity(lineID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items[i].Quantity = quantity
			c.recalculate()
			return nil
		}
	}
	return ErrLineItemNotFound
}

// Remove reports whether a line was removed. A missing line is not an error.
func (c *Cart) Remove(lineID string) bool {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.recalculate()
			return true
		}
	}
	return false
}

// clearedOrdersKept bounds ClearedOrders.
const clearedOrdersKept = 20

// RemoveOrdered takes the quantities bought by order orderID out of the cart
// and reports whether the cart changed. Units added after the order was taken
// stay in the cart. A second call for the same order is a no-op.
func (c *Cart) RemoveOrdered(orderID string, items []OrderItem) bool {
	if slices.Contains(c.ClearedOrders, orderID) {
		return false
	}

	ordered := make(map[string]int, len(items))
	for _, it := range items {
		ordered[it.CatalogItemID] += it.Quantity
	}
	kept := make([]LineItem, 0, len(c.Items))
	for _, line := range c.Items {
		if want := ordered[line.CatalogItemID]; want > 0 {
			taken := min(want, line.Quantity)
			ordered[line.CatalogItemID] -= taken
			line.Quantity -= taken
		}
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	c.Items = kept

	c.ClearedOrders = append(c.ClearedOrders, orderID)
	if n := len(c.ClearedOrders); n > clearedOrdersKept {
		c.ClearedOrders = c.ClearedOrders[n-clearedOrdersKept:]
	}
	c.recalculate()
	return true
}

func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.TotalAmount = 0
}

// Total sums price x quantity over all lines.
func (c *Cart) Total() Money {
	var total Money
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

func (c *Cart) recalculate() {
	c.TotalAmount = c.Total()
}

// Clone returns a deep copy, so a snapshot is never aliased by later edits.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	cp.ClearedOrders = slices.Clone(c.ClearedOrders)
	return &cp
}
