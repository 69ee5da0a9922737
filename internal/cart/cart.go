package cart

import (
	"github.com/shopspring/decimal"
)

// Line is a single product entry in a cart. UnitPrice is the price captured
// when the product was first added.
type Line struct {
	ProductID string          `json:"productId" validate:"required"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// EventKind identifies what a cart mutation did.
type EventKind string

const (
	ItemAdded   EventKind = "item_added"
	ItemUpdated EventKind = "item_updated"
	ItemRemoved EventKind = "item_removed"
	Cleared     EventKind = "cart_cleared"
)

// Event is recorded for every mutation that changed the cart.
type Event struct {
	Kind      EventKind
	ProductID string
	Name      string
	Quantity  int
}

// Cart holds line items in insertion order, at most one line per product.
// It is not safe for concurrent use; the owning session serialises access.
type Cart struct {
	lines  []Line
	events []Event
}

// New builds a cart from previously persisted lines. Lines with the same
// product are merged and lines with a non-positive quantity are dropped.
func New(lines ...Line) *Cart {
	c := &Cart{}
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			continue
		}
		if i := c.index(l.ProductID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		if l.UnitPrice.IsNegative() {
			l.UnitPrice = decimal.Zero
		}
		c.lines = append(c.lines, l)
	}
	return c
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add puts quantity units of the product in the cart. An existing line has its
// quantity increased and keeps its original price. A quantity below 1 is ignored.
func (c *Cart) Add(productID, name string, unitPrice decimal.Decimal, quantity int) {
	if productID == "" || quantity < 1 {
		return
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity += quantity
		c.record(ItemUpdated, c.lines[i])
		return
	}
	if unitPrice.IsNegative() {
		unitPrice = decimal.Zero
	}
	l := Line{ProductID: productID, Name: name, UnitPrice: unitPrice, Quantity: quantity}
	c.lines = append(c.lines, l)
	c.record(ItemAdded, l)
}

// Remove deletes the product's line. Removing an absent product does nothing.
func (c *Cart) Remove(productID string) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	l := c.lines[i]
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.record(ItemRemoved, l)
}

// SetQuantity overwrites the quantity of an existing line. A quantity of zero
// or less removes the line; unknown products are ignored.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	i := c.index(productID)
	if i < 0 || c.lines[i].Quantity == quantity {
		return
	}
	c.lines[i].Quantity = quantity
	c.record(ItemUpdated, c.lines[i])
}

// Clear empties the cart.
func (c *Cart) Clear() {
	if len(c.lines) == 0 {
		return
	}
	c.lines = nil
	c.events = append(c.events, Event{Kind: Cleared})
}

// Deduct takes the quantities of lines out of the cart, removing lines that
// drop to zero. Products not in the cart are skipped.
func (c *Cart) Deduct(lines []Line) {
	for _, paid := range lines {
		i := c.index(paid.ProductID)
		if i < 0 {
			continue
		}
		c.SetQuantity(paid.ProductID, c.lines[i].Quantity-paid.Quantity)
	}
}

// Subtotal is the sum of UnitPrice * Quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Total())
	}
	return total
}

// Count is the total number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// ProductIDs lists the products in insertion order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// PullEvents returns the events recorded since the last call and forgets them.
func (c *Cart) PullEvents() []Event {
	ev := c.events
	c.events = nil
	return ev
}

func (c *Cart) record(kind EventKind, l Line) {
	c.events = append(c.events, Event{Kind: kind, ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity})
}
