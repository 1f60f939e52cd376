package domain

import "time"

// Intent is a cart mutation request dispatched by a surface.
type Intent interface {
	Name() string
}

type AddIntent struct {
	Product  Product
	Quantity int
	Size     string
	Color    string
	At       time.Time
}

type RemoveIntent struct {
	LineID string
}

// SetQuantityIntent with Quantity <= 0 removes the line.
type SetQuantityIntent struct {
	LineID   string
	Quantity int
}

type ClearIntent struct{}

type OpenIntent struct{}

type CloseIntent struct{}

func (AddIntent) Name() string         { return "add" }
func (RemoveIntent) Name() string      { return "remove" }
func (SetQuantityIntent) Name() string { return "set_quantity" }
func (ClearIntent) Name() string       { return "clear" }
func (OpenIntent) Name() string        { return "open" }
func (CloseIntent) Name() string       { return "close" }

// Persisted reports whether the intent changes commerce state that is written to the slot.
func Persisted(in Intent) bool {
	switch in.(type) {
	case OpenIntent, CloseIntent:
		return false
	default:
		return true
	}
}

// Reduce applies in to c and returns the next cart. c is not modified.
func Reduce(c Cart, in Intent) Cart {
	next := c.Clone()

	switch in := in.(type) {
	case AddIntent:
		qty := max(in.Quantity, 1)
		id := LineID(in.Product.ID, in.Size, in.Color)
		if i := indexOf(next.Items, id); i >= 0 {
			next.Items[i].Quantity += qty
			break
		}
		next.Items = append(next.Items, LineItem{
			ID:        id,
			ProductID: in.Product.ID,
			Name:      in.Product.Name,
			UnitPrice: in.Product.Price,
			Quantity:  qty,
			Size:      in.Size,
			Color:     in.Color,
			AddedAt:   in.At,
		})
	case RemoveIntent:
		next.Items = removeLine(next.Items, in.LineID)
	case SetQuantityIntent:
		if in.Quantity <= 0 {
			next.Items = removeLine(next.Items, in.LineID)
			break
		}
		if i := indexOf(next.Items, in.LineID); i >= 0 {
			next.Items[i].Quantity = in.Quantity
		}
	case ClearIntent:
		next.Items = []LineItem{}
	case OpenIntent:
		next.Open = true
	case CloseIntent:
		next.Open = false
	}

	return Recalculate(next)
}

func indexOf(items []LineItem, lineID string) int {
	for i := range items {
		if items[i].ID == lineID {
			return i
		}
	}
	return -1
}

func removeLine(items []LineItem, lineID string) []LineItem {
	i := indexOf(items, lineID)
	if i < 0 {
		return items
	}
	return append(items[:i], items[i+1:]...)
}
