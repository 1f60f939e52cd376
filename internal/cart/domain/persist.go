package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrCorruptSlot marks persisted data that cannot be turned back into line items.
var ErrCorruptSlot = errors.New("persisted cart is corrupt")

// legacySlot is the older object layout. Its stored totals are ignored.
type legacySlot struct {
	Items []LineItem `json:"items"`
}

// EncodeItems serializes the cart's line items for the persistence slot.
// Totals and drawer state are not written.
func EncodeItems(c Cart) ([]byte, error) {
	data, err := json.Marshal(cloneItems(c.Items))
	if err != nil {
		return nil, fmt.Errorf("marshal cart items: %w", err)
	}
	return data, nil
}

// DecodeItems parses a persisted slot and rebuilds the cart from its items,
// recomputing every derived field. Line ids are rederived from the identity
// key and duplicate keys are merged.
func DecodeItems(data []byte) (Cart, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Cart{}, fmt.Errorf("%w: empty payload", ErrCorruptSlot)
	}

	var items []LineItem
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Cart{}, fmt.Errorf("%w: %v", ErrCorruptSlot, err)
		}
	case '{':
		var legacy legacySlot
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return Cart{}, fmt.Errorf("%w: %v", ErrCorruptSlot, err)
		}
		items = legacy.Items
	default:
		return Cart{}, fmt.Errorf("%w: unexpected payload", ErrCorruptSlot)
	}

	merged := make([]LineItem, 0, len(items))
	for i, li := range items {
		if err := validatePersisted(li); err != nil {
			return Cart{}, fmt.Errorf("%w: item %d: %v", ErrCorruptSlot, i, err)
		}
		li.ID = LineID(li.ProductID, li.Size, li.Color)
		if j := indexOf(merged, li.ID); j >= 0 {
			merged[j].Quantity += li.Quantity
			continue
		}
		merged = append(merged, li)
	}

	return Recalculate(Cart{Items: merged}), nil
}

func validatePersisted(li LineItem) error {
	if strings.TrimSpace(li.ProductID) == "" {
		return errors.New("missing product id")
	}
	if li.Quantity < 1 {
		return fmt.Errorf("quantity %d", li.Quantity)
	}
	if li.UnitPrice.IsNegative() {
		return fmt.Errorf("negative price %s", li.UnitPrice)
	}
	return nil
}
