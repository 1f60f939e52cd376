package cache

import (
	"context"
	"errors"
	"fmt"
)

// Slot is the durable key-value slot a cart is persisted to. It stores the
// serialized line items verbatim; decoding is the store's concern.
type Slot interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, payload []byte) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrSlotEmpty = errors.New("no saved cart")

// Namespace prefixes every slot key.
const Namespace = "cart"

func slotKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", Namespace, sessionID)
}
