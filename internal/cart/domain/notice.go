package domain

import "fmt"

type NoticeKind string

const (
	NoticeAdded   NoticeKind = "added"
	NoticeRemoved NoticeKind = "removed"
	NoticeCleared NoticeKind = "cleared"
)

// Notice is a transient, dismissible confirmation shown near the control that caused it.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	LineID  string     `json:"line_id,omitempty"`
}

// NoticeFor derives the notice for a transition from prev to next, if any.
func NoticeFor(prev, next Cart, in Intent) *Notice {
	switch in := in.(type) {
	case AddIntent:
		id := LineID(in.Product.ID, in.Size, in.Color)
		return &Notice{Kind: NoticeAdded, Message: fmt.Sprintf("%s added to cart", in.Product.Name), LineID: id}
	case RemoveIntent:
		return removedNotice(prev, next, in.LineID)
	case SetQuantityIntent:
		if in.Quantity <= 0 {
			return removedNotice(prev, next, in.LineID)
		}
	case ClearIntent:
		return &Notice{Kind: NoticeCleared, Message: "Cart cleared"}
	}
	return nil
}

func removedNotice(prev, next Cart, lineID string) *Notice {
	li, ok := prev.Line(lineID)
	if !ok {
		return nil
	}
	if _, still := next.Line(lineID); still {
		return nil
	}
	return &Notice{Kind: NoticeRemoved, Message: fmt.Sprintf("%s removed from cart", li.Name), LineID: lineID}
}
