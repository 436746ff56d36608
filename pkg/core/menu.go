package core

import (
	"context"
	"encoding/json"
)

// MenuEntry is one option handed to the interaction menu widget.
// Action runs when the widget reports the entry as selected.
type MenuEntry struct {
	ID     string
	Label  string
	Action func(ctx context.Context) error
}

// MarshalJSON encodes the entry as the [id, label] pair the widget expects.
func (e MenuEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.ID, e.Label})
}
