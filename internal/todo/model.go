package todo

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// List is a named to-do list owned by one user.
type List struct {
	ID      int64  `db:"id" json:"id"`
	OwnerID int64  `db:"owner_id" json:"ownerId"`
	Name    string `db:"name" json:"name" validate:"required,max=200"`
	Items   []Item `db:"-" json:"items,omitempty"`
}

func (l List) EntityID() int64      { return l.ID }
func (l List) EntityOwnerID() int64 { return l.OwnerID }

// Item is one entry of a List.
type Item struct {
	ID     int64  `db:"id" json:"id"`
	ListID int64  `db:"list_id" json:"listId"`
	Text   string `db:"text" json:"text"`
	Done   bool   `db:"done" json:"done"`
}

func (i Item) EntityID() int64 { return i.ID }

// ItemRules validates item payloads with fluent rules instead of struct tags.
func ItemRules(ctx context.Context, item *Item) error {
	return validation.ValidateStructWithContext(ctx, item,
		validation.Field(&item.ListID, validation.Required, validation.Min(int64(1))),
		validation.Field(&item.Text, validation.Required, validation.Length(1, 500)),
	)
}
