// Package events defines the domain events broadcast to connected observers
// and the fire-and-forget dispatcher that delivers them.
package events

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-fulfillment/internal/domain/product"
	"github.com/xenking/order-fulfillment/internal/domain/user"
)

// Event is a domain event that can be framed for the notification channel.
type Event interface {
	EventName() string
	encodeData(e *jx.Encoder)
}

// NewOrder is broadcast after a purchase commits.
type NewOrder struct {
	OrderID    string
	User       user.Projection
	Product    product.Projection
	Quantity   int
	TotalPrice decimal.Decimal
	Timestamp  time.Time
}

func (NewOrder) EventName() string { return "new_order" }

func (ev NewOrder) encodeData(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(ev.OrderID)
	e.FieldStart("user")
	encodeUser(e, ev.User)
	e.FieldStart("product")
	encodeProduct(e, ev.Product)
	e.FieldStart("quantity")
	e.Int(ev.Quantity)
	e.FieldStart("totalPrice")
	e.Float64(ev.TotalPrice.InexactFloat64())
	e.FieldStart("timestamp")
	e.Str(ev.Timestamp.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

// OrderStatusUpdated is broadcast after an order changes status.
type OrderStatusUpdated struct {
	OrderID   string
	NewStatus string
	User      user.Projection
	Product   product.Projection
}

func (OrderStatusUpdated) EventName() string { return "order_status_updated" }

func (ev OrderStatusUpdated) encodeData(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(ev.OrderID)
	e.FieldStart("newStatus")
	e.Str(ev.NewStatus)
	e.FieldStart("user")
	encodeUser(e, ev.User)
	e.FieldStart("product")
	encodeProduct(e, ev.Product)
	e.ObjEnd()
}

func encodeUser(e *jx.Encoder, u user.Projection) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(u.ID)
	e.FieldStart("name")
	e.Str(u.Name)
	e.FieldStart("email")
	e.Str(u.Email)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p product.Projection) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Float64(p.Price.InexactFloat64())
	e.ObjEnd()
}

// Encode frames an event as `{"event": <name>, "data": {...}}`, the wire
// format consumed by observers on the event stream.
func Encode(ev Event) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("event")
	e.Str(ev.EventName())
	e.FieldStart("data")
	ev.encodeData(&e)
	e.ObjEnd()
	return e.Bytes()
}
