package order

type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemSent      ItemStatus = "SENT"
	ItemPreparing ItemStatus = "PREPARING"
	ItemReady     ItemStatus = "READY"
	ItemServed    ItemStatus = "SERVED"
	ItemVoided    ItemStatus = "VOIDED"
)

type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusSent      OrderStatus = "SENT"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusServed    OrderStatus = "SERVED"
	StatusClosed    OrderStatus = "CLOSED"
	StatusVoided    OrderStatus = "VOIDED"
)

// itemProgress orders the non-terminal item statuses by kitchen progress.
// Voided items carry no progress; they are excluded from derivation.
var itemProgress = map[ItemStatus]int{
	ItemPending:   0,
	ItemSent:      1,
	ItemPreparing: 2,
	ItemReady:     3,
	ItemServed:    4,
}

var progressStatus = map[int]OrderStatus{
	0: StatusNew,
	1: StatusSent,
	2: StatusPreparing,
	3: StatusReady,
	4: StatusServed,
}

// Preparation has started for an item once a station accepted it.
func (s ItemStatus) PreparationStarted() bool {
	switch s {
	case ItemPreparing, ItemReady, ItemServed:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusClosed || s == StatusVoided
}
