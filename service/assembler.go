package service

import (
	"sync"
	"time"

	"github.com/AnTengye/orderledger/model"
)

// Assembler turns a corrected bag and its derived fields into an order with
// the next sequential id. The counter is seeded from the orders ledger.
type Assembler struct {
	mu     sync.Mutex
	lastID int
	now    func() time.Time
}

func NewAssembler(lastID int, now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{lastID: lastID, now: now}
}

// LastID returns the most recently allocated id.
func (a *Assembler) LastID() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastID
}

// Assemble allocates an id and merges bag and derived into an order.
// Missing textual fields become "".
func (a *Assembler) Assemble(bag model.FieldBag, d Derived) model.Order {
	a.mu.Lock()
	a.lastID++
	id := a.lastID
	a.mu.Unlock()

	deliveryType := d.DeliveryType
	if deliveryType == "" {
		deliveryType = model.DeliveryUnspecified
	}

	return model.Order{
		ID:               id,
		OrderNumber:      model.OrderNumberFor(id),
		CreatedDate:      model.FormatDate(a.now()),
		CustomerName:     bag.Name.String(),
		Phone:            bag.Phone.String(),
		Address:          bag.Address.String(),
		DeliveryType:     deliveryType,
		Product:          bag.Product.String(),
		Amount:           d.Amount,
		Notes:            d.Notes,
		Username:         bag.Username.String(),
		Status:           model.StatusNew,
		PriceFromCaption: d.PriceFromCaption,
	}
}

// Reseed sets the counter to last, the highest id found in the orders
// ledger. Callers use it after a failed append, which may or may not have
// left the row on disk.
func (a *Assembler) Reseed(last int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastID = last
}
