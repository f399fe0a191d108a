package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the calendar-date format used in every ledger.
const DateLayout = "2006-01-02"

// DeliveryType values are persisted verbatim.
type DeliveryType string

const (
	DeliveryEuroPost     DeliveryType = "ЕвроПочта"
	DeliveryNationalPost DeliveryType = "Белпочта"
	DeliveryUnspecified  DeliveryType = "Не указан"
)

// StatusNew is the status of every freshly created order.
const StatusNew = "Новый"

// Order is one persisted, immutable order record.
type Order struct {
	ID               int          `json:"id"`
	OrderNumber      string       `json:"order_number"`
	CreatedDate      string       `json:"created_date"`
	CustomerName     string       `json:"customer_name"`
	Phone            string       `json:"phone"`
	Address          string       `json:"address"`
	DeliveryType     DeliveryType `json:"delivery_type"`
	Product          string       `json:"product"`
	Amount           string       `json:"amount"`
	Notes            string       `json:"notes"`
	Username         string       `json:"username"`
	Status           string       `json:"status"`
	PriceFromCaption bool         `json:"price_from_caption"`
	TrackingNumber   string       `json:"tracking_number"`
}

// OrderNumberFor renders the display number of an order id.
func OrderNumberFor(id int) string {
	return fmt.Sprintf("ORD%04d", id)
}

// FormatDate truncates t to its calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Product is an entry of the products ledger, keyed by Name.
type Product struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	LastPrice string `json:"last_price"`
	SaleCount int    `json:"sale_count"`
}

// Customer is an entry of the customers ledger, keyed by Phone.
type Customer struct {
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	OrderCount    int    `json:"order_count"`
	TotalSpent    int    `json:"total_spent"`
	LastOrderDate string `json:"last_order_date"`
}

// Stats summarises the ledgers.
type Stats struct {
	TotalOrders     int       `json:"total_orders"`
	TotalRevenue    int       `json:"total_revenue"`
	UniqueCustomers int       `json:"unique_customers"`
	TotalProducts   int       `json:"total_products"`
	TopProducts     []Product `json:"top_products"`
}

var digitsPattern = regexp.MustCompile(`\d+`)

// ParseAmount returns the first run of digits in a free-text amount, or 0.
func ParseAmount(amount string) int {
	m := digitsPattern.FindString(amount)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
