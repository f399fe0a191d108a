package service

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/AnTengye/orderledger/config"
	"github.com/AnTengye/orderledger/model"
	"github.com/jszwec/csvutil"
)

// utf8BOM prefixes every ledger file so spreadsheet tools pick the right
// encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrNoOrders is returned by ExportOrders when there is nothing to export.
var ErrNoOrders = errors.New("orders ledger is empty")

// syncFile flushes a ledger file to stable storage.
var syncFile = (*os.File).Sync

// ErrUnreadableLedger is returned instead of rewriting a table that holds
// records the CSV reader could not split.
var ErrUnreadableLedger = errors.New("ledger has unreadable records")

const (
	flagYes = "Да"
	flagNo  = "Нет"
)

type orderRow struct {
	ID               string `csv:"ID"`
	OrderNumber      string `csv:"OrderNumber"`
	OrderDate        string `csv:"OrderDate"`
	FullName         string `csv:"FullName"`
	Phone            string `csv:"Phone"`
	Address          string `csv:"Address"`
	DeliveryType     string `csv:"DeliveryType"`
	Product          string `csv:"Product"`
	Amount           string `csv:"Amount"`
	Notes            string `csv:"Notes"`
	Username         string `csv:"Username"`
	Status           string `csv:"Status"`
	PriceFromCaption string `csv:"PriceFromCaption"`
	TrackingNumber   string `csv:"TrackingNumber"`
}

type productRow struct {
	ID        string `csv:"ID"`
	Name      string `csv:"Name"`
	Quantity  string `csv:"Quantity"`
	LastPrice string `csv:"LastPrice"`
	SaleCount string `csv:"SaleCount"`
}

type customerRow struct {
	Phone         string `csv:"Phone"`
	Name          string `csv:"Name"`
	OrderCount    string `csv:"OrderCount"`
	TotalSpent    string `csv:"TotalSpent"`
	LastOrderDate string `csv:"LastOrderDate"`
}

// LedgerStore keeps the orders, products and customers tables as flat CSV
// files. Every operation re-reads the file; products and customers are
// rewritten whole on each update. Each table has its own lock.
type LedgerStore struct {
	ordersPath    string
	productsPath  string
	customersPath string

	ordersMu    sync.RWMutex
	productsMu  sync.RWMutex
	customersMu sync.RWMutex
}

func NewLedgerStore(cfg *config.LedgerConfig) *LedgerStore {
	return &LedgerStore{
		ordersPath:    cfg.OrdersPath(),
		productsPath:  cfg.ProductsPath(),
		customersPath: cfg.CustomersPath(),
	}
}

// OrdersPath returns the orders file path.
func (s *LedgerStore) OrdersPath() string { return s.ordersPath }

// LedgerFile is a point-in-time copy of one ledger file.
type LedgerFile struct {
	Name string
	Data []byte
}

// Snapshot copies every existing ledger file, each under its own read lock.
func (s *LedgerStore) Snapshot() ([]LedgerFile, error) {
	tables := []struct {
		path string
		mu   *sync.RWMutex
	}{
		{s.ordersPath, &s.ordersMu},
		{s.productsPath, &s.productsMu},
		{s.customersPath, &s.customersMu},
	}

	var files []LedgerFile
	for _, t := range tables {
		t.mu.RLock()
		data, err := os.ReadFile(t.path)
		t.mu.RUnlock()
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			slog.Error("failed to snapshot ledger", "path", t.path, "error", err)
			return nil, fmt.Errorf("failed to read %s: %w", t.path, err)
		}
		files = append(files, LedgerFile{Name: filepath.Base(t.path), Data: data})
	}
	return files, nil
}

// Initialize creates any missing ledger file with its header row.
func (s *LedgerStore) Initialize() error {
	if err := initTable[orderRow](s.ordersPath, &s.ordersMu); err != nil {
		return err
	}
	if err := initTable[productRow](s.productsPath, &s.productsMu); err != nil {
		return err
	}
	return initTable[customerRow](s.customersPath, &s.customersMu)
}

func initTable[T any](path string, mu *sync.RWMutex) error {
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		slog.Error("failed to initialize ledger", "path", path, "error", err)
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := writeTable[T](path, nil); err != nil {
		slog.Error("failed to initialize ledger", "path", path, "error", err)
		return err
	}
	slog.Info("ledger created", "path", path)
	return nil
}

// LastOrderID scans the orders table for the highest numeric id. Rows with
// a non-numeric id are skipped; a missing or empty table yields 0.
func (s *LedgerStore) LastOrderID() (int, error) {
	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()

	rows, err := readTable[orderRow](s.ordersPath)
	if err != nil {
		slog.Error("failed to read orders ledger", "path", s.ordersPath, "error", err)
		return 0, err
	}

	last := 0
	for _, r := range rows {
		if id, ok := parseCount(r.ID); ok && id > last {
			last = id
		}
	}
	return last, nil
}

// AppendOrder appends one row and syncs the file. The header is written
// only when the file did not exist or was empty.
func (s *LedgerStore) AppendOrder(order model.Order) error {
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()

	if err := appendRow(s.ordersPath, orderToRow(order)); err != nil {
		slog.Error("failed to append order", "path", s.ordersPath, "order", order.OrderNumber, "error", err)
		return err
	}
	slog.Info("order saved", "order", order.OrderNumber, "id", order.ID)
	return nil
}

// Orders returns every parseable order row in file order.
func (s *LedgerStore) Orders() ([]model.Order, error) {
	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()

	rows, err := readTable[orderRow](s.ordersPath)
	if err != nil {
		slog.Error("failed to read orders ledger", "path", s.ordersPath, "error", err)
		return nil, err
	}
	orders := make([]model.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, rowToOrder(r))
	}
	return orders, nil
}

// ExportOrders returns the raw orders file.
func (s *LedgerStore) ExportOrders() ([]byte, error) {
	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()

	data, err := os.ReadFile(s.ordersPath)
	if os.IsNotExist(err) {
		return nil, ErrNoOrders
	}
	if err != nil {
		slog.Error("failed to read orders ledger", "path", s.ordersPath, "error", err)
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return data, nil
}

// UpsertProduct records a sale of name at price. An unseen product gets the
// next id with quantity 0 and one sale; a known one loses one unit of stock
// (never below zero), gains a sale and takes the new price. The whole table
// is rewritten. Empty or absent names are ignored.
func (s *LedgerStore) UpsertProduct(name, price string) error {
	if !model.FieldOf(name).IsPresent() {
		return nil
	}

	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	rows, err := readForRewrite[productRow](s.productsPath)
	if err != nil {
		slog.Error("failed to read products ledger", "path", s.productsPath, "error", err)
		return err
	}

	found := false
	for i := range rows {
		row := &rows[i].Value
		if !rows[i].decoded() || row.Name != name {
			continue
		}
		qty, _ := parseCount(row.Quantity)
		if qty > 0 {
			qty--
		}
		sales, _ := parseCount(row.SaleCount)
		row.Quantity = strconv.Itoa(qty)
		row.SaleCount = strconv.Itoa(sales + 1)
		row.LastPrice = price
		found = true
		break
	}

	if !found {
		// Ids of malformed rows still count so a new product never takes one.
		maxID := 0
		for _, r := range rows {
			raw := r.Value.ID
			if !r.decoded() && len(r.Raw) > 0 {
				raw = r.Raw[0]
			}
			if id, ok := parseCount(raw); ok && id > maxID {
				maxID = id
			}
		}
		rows = append(rows, tableRow[productRow]{Value: productRow{
			ID:        strconv.Itoa(maxID + 1),
			Name:      name,
			Quantity:  "0",
			LastPrice: price,
			SaleCount: "1",
		}})
	}

	if err := writeTable(s.productsPath, rows); err != nil {
		slog.Error("failed to rewrite products ledger", "path", s.productsPath, "error", err)
		return err
	}
	slog.Info("products ledger updated", "product", name, "new", !found)
	return nil
}

// Products returns the products table in ledger order.
func (s *LedgerStore) Products() ([]model.Product, error) {
	s.productsMu.RLock()
	defer s.productsMu.RUnlock()

	rows, err := readTable[productRow](s.productsPath)
	if err != nil {
		slog.Error("failed to read products ledger", "path", s.productsPath, "error", err)
		return nil, err
	}
	products := make([]model.Product, 0, len(rows))
	for _, r := range rows {
		id, _ := parseCount(r.ID)
		qty, _ := parseCount(r.Quantity)
		sales, _ := parseCount(r.SaleCount)
		products = append(products, model.Product{
			ID:        id,
			Name:      r.Name,
			Quantity:  qty,
			LastPrice: r.LastPrice,
			SaleCount: sales,
		})
	}
	return products, nil
}

// UpsertCustomer folds order into the customer keyed by its phone. The name
// is kept from the first order. Empty or absent phones are ignored.
func (s *LedgerStore) UpsertCustomer(order model.Order) error {
	if !model.FieldOf(order.Phone).IsPresent() {
		return nil
	}

	s.customersMu.Lock()
	defer s.customersMu.Unlock()

	rows, err := readForRewrite[customerRow](s.customersPath)
	if err != nil {
		slog.Error("failed to read customers ledger", "path", s.customersPath, "error", err)
		return err
	}

	amount := model.ParseAmount(order.Amount)
	found := false
	for i := range rows {
		row := &rows[i].Value
		if !rows[i].decoded() || row.Phone != order.Phone {
			continue
		}
		count, _ := parseCount(row.OrderCount)
		spent, _ := parseCount(row.TotalSpent)
		row.OrderCount = strconv.Itoa(count + 1)
		row.TotalSpent = strconv.Itoa(spent + amount)
		row.LastOrderDate = order.CreatedDate
		found = true
		break
	}

	if !found {
		rows = append(rows, tableRow[customerRow]{Value: customerRow{
			Phone:         order.Phone,
			Name:          order.CustomerName,
			OrderCount:    "1",
			TotalSpent:    strconv.Itoa(amount),
			LastOrderDate: order.CreatedDate,
		}})
	}

	if err := writeTable(s.customersPath, rows); err != nil {
		slog.Error("failed to rewrite customers ledger", "path", s.customersPath, "error", err)
		return err
	}
	slog.Info("customers ledger updated", "phone", order.Phone, "new", !found)
	return nil
}

// Customers returns the customers table in ledger order.
func (s *LedgerStore) Customers() ([]model.Customer, error) {
	s.customersMu.RLock()
	defer s.customersMu.RUnlock()

	rows, err := readTable[customerRow](s.customersPath)
	if err != nil {
		slog.Error("failed to read customers ledger", "path", s.customersPath, "error", err)
		return nil, err
	}
	customers := make([]model.Customer, 0, len(rows))
	for _, r := range rows {
		count, _ := parseCount(r.OrderCount)
		spent, _ := parseCount(r.TotalSpent)
		customers = append(customers, model.Customer{
			Phone:         r.Phone,
			Name:          r.Name,
			OrderCount:    count,
			TotalSpent:    spent,
			LastOrderDate: r.LastOrderDate,
		})
	}
	return customers, nil
}

func orderToRow(o model.Order) orderRow {
	flag := flagNo
	if o.PriceFromCaption {
		flag = flagYes
	}
	return orderRow{
		ID:               strconv.Itoa(o.ID),
		OrderNumber:      o.OrderNumber,
		OrderDate:        o.CreatedDate,
		FullName:         o.CustomerName,
		Phone:            o.Phone,
		Address:          o.Address,
		DeliveryType:     string(o.DeliveryType),
		Product:          o.Product,
		Amount:           o.Amount,
		Notes:            o.Notes,
		Username:         o.Username,
		Status:           o.Status,
		PriceFromCaption: flag,
		TrackingNumber:   o.TrackingNumber,
	}
}

func rowToOrder(r orderRow) model.Order {
	id, _ := parseCount(r.ID)
	return model.Order{
		ID:               id,
		OrderNumber:      r.OrderNumber,
		CreatedDate:      r.OrderDate,
		CustomerName:     r.FullName,
		Phone:            r.Phone,
		Address:          r.Address,
		DeliveryType:     model.DeliveryType(r.DeliveryType),
		Product:          r.Product,
		Amount:           r.Amount,
		Notes:            r.Notes,
		Username:         r.Username,
		Status:           r.Status,
		PriceFromCaption: r.PriceFromCaption == flagYes || r.PriceFromCaption == "true",
		TrackingNumber:   r.TrackingNumber,
	}
}

// parseCount accepts only plain non-negative decimal integers.
func parseCount(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// tableRow is one data record of a ledger. A record that does not fit the
// header keeps its raw fields in Raw so a rewrite can put it back as is.
type tableRow[T any] struct {
	Value T
	Raw   []string
}

func (r tableRow[T]) decoded() bool { return r.Raw == nil }

// readRecords reads every data record of path. unreadable counts records the
// CSV reader could not split into fields; those cannot be written back.
func readRecords[T any](path string) (rows []tableRow[T], unreadable int, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	dec, err := csvutil.NewDecoder(reader)
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	for n := 1; ; n++ {
		var row T
		err := dec.Decode(&row)
		if err == io.EOF {
			break
		}
		if err == nil {
			rows = append(rows, tableRow[T]{Value: row})
			continue
		}

		record := dec.Record()
		if len(record) == 0 {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
			}
			slog.Warn("unreadable ledger record", "path", path, "row", n, "error", err)
			unreadable++
			continue
		}
		slog.Warn("malformed ledger row", "path", path, "row", n, "error", err)
		rows = append(rows, tableRow[T]{Raw: append([]string(nil), record...)})
	}
	return rows, unreadable, nil
}

// readTable decodes every well-formed row of a ledger file. A missing or
// empty file is an empty table; rows that do not fit the header are skipped.
func readTable[T any](path string) ([]T, error) {
	rows, _, err := readRecords[T](path)
	if err != nil {
		return nil, err
	}
	values := make([]T, 0, len(rows))
	for _, r := range rows {
		if r.decoded() {
			values = append(values, r.Value)
		}
	}
	return values, nil
}

// readForRewrite loads a table that is about to be rewritten whole. It
// refuses when some record could not be read, since the rewrite would drop
// it.
func readForRewrite[T any](path string) ([]tableRow[T], error) {
	rows, unreadable, err := readRecords[T](path)
	if err != nil {
		return nil, err
	}
	if unreadable > 0 {
		return nil, fmt.Errorf("%w: %s has %d unreadable records", ErrUnreadableLedger, path, unreadable)
	}
	return rows, nil
}

// writeTable replaces path with header plus rows. Raw rows are written back
// field for field. The new content goes to a temporary file in the same
// directory which is synced and renamed over the old one.
func writeTable[T any](path string, rows []tableRow[T]) error {
	var zero T
	cols, err := csvutil.Header(zero, "csv")
	if err != nil {
		return fmt.Errorf("failed to build header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(utf8BOM); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	w := csv.NewWriter(tmp)
	w.UseCRLF = true
	if err := w.Write(cols); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	for _, r := range rows {
		if r.decoded() {
			err = enc.Encode(r.Value)
		} else {
			err = w.Write(r.Raw)
		}
		if err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode rows: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	if err := syncFile(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// appendRow appends one order row, writing BOM and header first when the
// file is new or empty.
func appendRow(path string, row orderRow) error {
	fresh := true
	if info, err := os.Stat(path); err == nil {
		fresh = info.Size() == 0
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true
	if fresh {
		cols, err := csvutil.Header(orderRow{}, "csv")
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to build header: %w", err)
		}
		if _, err := f.Write(utf8BOM); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := w.Write(cols); err != nil {
			f.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	if err := enc.Encode(row); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode order: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := syncFile(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}
