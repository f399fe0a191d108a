package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AnTengye/orderledger/model"
	"github.com/AnTengye/orderledger/pkg/apperr"
	"github.com/AnTengye/orderledger/pkg/logger"
)

const (
	// SearchLimit caps the orders listed for one query.
	SearchLimit = 10
	// StockListLimit caps the products shown in the stock listing.
	StockListLimit = 15
)

const manualEntryExample = "ФИО=Иванов Иван Иванович\n" +
	"Телефон=+375291234567\n" +
	"Адрес=г.Минск, ул.Ленина 1\n" +
	"Товар=Подстаканник Golf 4\n" +
	"Сумма=35 р."

const (
	msgRejected = "❌ Не удалось распознать данные автоматически.\n\n" +
		"📋 Отправь данные вручную в формате:\n" + manualEntryExample
	msgEmptyText      = "❌ Пустое сообщение. Отправь текст переписки."
	msgEmptyImage     = "❌ Пустое изображение. Отправь скриншот переписки."
	msgImageNoAI      = "📸 Распознавание скриншотов не настроено. Скопируй текст переписки и отправь его сообщением."
	msgImageFailed    = "❌ Не удалось распознать скриншот. Отправь текст переписки или используй ручной ввод."
	msgManualEmpty    = "❌ Не найдено ни одного поля заказа.\n\nВведи данные заказа в формате:\n" + manualEntryExample
	msgEmptyQuery     = "❌ Введи ФИО, номер заказа, телефон или товар для поиска."
	msgNoOrdersLedger = "📊 База заказов пуста"
	msgNotFound       = "❌ Заказы не найдены"
	msgNoProducts     = "📦 База товаров пуста"
	msgExportEmpty    = "📊 Файл заказов пуст"
	msgNotSaved       = "⚠️ Не удалось сохранить заказ в базу"
	msgReadFailed     = "❌ Не удалось прочитать базу. Попробуй еще раз."
)

// Response is the outcome of one pipeline operation. Err carries an
// *apperr.AppError when the operation failed; Text is always set.
type Response struct {
	Text     string          `json:"text"`
	Order    *model.Order    `json:"order,omitempty"`
	Accepted bool            `json:"accepted"`
	Saved    bool            `json:"saved"`
	Orders   []model.Order   `json:"orders,omitempty"`
	Total    int             `json:"total,omitempty"`
	Products []model.Product `json:"products,omitempty"`
	Stats    *model.Stats    `json:"stats,omitempty"`
	File     []byte          `json:"-"`
	Err      error           `json:"-"`
}

func failure(text string, err error) *Response {
	return &Response{Text: text, Err: err}
}

// Pipeline runs submissions from extraction to persistence and answers the
// read-side queries over the ledgers.
type Pipeline struct {
	store     *LedgerStore
	assembler *Assembler
	corrector *Corrector
	ai        AIExtractor

	// orderMu keeps id allocation and the append in one critical section.
	orderMu sync.Mutex
}

// NewPipeline initializes the ledgers and seeds the id counter from the
// orders ledger. ai may be nil.
func NewPipeline(store *LedgerStore, ai AIExtractor, now func() time.Time) (*Pipeline, error) {
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	lastID, err := store.LastOrderID()
	if err != nil {
		return nil, err
	}
	slog.Info("pipeline ready", "last_order_id", lastID, "ai", ai != nil)

	return &Pipeline{
		store:     store,
		assembler: NewAssembler(lastID, now),
		corrector: NewCorrector(nil),
		ai:        ai,
	}, nil
}

func (p *Pipeline) Store() *LedgerStore { return p.store }

// SubmitText extracts an order from pasted chat text. The AI path is tried
// first; when it fails or does not pass the gate the heuristic extractor
// gets a turn.
func (p *Pipeline) SubmitText(ctx context.Context, text string) *Response {
	text = strings.TrimSpace(text)
	if text == "" {
		return failure(msgEmptyText, apperr.InvalidErr(msgEmptyText))
	}

	if p.ai != nil {
		bag, err := p.ai.ExtractText(ctx, text)
		switch {
		case err != nil:
			logger.Warn(ctx, "AI text extraction failed, falling back to heuristics", "error", err)
		case Validate(bag):
			return p.accept(ctx, bag, "")
		default:
			logger.Info(ctx, "AI extraction did not pass the gate", "score", EvidenceScore(bag))
		}
	}

	bag := ExtractFields(text)
	if !Validate(bag) {
		logger.Info(ctx, "submission rejected", "score", EvidenceScore(bag))
		return failure(msgRejected, apperr.ValidationErr(msgRejected))
	}
	return p.accept(ctx, bag, "")
}

// SubmitImage extracts an order from a screenshot. The caption may carry a
// price and delivery remarks.
func (p *Pipeline) SubmitImage(ctx context.Context, image []byte, mimeType, caption string) *Response {
	if len(image) == 0 {
		return failure(msgEmptyImage, apperr.InvalidErr(msgEmptyImage))
	}
	if p.ai == nil {
		return failure(msgImageNoAI, apperr.ExtractionErr(msgImageNoAI, errors.New("no AI extractor configured")))
	}

	bag, err := p.ai.ExtractImage(ctx, image, mimeType)
	if err != nil {
		logger.Warn(ctx, "AI image extraction failed", "error", err, "size", len(image))
		return failure(msgImageFailed, apperr.ExtractionErr(msgImageFailed, err))
	}
	return p.SubmitImageExtraction(ctx, bag, caption)
}

// SubmitImageExtraction continues an image submission from an already
// extracted bag.
func (p *Pipeline) SubmitImageExtraction(ctx context.Context, bag model.FieldBag, caption string) *Response {
	if !Validate(bag) {
		logger.Info(ctx, "image submission rejected", "score", EvidenceScore(bag))
		return failure(msgRejected, apperr.ValidationErr(msgRejected))
	}
	return p.accept(ctx, bag, caption)
}

// SubmitManual records an order typed by the operator as Key=Value lines.
// Manual entries skip the gate and the name correction.
func (p *Pipeline) SubmitManual(ctx context.Context, text string) *Response {
	entry := ParseManualEntry(text)
	if entry.Empty() {
		return failure(msgManualEmpty, apperr.InvalidErr(msgManualEmpty))
	}

	d := Derived{
		DeliveryType: DetectDeliveryType(entry.Bag.Address.String(), ""),
		Amount:       entry.Bag.Amount.String(),
		Notes:        entry.Notes,
	}
	return p.persist(ctx, entry.Bag, d)
}

func (p *Pipeline) accept(ctx context.Context, bag model.FieldBag, caption string) *Response {
	corrected := p.corrector.Correct(bag)
	return p.persist(ctx, corrected, Resolve(corrected, caption))
}

// reseed realigns the id counter with the orders ledger after a failed
// append. If the ledger cannot be read the counter stays at failedID, so the
// id is never handed out twice. Callers hold orderMu.
func (p *Pipeline) reseed(ctx context.Context, failedID int) {
	last, err := p.store.LastOrderID()
	if err != nil {
		logger.Warn(ctx, "order id not reclaimed after failed save", "id", failedID, "error", err)
		return
	}
	p.assembler.Reseed(last)
}

func (p *Pipeline) persist(ctx context.Context, bag model.FieldBag, d Derived) *Response {
	p.orderMu.Lock()
	order := p.assembler.Assemble(bag, d)
	appendErr := p.store.AppendOrder(order)
	if appendErr != nil {
		p.reseed(ctx, order.ID)
	}
	p.orderMu.Unlock()

	logger.Info(ctx, "order accepted", "order", order.OrderNumber, "saved", appendErr == nil)

	resp := &Response{Order: &order, Accepted: true, Saved: appendErr == nil}
	if appendErr != nil {
		resp.Text = FormatOrder(order) + "\n\n" + msgNotSaved
		resp.Err = apperr.PersistenceErr(msgNotSaved, appendErr)
		return resp
	}

	if err := p.store.UpsertProduct(order.Product, order.Amount); err != nil {
		logger.Warn(ctx, "product ledger not updated", "order", order.OrderNumber, "error", err)
	}
	if err := p.store.UpsertCustomer(order); err != nil {
		logger.Warn(ctx, "customer ledger not updated", "order", order.OrderNumber, "error", err)
	}

	resp.Text = FormatOrder(order) + "\n\n💾 Сохранено в базу"
	return resp
}

// Search matches the query against name, phone, order number and product.
func (p *Pipeline) Search(ctx context.Context, query string) *Response {
	query = strings.TrimSpace(query)
	if query == "" {
		return failure(msgEmptyQuery, apperr.InvalidErr(msgEmptyQuery))
	}

	orders, err := p.store.Orders()
	if err != nil {
		return failure(msgReadFailed, apperr.PersistenceErr(msgReadFailed, err))
	}
	if len(orders) == 0 {
		return failure(msgNoOrdersLedger, apperr.NotFoundErr(msgNoOrdersLedger))
	}

	matches := MatchOrders(orders, query)
	if len(matches) == 0 {
		return failure(msgNotFound, apperr.NotFoundErr(msgNotFound))
	}

	shown := matches
	if len(shown) > SearchLimit {
		shown = shown[:SearchLimit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 НАЙДЕНО ЗАКАЗОВ: %d\n\n", len(matches))
	for _, o := range shown {
		fmt.Fprintf(&sb, "📦 #%s | %s\n👤 %s | 📞 %s\n📦 %s | 💰 %s\n📍 %s\n────────────────────\n",
			o.OrderNumber, o.CreatedDate, o.CustomerName, o.Phone, o.Product, o.Amount, o.Address)
	}

	return &Response{Text: sb.String(), Orders: shown, Total: len(matches)}
}

// MatchOrders filters orders the way operators search: case-insensitive on
// name and product, substring on phone and order number.
func MatchOrders(orders []model.Order, query string) []model.Order {
	lower := strings.ToLower(query)
	upper := strings.ToUpper(query)

	var matches []model.Order
	for _, o := range orders {
		if strings.Contains(strings.ToLower(o.CustomerName), lower) ||
			strings.Contains(o.Phone, query) ||
			strings.Contains(o.OrderNumber, upper) ||
			strings.Contains(strings.ToLower(o.Product), lower) {
			matches = append(matches, o)
		}
	}
	return matches
}

// Stock lists the products ledger.
func (p *Pipeline) Stock(ctx context.Context) *Response {
	products, err := p.store.Products()
	if err != nil {
		return failure(msgReadFailed, apperr.PersistenceErr(msgReadFailed, err))
	}
	if len(products) == 0 {
		return &Response{Text: msgNoProducts}
	}

	shown := products
	if len(shown) > StockListLimit {
		shown = shown[:StockListLimit]
	}

	var sb strings.Builder
	sb.WriteString("📦 ТОВАРЫ В НАЛИЧИИ:\n\n")
	for _, pr := range shown {
		fmt.Fprintf(&sb, "• %s: %d шт. (%d продаж)\n", pr.Name, pr.Quantity, pr.SaleCount)
	}

	return &Response{Text: sb.String(), Products: products, Total: len(products)}
}

func (p *Pipeline) Stats(ctx context.Context) *Response {
	stats := ComputeStats(p.store)
	return &Response{Text: FormatStats(stats), Stats: &stats}
}

// Export returns the raw orders ledger.
func (p *Pipeline) Export(ctx context.Context) *Response {
	data, err := p.store.ExportOrders()
	if errors.Is(err, ErrNoOrders) {
		return failure(msgExportEmpty, apperr.NotFoundErr(msgExportEmpty))
	}
	if err != nil {
		return failure(msgReadFailed, apperr.PersistenceErr(msgReadFailed, err))
	}
	return &Response{Text: "✅ Файл выгружен", File: data}
}

// FormatOrder renders the confirmation shown after an order is created.
func FormatOrder(o model.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ ЗАКАЗ #%s СОЗДАН\n\n", o.OrderNumber)
	fmt.Fprintf(&sb, "👤 ФИО: %s\n", o.CustomerName)
	fmt.Fprintf(&sb, "📞 Телефон: %s\n", o.Phone)
	fmt.Fprintf(&sb, "📍 Адрес: %s\n", o.Address)
	fmt.Fprintf(&sb, "🚚 Доставка: %s\n", o.DeliveryType)
	fmt.Fprintf(&sb, "📦 Товар: %s\n", o.Product)
	fmt.Fprintf(&sb, "💰 Сумма: %s", o.Amount)
	if o.PriceFromCaption {
		sb.WriteString(" (из подписи)")
	}
	fmt.Fprintf(&sb, "\n👥 Никнейм: %s", o.Username)
	if o.Notes != "" {
		fmt.Fprintf(&sb, "\n📝 Примечание: %s", o.Notes)
	}
	return sb.String()
}

func FormatStats(s model.Stats) string {
	top := "Нет данных"
	if len(s.TopProducts) > 0 {
		lines := make([]string, len(s.TopProducts))
		for i, pr := range s.TopProducts {
			lines[i] = fmt.Sprintf("• %s: %d продаж", pr.Name, pr.SaleCount)
		}
		top = strings.Join(lines, "\n")
	}

	return fmt.Sprintf("📈 СТАТИСТИКА ПРОДАЖ:\n\n"+
		"📊 Всего заказов: %d\n"+
		"💰 Общая сумма: %d р.\n"+
		"👥 Уникальных клиентов: %d\n"+
		"📦 Товаров в базе: %d\n\n"+
		"🔥 Популярные товары:\n%s",
		s.TotalOrders, s.TotalRevenue, s.UniqueCustomers, s.TotalProducts, top)
}
