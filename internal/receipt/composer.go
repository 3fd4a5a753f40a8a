// internal/receipt/composer.go
package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"printer-bridge/internal/escpos"
	"printer-bridge/internal/model"
)

const (
	defaultWidth = 32 // characters per line on 2-inch (58mm) paper

	timeLayout = "15:04"
	dateLayout = "02/01/2006"
)

// Composer turns order data into flat ESC/POS byte streams. Composition is
// deterministic and side-effect free: the print instant is an explicit
// parameter, so the same order and instant always yield identical bytes.
type Composer struct {
	width      int
	headerName string
	footer     []string
}

// Options customize the fixed parts of the layouts. Zero values fall back
// to defaults suitable for a 58mm printer.
type Options struct {
	Width      int
	HeaderName string
	Footer     []string
}

// NewComposer creates a composer for the configured paper width and store
// identity lines.
func NewComposer(opts Options) *Composer {
	c := &Composer{
		width:      opts.Width,
		headerName: opts.HeaderName,
		footer:     opts.Footer,
	}
	if c.width <= 0 {
		c.width = defaultWidth
	}
	if c.headerName == "" {
		c.headerName = "PEDIDO"
	}
	if len(c.footer) == 0 {
		c.footer = []string{"Obrigado pela preferência!", "Volte sempre!"}
	}
	return c
}

// ComposeCustomerReceipt builds the customer-facing receipt. Both compose
// methods take the print instant; this layout has no computed times and
// stamps the order's own creation time, so now goes unused here.
func (c *Composer) ComposeCustomerReceipt(o *model.Order, now time.Time) []byte {
	b := newBuilder(c.width)

	b.op(escpos.OpInitialize)

	// Header
	b.op(escpos.OpAlignCenter, escpos.OpSizeDouble)
	b.line(c.headerName)
	b.op(escpos.OpSizeNormal)
	b.line("Resumo do Pedido")
	b.op(escpos.OpAlignLeft)
	b.separator()

	// Order identification
	b.line("Pedido: " + orderRef(o.ID))
	b.line("Data: " + o.CreatedAt.Format(dateLayout+" "+timeLayout))
	b.line("Cliente: " + fallback(o.CustomerName, "Cliente"))
	b.line("Telefone: " + fallback(o.CustomerPhone, "-"))
	if o.HasDeliveryAddress() {
		b.line("Endereço: " + o.Address)
	}
	b.separator()

	// Items
	b.bold(func() { b.line("ITENS") })
	for _, item := range o.Items {
		b.line(fmt.Sprintf("%dx %s", item.Quantity, fallback(item.Name, "Item")))
		b.line("  Unit: " + money(item.UnitPrice))
		b.line("  Subtotal: " + money(item.LineTotal()))
		b.op(escpos.OpLineFeed)
	}
	b.separator()

	// Totals
	b.line("Subtotal: " + money(o.Subtotal))
	b.line("Taxa de entrega: " + money(o.DeliveryFee))
	b.bold(func() { b.line("TOTAL: " + money(o.Total)) })
	b.separator()

	// Payment
	b.line("Pagamento: " + fallback(o.PaymentMethod, "-"))
	if o.ChangeFor.IsPositive() {
		b.line("Troco/Change for: " + o.ChangeFor.StringFixed(2))
	}
	b.separator()

	// Footer
	b.op(escpos.OpAlignCenter)
	for _, line := range c.footer {
		b.line(line)
	}
	b.op(escpos.OpAlignLeft)

	b.feed(3)
	b.op(escpos.OpCut)

	return b.bytes()
}

// ComposeKitchenTicket builds the preparation-facing ticket. The layout is
// intentionally verbose: kitchen staff scan tickets under time pressure, so
// redundant emphasis and the fixed checklist are part of the contract.
func (c *Composer) ComposeKitchenTicket(o *model.Order, now time.Time) []byte {
	b := newBuilder(c.width)

	b.op(escpos.OpInitialize)

	// Banner
	b.op(escpos.OpAlignCenter, escpos.OpSizeDouble, escpos.OpBoldOn)
	b.line("*** VIA COZINHA ***")
	b.op(escpos.OpBoldOff, escpos.OpSizeNormal, escpos.OpAlignLeft)
	b.separator()

	// Order identification
	b.op(escpos.OpSizeDouble, escpos.OpBoldOn)
	b.line("PEDIDO " + orderRef(o.ID))
	b.op(escpos.OpBoldOff, escpos.OpSizeNormal)
	b.line("Data: " + o.CreatedAt.Format(dateLayout))
	b.line("Hora: " + o.CreatedAt.Format(timeLayout))
	if o.Status != "" {
		b.line("Status: " + strings.ToUpper(o.Status))
	}

	// The urgent banner is emitted whenever the flag is set, even when the
	// status line above already carries a priority label. The duplicated
	// emphasis is intentional.
	if o.Urgent {
		b.op(escpos.OpAlignCenter, escpos.OpSizeDouble, escpos.OpBoldOn)
		b.line("*** PEDIDO URGENTE ***")
		b.op(escpos.OpBoldOff, escpos.OpSizeNormal, escpos.OpAlignLeft)
	}
	b.separator()

	// Customer block
	b.bold(func() { b.line("CLIENTE/CUSTOMER") })
	b.line(fallback(o.CustomerName, "Cliente"))
	b.line("Tel: " + fallback(o.CustomerPhone, "-"))
	if o.HasDeliveryAddress() {
		b.line("End: " + o.Address)
	}
	b.line("Pagamento: " + fallback(o.PaymentMethod, "-"))
	if o.ChangeFor.IsPositive() {
		b.bold(func() { b.line("Troco/Change for: " + o.ChangeFor.StringFixed(2)) })
	}
	b.separator()

	// Time estimates: delivery chains onto preparation, not onto now.
	b.bold(func() { b.line("TEMPOS ESTIMADOS") })
	ready := now.Add(time.Duration(o.PreparationMinutes) * time.Minute)
	b.line("Pronto às: " + ready.Format(timeLayout))
	delivery := ready.Add(time.Duration(o.DeliveryMinutes) * time.Minute)
	b.line("Entrega às: " + delivery.Format(timeLayout))
	if o.CourierName != "" {
		b.line("Entregador: " + o.CourierName)
	}
	b.separator()

	// Items
	b.op(escpos.OpAlignCenter, escpos.OpSizeDouble, escpos.OpUnderlineOn)
	b.line("ITENS PARA PREPARO")
	b.op(escpos.OpUnderlineOff, escpos.OpSizeNormal, escpos.OpAlignLeft)
	b.op(escpos.OpLineFeed)

	for i, item := range o.Items {
		c.composeKitchenItem(b, i+1, item)
	}

	// Order-level note
	if o.Note != "" {
		b.op(escpos.OpUnderlineOn, escpos.OpBoldOn)
		b.line("OBSERVAÇÕES DO PEDIDO:")
		b.op(escpos.OpBoldOff, escpos.OpUnderlineOff)
		b.line(o.Note)
		b.separator()
	}

	// Summary
	b.bold(func() { b.line("RESUMO") })
	b.line(fmt.Sprintf("Itens: %d", o.ItemCount()))
	b.line("Total: " + money(o.Total))
	b.op(escpos.OpLineFeed)

	// Fixed operator checklist, static text by design.
	b.line("[ ] Conferir todos os itens")
	b.line("[ ] Verificar observações")
	b.line("[ ] Embalar adequadamente")
	b.line("[ ] Marcar como pronto")

	b.feed(3)
	b.op(escpos.OpCut)

	return b.bytes()
}

// composeKitchenItem renders one item block of the kitchen ticket.
func (c *Composer) composeKitchenItem(b *builder, index int, item model.OrderItem) {
	b.op(escpos.OpSizeDouble, escpos.OpBoldOn)
	b.line(fmt.Sprintf("%d. %s", index, strings.ToUpper(fallback(item.Name, "Item"))))
	b.op(escpos.OpBoldOff, escpos.OpSizeNormal)

	b.bold(func() { b.line(fmt.Sprintf("Quantidade: %dx", item.Quantity)) })

	if len(item.Flavors) > 0 {
		b.bold(func() { b.line("Sabores:") })
		for _, flavor := range item.Flavors {
			b.line("  " + flavor)
		}
	}
	if item.Size != "" {
		b.line("Tamanho: " + item.Size)
	}
	if len(item.AddedIngredients) > 0 {
		b.bold(func() { b.line("Adicionar ingredientes:") })
		for _, ing := range item.AddedIngredients {
			b.line("  + " + ing)
		}
	}
	if len(item.RemovedIngredients) > 0 {
		b.bold(func() { b.line("Remover ingredientes:") })
		for _, ing := range item.RemovedIngredients {
			b.line("  - " + ing)
		}
	}
	if item.Note != "" {
		b.op(escpos.OpUnderlineOn, escpos.OpBoldOn)
		b.line("OBSERVAÇÕES:")
		b.op(escpos.OpBoldOff, escpos.OpUnderlineOff)
		b.line(item.Note)
	}

	b.separator()
	b.op(escpos.OpLineFeed)
}

// builder accumulates encoder output and UTF-8 text payloads. Nothing else
// ever enters the stream.
type builder struct {
	buf   bytes.Buffer
	width int
}

func newBuilder(width int) *builder {
	return &builder{width: width}
}

func (b *builder) op(ops ...escpos.Op) {
	for _, op := range ops {
		b.buf.Write(escpos.Encode(op))
	}
}

func (b *builder) line(s string) {
	b.buf.WriteString(s)
	b.op(escpos.OpLineFeed)
}

func (b *builder) bold(fn func()) {
	b.op(escpos.OpBoldOn)
	fn()
	b.op(escpos.OpBoldOff)
}

func (b *builder) separator() {
	b.line(strings.Repeat("-", b.width))
}

func (b *builder) feed(n int) {
	b.buf.Write(escpos.FeedLines(n))
}

func (b *builder) bytes() []byte {
	return b.buf.Bytes()
}

// orderRef shortens long opaque order ids to a readable reference.
func orderRef(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return "#" + strings.ToUpper(id[:8])
	}
	return "#" + strings.ToUpper(id)
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func money(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}
