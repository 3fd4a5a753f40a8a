// internal/receipt/composer_test.go
package receipt

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"printer-bridge/internal/escpos"
	"printer-bridge/internal/model"
)

var testNow = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func testOrder() *model.Order {
	return &model.Order{
		ID:            "a1b2c3d4e5f6",
		CreatedAt:     time.Date(2026, 3, 14, 18, 12, 0, 0, time.UTC),
		Status:        "em preparo",
		CustomerName:  "Maria Silva",
		CustomerPhone: "+55 11 99999-0000",
		Address:       "Rua das Flores, 123",
		PaymentMethod: "cash",
		Items: []model.OrderItem{
			{
				Quantity:  2,
				Name:      "Pizza Grande",
				UnitPrice: decimal.RequireFromString("45.00"),
				Flavors:   []string{"Calabresa", "Mussarela"},
				Size:      "Grande",
			},
			{
				Quantity:           1,
				Name:               "Esfiha",
				UnitPrice:          decimal.RequireFromString("8.50"),
				Note:               "bem assada",
				AddedIngredients:   []string{"catupiry"},
				RemovedIngredients: []string{"cebola"},
			},
		},
		Subtotal:           decimal.RequireFromString("98.50"),
		DeliveryFee:        decimal.RequireFromString("7.00"),
		Total:              decimal.RequireFromString("105.50"),
		Note:               "entregar na portaria",
		CourierName:        "João",
		PreparationMinutes: 25,
		DeliveryMinutes:    20,
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	c := NewComposer(Options{})

	a := testOrder()
	b := testOrder()

	if !bytes.Equal(c.ComposeCustomerReceipt(a, testNow), c.ComposeCustomerReceipt(b, testNow)) {
		t.Error("customer receipts differ for structurally equal orders")
	}
	if !bytes.Equal(c.ComposeKitchenTicket(a, testNow), c.ComposeKitchenTicket(b, testNow)) {
		t.Error("kitchen tickets differ for structurally equal orders")
	}
}

func TestKitchenTicketTimeChaining(t *testing.T) {
	c := NewComposer(Options{})
	o := testOrder()
	o.PreparationMinutes = 25
	o.DeliveryMinutes = 20

	out := string(c.ComposeKitchenTicket(o, testNow))

	// ready = now + prep; delivery = ready + del, never now + del.
	if !bytes.Contains([]byte(out), []byte("Pronto às: 18:55")) {
		t.Error("preparation-ready time should be now + 25m = 18:55")
	}
	if !bytes.Contains([]byte(out), []byte("Entrega às: 19:15")) {
		t.Error("estimated delivery should chain onto preparation time (19:15)")
	}
	if bytes.Contains([]byte(out), []byte("Entrega às: 18:50")) {
		t.Error("delivery time must not chain onto now")
	}
}

func TestKitchenTicketUrgentBannerOnce(t *testing.T) {
	c := NewComposer(Options{})
	o := testOrder()
	o.Urgent = true
	o.Status = "URGENTE" // priority label already present

	out := c.ComposeKitchenTicket(o, testNow)
	if n := bytes.Count(out, []byte("*** PEDIDO URGENTE ***")); n != 1 {
		t.Errorf("urgent banner printed %d times, want exactly 1", n)
	}

	o.Urgent = false
	out = c.ComposeKitchenTicket(o, testNow)
	if bytes.Contains(out, []byte("*** PEDIDO URGENTE ***")) {
		t.Error("urgent banner printed for non-urgent order")
	}
}

func TestKitchenTicketPickupOmitsAddress(t *testing.T) {
	c := NewComposer(Options{})

	for _, addr := range []string{"", model.AddressNotInformed, "não informado"} {
		o := testOrder()
		o.Address = addr
		out := c.ComposeKitchenTicket(o, testNow)
		if bytes.Contains(out, []byte("End: ")) {
			t.Errorf("address line printed for pickup order (address=%q)", addr)
		}
	}

	o := testOrder()
	out := c.ComposeKitchenTicket(o, testNow)
	if !bytes.Contains(out, []byte("End: Rua das Flores, 123")) {
		t.Error("address line missing for delivery order")
	}
}

func TestChangeDueLine(t *testing.T) {
	c := NewComposer(Options{})

	o := testOrder()
	o.ChangeFor = decimal.Zero
	out := c.ComposeKitchenTicket(o, testNow)
	if bytes.Contains(out, []byte("Troco/Change for:")) {
		t.Error("change-due line printed for zero change")
	}

	o.ChangeFor = decimal.RequireFromString("12.50")
	out = c.ComposeKitchenTicket(o, testNow)
	if !bytes.Contains(out, []byte("Troco/Change for: 12.50")) {
		t.Error("change-due line missing for change 12.50")
	}
}

func TestMultiFlavorItemOrdering(t *testing.T) {
	c := NewComposer(Options{})
	o := testOrder()
	o.Items = []model.OrderItem{{
		Quantity:  1,
		Name:      "Pizza",
		UnitPrice: decimal.RequireFromString("40.00"),
		Flavors:   []string{"A", "B"},
		Size:      "Large",
	}}

	out := string(c.ComposeKitchenTicket(o, testNow))

	iA := bytes.Index([]byte(out), []byte("  A\n"))
	iB := bytes.Index([]byte(out), []byte("  B\n"))
	iSize := bytes.Index([]byte(out), []byte("Tamanho: Large"))
	if iA < 0 || iB < 0 || iSize < 0 {
		t.Fatalf("missing flavor or size lines: A=%d B=%d size=%d", iA, iB, iSize)
	}
	if !(iA < iB && iB < iSize) {
		t.Errorf("expected flavors then size, got positions A=%d B=%d size=%d", iA, iB, iSize)
	}
}

func TestIngredientBlocks(t *testing.T) {
	c := NewComposer(Options{})
	out := string(c.ComposeKitchenTicket(testOrder(), testNow))

	for _, want := range []string{"  + catupiry", "  - cebola", "OBSERVAÇÕES:", "bem assada"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("kitchen ticket missing %q", want)
		}
	}
}

func TestCustomerReceiptLayout(t *testing.T) {
	c := NewComposer(Options{HeaderName: "FORNO DA VILA"})
	o := testOrder()
	out := c.ComposeCustomerReceipt(o, testNow)

	for _, want := range []string{
		"FORNO DA VILA",
		"Resumo do Pedido",
		"Pedido: #A1B2C3D4",
		"Cliente: Maria Silva",
		"2x Pizza Grande",
		"R$ 45.00",
		"TOTAL: R$ 105.50",
		"Pagamento: cash",
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("customer receipt missing %q", want)
		}
	}

	// init first, cut last
	if !bytes.HasPrefix(out, escpos.Encode(escpos.OpInitialize)) {
		t.Error("receipt does not start with initialize")
	}
	if !bytes.HasSuffix(out, escpos.Encode(escpos.OpCut)) {
		t.Error("receipt does not end with cut")
	}
}

func TestKitchenTicketChecklistAndSummary(t *testing.T) {
	c := NewComposer(Options{})
	out := c.ComposeKitchenTicket(testOrder(), testNow)

	for _, want := range []string{
		"*** VIA COZINHA ***",
		"PEDIDO #A1B2C3D4",
		"Status: EM PREPARO",
		"CLIENTE/CUSTOMER",
		"Entregador: João",
		"ITENS PARA PREPARO",
		"1. PIZZA GRANDE",
		"Quantidade: 2x",
		"RESUMO",
		"Itens: 3",
		"[ ] Conferir todos os itens",
		"[ ] Verificar observações",
		"[ ] Embalar adequadamente",
		"[ ] Marcar como pronto",
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("kitchen ticket missing %q", want)
		}
	}
}

// TestControlCodeClosure walks the stream and rejects any control byte that
// does not begin a sequence from the command table (or a feed-lines command).
func TestControlCodeClosure(t *testing.T) {
	c := NewComposer(Options{})
	o := testOrder()
	o.Urgent = true

	streams := map[string][]byte{
		"customer": c.ComposeCustomerReceipt(o, testNow),
		"kitchen":  c.ComposeKitchenTicket(o, testNow),
	}

	known := make([][]byte, 0, 16)
	for _, op := range escpos.Ops() {
		known = append(known, escpos.Encode(op))
	}

	for name, stream := range streams {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < len(stream); {
				b := stream[i]
				if b != 0x1B && b != 0x1D {
					i++
					continue
				}
				matched := 0
				for _, seq := range known {
					if bytes.HasPrefix(stream[i:], seq) && len(seq) > matched {
						matched = len(seq)
					}
				}
				// ESC d n feed command carries a count byte.
				if matched == 0 && bytes.HasPrefix(stream[i:], []byte{0x1B, 0x64}) && i+2 < len(stream) {
					matched = 3
				}
				if matched == 0 {
					t.Fatalf("byte 0x%02X at offset %d does not start a known control sequence", b, i)
				}
				i += matched
			}
		})
	}
}

func TestMissingFieldFallbacks(t *testing.T) {
	c := NewComposer(Options{})
	o := &model.Order{
		CreatedAt: testNow,
		Items:     []model.OrderItem{{Quantity: 1}},
	}

	// Composition cannot fail on sparse input.
	out := c.ComposeCustomerReceipt(o, testNow)
	for _, want := range []string{"Pedido: -", "Cliente: Cliente", "1x Item", "R$ 0.00"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("sparse receipt missing fallback %q\n%s", want, fmt.Sprintf("% X", out))
		}
	}

	kitchen := c.ComposeKitchenTicket(o, testNow)
	if !bytes.Contains(kitchen, []byte("1. ITEM")) {
		t.Error("sparse kitchen ticket missing item name fallback")
	}
	if bytes.Contains(kitchen, []byte("OBSERVAÇÕES DO PEDIDO:")) {
		t.Error("order note block printed without a note")
	}
}
