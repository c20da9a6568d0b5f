package dashboard

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"chowspace/pkg/order"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AE2108")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	settledStyle = cellStyle.Foreground(lipgloss.Color("#2E7D32"))
	waitingStyle = cellStyle.Foreground(lipgloss.Color("#B7791F"))
	failedStyle  = cellStyle.Foreground(lipgloss.Color("#C62828"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var headers = []string{"Order", "Customer", "Items", "Total", "Phone", "Address", "Method", "Status", "Payment"}

// paymentColumn is the index of the payment column in headers.
const paymentColumn = 8

// Render writes the orders as a table followed by a one-line summary.
func Render(w io.Writer, orders []order.Order) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, summaryStyle.Render("No orders found for this filter."))
		return err
	}

	rows := make([][]string, 0, len(orders))
	tones := make([]order.Tone, 0, len(orders))
	for _, ord := range orders {
		rows = append(rows, []string{
			ord.ShortID(),
			ord.GuestInfo.Name,
			ord.ItemsSummary(),
			FormatNaira(ord.TotalAmount),
			ord.GuestInfo.Phone,
			valueOr(ord.GuestInfo.Address, "-"),
			valueOr(string(ord.DeliveryMethod), "-"),
			valueOr(string(ord.Status), string(order.StatusPending)),
			ord.PaymentStatus.Label(),
		})
		tones = append(tones, ord.PaymentStatus.Tone())
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == paymentColumn && row >= 0 && row < len(tones):
				return toneStyle(tones[row])
			default:
				return cellStyle
			}
		})

	s := Summarize(orders)
	summary := fmt.Sprintf("%d orders, %d pending, %d completed, %d paid, revenue %s",
		s.Orders, s.Pending, s.Completed, s.Paid, FormatNaira(s.Revenue))

	_, err := fmt.Fprintln(w, t.Render()+"\n"+summaryStyle.Render(summary))
	return err
}

func toneStyle(t order.Tone) lipgloss.Style {
	switch t {
	case order.ToneSettled:
		return settledStyle
	case order.ToneWaiting:
		return waitingStyle
	default:
		return failedStyle
	}
}

// FormatNaira renders an amount as ₦1,234.50.
func FormatNaira(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "₦" + b.String() + "." + frac
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
