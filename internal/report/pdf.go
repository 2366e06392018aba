package report

import (
	"fmt"
	"io"

	"github.com/signintech/gopdf"

	"bilancio/internal/core"
)

const (
	pageBottom = 800.0
	marginLeft = 40.0
	barLeft    = 190.0
	barMax     = 260.0
	fontFamily = "report"
)

type rgb struct{ r, g, b uint8 }

var (
	textColor    = rgb{45, 52, 54}
	mutedColor   = rgb{99, 110, 114}
	incomeColor  = rgb{0, 184, 148}
	expenseColor = rgb{214, 48, 49}
	warnColor    = rgb{225, 112, 85}
)

// pdfWriter tracks the vertical cursor and opens new pages as it fills up.
type pdfWriter struct {
	pdf *gopdf.GoPdf
	y   float64
	err error
}

// WritePDF renders d on A4 pages using the TTF font in font. Charts are
// horizontal bars scaled to the largest value of each section.
func WritePDF(w io.Writer, d Data, font []byte) error {
	if len(font) == 0 {
		return ErrNoFont
	}
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	if err := pdf.AddTTFFontData(fontFamily, font); err != nil {
		return fmt.Errorf("load font: %w", err)
	}

	p := &pdfWriter{pdf: pdf}
	p.newPage()
	p.header(d)
	p.summary(d)
	p.section("Income vs expenses")
	p.balanceBars(d)
	p.section("Expenses by category")
	p.bars(d.Expenses.Labels, d.Expenses.Values, expenseColor, d.Currency)
	p.section("Income by category")
	p.bars(d.Income.Labels, d.Income.Values, incomeColor, d.Currency)
	if len(d.Budgets) > 0 {
		p.section("Budgets")
		p.budgets(d)
	}
	if len(d.Goals) > 0 {
		p.section("Goals")
		p.goals(d)
	}
	if p.err != nil {
		return fmt.Errorf("render pdf: %w", p.err)
	}

	if _, err := pdf.WriteTo(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (p *pdfWriter) newPage() {
	p.pdf.AddPage()
	p.y = 40
}

// need opens a new page when h points do not fit.
func (p *pdfWriter) need(h float64) {
	if p.y+h > pageBottom {
		p.newPage()
	}
}

func (p *pdfWriter) text(x float64, size float64, c rgb, s string) {
	if p.err != nil {
		return
	}
	if err := p.pdf.SetFont(fontFamily, "", size); err != nil {
		p.err = err
		return
	}
	p.pdf.SetTextColor(c.r, c.g, c.b)
	p.pdf.SetXY(x, p.y)
	if err := p.pdf.Cell(nil, s); err != nil {
		p.err = err
	}
}

func (p *pdfWriter) rect(x, w, h float64, c rgb) {
	if w <= 0 {
		return
	}
	p.pdf.SetFillColor(c.r, c.g, c.b)
	p.pdf.RectFromUpperLeftWithStyle(x, p.y, w, h, "F")
}

func (p *pdfWriter) header(d Data) {
	p.text(marginLeft, 22, textColor, d.Title)
	p.y += 30
	p.text(marginLeft, 10, mutedColor, fmt.Sprintf("%s - %s  |  %s",
		d.Interval.Start.Format("2006-01-02"),
		d.Interval.Last().Format("2006-01-02"),
		d.GeneratedAt.Format("2006-01-02 15:04")))
	p.y += 30
}

func (p *pdfWriter) summary(d Data) {
	income, expenses, net := d.Totals()
	p.text(marginLeft, 12, incomeColor, "Income: "+money(income, d.Currency))
	p.text(220, 12, expenseColor, "Expenses: "+money(expenses, d.Currency))
	p.text(400, 12, textColor, "Net: "+money(net, d.Currency))
	p.y += 30
}

func (p *pdfWriter) section(title string) {
	p.need(50)
	p.y += 10
	p.text(marginLeft, 14, textColor, title)
	p.y += 24
}

func (p *pdfWriter) balanceBars(d Data) {
	var top int64
	for i := range d.Balance.Labels {
		top = max(top, d.Balance.Income[i], d.Balance.Expenses[i])
	}
	for i, label := range d.Balance.Labels {
		p.need(26)
		p.text(marginLeft, 9, textColor, label)
		p.rect(barLeft, barWidth(d.Balance.Income[i], top), 8, incomeColor)
		p.y += 10
		p.rect(barLeft, barWidth(d.Balance.Expenses[i], top), 8, expenseColor)
		p.y += 14
	}
}

func (p *pdfWriter) bars(labels []string, values []int64, c rgb, currency string) {
	if len(labels) == 0 {
		p.text(marginLeft, 10, mutedColor, "-")
		p.y += 18
		return
	}
	var top int64
	for _, v := range values {
		top = max(top, v)
	}
	for i, label := range labels {
		p.need(18)
		p.text(marginLeft, 10, textColor, label)
		p.rect(barLeft, barWidth(values[i], top), 10, c)
		p.text(barLeft+barMax+10, 10, mutedColor, money(values[i], currency))
		p.y += 18
	}
}

func (p *pdfWriter) budgets(d Data) {
	for _, b := range d.Budgets {
		p.need(32)
		c := incomeColor
		switch {
		case b.Exceeded:
			c = expenseColor
		case b.PercentageUsed != nil && *b.PercentageUsed >= 80:
			c = warnColor
		}
		p.text(marginLeft, 10, textColor, b.Name)
		p.text(barLeft+barMax+10, 10, mutedColor, fmt.Sprintf("%s / %s (%s)",
			money(b.Spent, b.Currency), money(b.Amount, b.Currency), percentText(b.PercentageUsed)))
		p.y += 14
		p.progress(b.PercentageUsed, c)
		p.y += 18
	}
}

func (p *pdfWriter) goals(d Data) {
	for _, g := range d.Goals {
		p.need(32)
		c := warnColor
		if g.OnTrack || g.Completed {
			c = incomeColor
		}
		p.text(marginLeft, 10, textColor, g.Name)
		p.text(barLeft+barMax+10, 10, mutedColor, fmt.Sprintf("%s / %s (%s)",
			money(g.CurrentAmount, g.Currency), money(g.Target, g.Currency), percentText(g.PercentageAchieved)))
		p.y += 14
		p.progress(g.PercentageAchieved, c)
		p.y += 18
	}
}

// progress draws a track with a fill clamped to [0, 100] percent.
func (p *pdfWriter) progress(pct *float64, c rgb) {
	p.rect(barLeft, barMax, 6, rgb{223, 230, 233})
	if pct == nil {
		return
	}
	f := min(max(*pct, 0), 100)
	p.rect(barLeft, barMax*f/100, 6, c)
}

// barWidth scales v against top with a visible minimum for non-zero values.
func barWidth(v, top int64) float64 {
	if v <= 0 || top <= 0 {
		return 0
	}
	return max(barMax*float64(v)/float64(top), 2)
}

func money(cents int64, currency string) string {
	return core.Money{Cents: cents}.String() + " " + currency
}

func percentText(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *p)
}
