package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary    = "Summary"
	sheetCategories = "Categories"
	sheetBudgets    = "Budgets"
	sheetGoals      = "Goals"
)

const colorHeader = "#2D3436"

// numFmtAmount is the builtin "#,##0.00" format.
const numFmtAmount = 4

type styles struct {
	title, header, amount, percent int
}

// WriteExcel renders d as an xlsx workbook with one sheet per section and a
// native chart on the summary and categories sheets.
func WriteExcel(w io.Writer, d Data) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetCategories, sheetBudgets, sheetGoals} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	steps := []func(*excelize.File, Data, styles) error{
		writeSummary,
		writeCategories,
		writeBudgets,
		writeGoals,
	}
	for _, step := range steps {
		if err := step(f, d, st); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	}); err != nil {
		return st, fmt.Errorf("title style: %w", err)
	}
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeader}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return st, fmt.Errorf("header style: %w", err)
	}
	if st.amount, err = f.NewStyle(&excelize.Style{NumFmt: numFmtAmount}); err != nil {
		return st, fmt.Errorf("amount style: %w", err)
	}
	customPct := "0.0\"%\""
	if st.percent, err = f.NewStyle(&excelize.Style{CustomNumFmt: &customPct}); err != nil {
		return st, fmt.Errorf("percent style: %w", err)
	}
	return st, nil
}

func writeSummary(f *excelize.File, d Data, st styles) error {
	income, expenses, net := d.Totals()
	rows := [][]any{
		{d.Title},
		{"From", d.Interval.Start.Format("2006-01-02"), "To", d.Interval.Last().Format("2006-01-02")},
		{"Generated", d.GeneratedAt.Format("2006-01-02 15:04")},
		{},
		{"Income", euros(income)},
		{"Expenses", euros(expenses)},
		{"Net", euros(net)},
		{},
		{"Bucket", "Income", "Expenses"},
	}
	for i, label := range d.Balance.Labels {
		rows = append(rows, []any{label, euros(d.Balance.Income[i]), euros(d.Balance.Expenses[i])})
	}
	if err := setRows(f, sheetSummary, rows); err != nil {
		return err
	}

	f.SetCellStyle(sheetSummary, "A1", "A1", st.title)
	f.SetCellStyle(sheetSummary, "B5", "B7", st.amount)
	f.SetCellStyle(sheetSummary, "A9", "C9", st.header)
	f.SetColWidth(sheetSummary, "A", "A", 24)
	f.SetColWidth(sheetSummary, "B", "D", 16)

	n := len(d.Balance.Labels)
	if n == 0 {
		return nil
	}
	first, last := 10, 9+n
	f.SetCellStyle(sheetSummary, cell("B", first), cell("C", last), st.amount)

	chart := &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{
			series(sheetSummary, "B9", "A", "B", first, last),
			series(sheetSummary, "C9", "A", "C", first, last),
		},
		Title:  []excelize.RichTextRun{{Text: "Income vs expenses"}},
		Legend: excelize.ChartLegend{Position: "bottom"},
	}
	if err := f.AddChart(sheetSummary, "E2", chart); err != nil {
		return fmt.Errorf("balance chart: %w", err)
	}
	return nil
}

func writeCategories(f *excelize.File, d Data, st styles) error {
	rows := [][]any{{"Expenses", "Amount", "", "Income", "Amount"}}
	n := max(len(d.Expenses.Labels), len(d.Income.Labels))
	for i := 0; i < n; i++ {
		row := make([]any, 5)
		if i < len(d.Expenses.Labels) {
			row[0], row[1] = d.Expenses.Labels[i], euros(d.Expenses.Values[i])
		}
		if i < len(d.Income.Labels) {
			row[3], row[4] = d.Income.Labels[i], euros(d.Income.Values[i])
		}
		rows = append(rows, row)
	}
	if err := setRows(f, sheetCategories, rows); err != nil {
		return err
	}
	f.SetCellStyle(sheetCategories, "A1", "E1", st.header)
	f.SetColWidth(sheetCategories, "A", "A", 24)
	f.SetColWidth(sheetCategories, "D", "D", 24)
	f.SetColWidth(sheetCategories, "B", "B", 14)
	f.SetColWidth(sheetCategories, "E", "E", 14)
	if n > 0 {
		f.SetCellStyle(sheetCategories, "B2", cell("B", n+1), st.amount)
		f.SetCellStyle(sheetCategories, "E2", cell("E", n+1), st.amount)
	}

	if k := len(d.Expenses.Labels); k > 0 {
		chart := &excelize.Chart{
			Type:   excelize.Pie,
			Series: []excelize.ChartSeries{series(sheetCategories, "B1", "A", "B", 2, k+1)},
			Title:  []excelize.RichTextRun{{Text: "Expenses by category"}},
			Legend: excelize.ChartLegend{Position: "right"},
		}
		if err := f.AddChart(sheetCategories, "G2", chart); err != nil {
			return fmt.Errorf("expense chart: %w", err)
		}
	}
	if k := len(d.Income.Labels); k > 0 {
		chart := &excelize.Chart{
			Type:   excelize.Bar,
			Series: []excelize.ChartSeries{series(sheetCategories, "E1", "D", "E", 2, k+1)},
			Title:  []excelize.RichTextRun{{Text: "Income by category"}},
			Legend: excelize.ChartLegend{Position: "none"},
		}
		if err := f.AddChart(sheetCategories, "G20", chart); err != nil {
			return fmt.Errorf("income chart: %w", err)
		}
	}
	return nil
}

func writeBudgets(f *excelize.File, d Data, st styles) error {
	rows := [][]any{{"Budget", "From", "To", "Amount", "Spent", "Remaining", "Used", "Exceeded", "Days left"}}
	for _, b := range d.Budgets {
		rows = append(rows, []any{
			b.Name,
			b.Period.Start.Format("2006-01-02"),
			b.Period.Last().Format("2006-01-02"),
			euros(b.Amount),
			euros(b.Spent),
			euros(b.Remaining),
			pct(b.PercentageUsed),
			yesNo(b.Exceeded),
			b.DaysRemaining,
		})
	}
	if err := setRows(f, sheetBudgets, rows); err != nil {
		return err
	}
	f.SetCellStyle(sheetBudgets, "A1", "I1", st.header)
	f.SetColWidth(sheetBudgets, "A", "A", 24)
	f.SetColWidth(sheetBudgets, "B", "I", 12)
	if n := len(d.Budgets); n > 0 {
		f.SetCellStyle(sheetBudgets, "D2", cell("F", n+1), st.amount)
		f.SetCellStyle(sheetBudgets, "G2", cell("G", n+1), st.percent)
	}
	return nil
}

func writeGoals(f *excelize.File, d Data, st styles) error {
	rows := [][]any{{"Goal", "Type", "From", "To", "Target", "Current", "Achieved", "On track", "Completed"}}
	for _, g := range d.Goals {
		rows = append(rows, []any{
			g.Name,
			string(g.GoalType),
			g.Period.Start.Format("2006-01-02"),
			g.Period.Last().Format("2006-01-02"),
			euros(g.Target),
			euros(g.CurrentAmount),
			pct(g.PercentageAchieved),
			yesNo(g.OnTrack),
			yesNo(g.Completed),
		})
	}
	if err := setRows(f, sheetGoals, rows); err != nil {
		return err
	}
	f.SetCellStyle(sheetGoals, "A1", "I1", st.header)
	f.SetColWidth(sheetGoals, "A", "A", 24)
	f.SetColWidth(sheetGoals, "B", "I", 12)
	if n := len(d.Goals); n > 0 {
		f.SetCellStyle(sheetGoals, "E2", cell("F", n+1), st.amount)
		f.SetCellStyle(sheetGoals, "G2", cell("G", n+1), st.percent)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheet, cell("A", i+1), &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// series builds a chart series over rows [first, last] with the header cell
// as its name.
func series(sheet, nameCell, catCol, valCol string, first, last int) excelize.ChartSeries {
	return excelize.ChartSeries{
		Name:       fmt.Sprintf("%s!$%s$%s", sheet, nameCell[:1], nameCell[1:]),
		Categories: fmt.Sprintf("%s!$%s$%d:$%s$%d", sheet, catCol, first, catCol, last),
		Values:     fmt.Sprintf("%s!$%s$%d:$%s$%d", sheet, valCol, first, valCol, last),
	}
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// pct leaves the cell empty when the percentage is undefined.
func pct(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
