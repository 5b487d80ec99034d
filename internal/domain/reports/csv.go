package reports

import (
	"encoding/csv"
	"fmt"
	"io"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/types"
)

// GSTR1Columns is the fixed column order of the GSTR-1 export.
var GSTR1Columns = []string{"GSTIN", "Invoice No", "Invoice Date", "Taxable Value", "Rate", "CGST", "SGST", "IGST"}

// WriteCSV exports a report in a fixed column order.
func WriteCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)

	var rows [][]string
	switch {
	case res.GSTR1 != nil:
		rows = gstr1CSV(res.GSTR1)
	case res.GSTR3B != nil:
		rows = gstr3bCSV(res.GSTR3B)
	case res.StockValuation != nil:
		rows = valuationCSV(res.StockValuation)
	case res.Outstanding != nil:
		rows = outstandingCSV(res.Outstanding)
	default:
		return apperror.NewValidation("report has no CSV export").
			WithDetail("type", string(res.Kind))
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func gstr1CSV(r *GSTR1) [][]string {
	rows := [][]string{GSTR1Columns}
	for _, inv := range r.Invoices {
		rows = append(rows, []string{
			inv.GSTIN,
			inv.InvoiceNo,
			inv.InvoiceDate,
			types.FormatMoney(inv.TaxableValue),
			inv.Rate.String(),
			types.FormatMoney(inv.CGST),
			types.FormatMoney(inv.SGST),
			types.FormatMoney(inv.IGST),
		})
	}
	return rows
}

func gstr3bCSV(r *GSTR3B) [][]string {
	rows := [][]string{{"Section", "Head", "Taxable Value", "Output", "Credit", "Payable", "Carry Forward"}}
	rows = append(rows,
		[]string{"3.1(a)", "Outward taxable", types.FormatMoney(r.OutwardTaxable.TaxableValue),
			types.FormatMoney(r.OutwardTaxable.Tax()), "", "", ""},
		[]string{"3.1(c)", "Outward nil/exempt", types.FormatMoney(r.OutwardNilExempt), "", "", "", ""},
		[]string{"4(A)", "Eligible ITC", types.FormatMoney(r.EligibleITC.TaxableValue),
			"", types.FormatMoney(r.EligibleITC.Tax()), "", ""},
	)
	for _, s := range r.Settlement {
		rows = append(rows, []string{"6.1", s.Head, "",
			types.FormatMoney(s.Output),
			types.FormatMoney(s.Credit),
			types.FormatMoney(s.Payable),
			types.FormatMoney(s.CarryForward)})
	}
	rows = append(rows, []string{"6.1", "Net payable", "", "", "", types.FormatMoney(r.NetPayable), ""})
	return rows
}

func valuationCSV(r *StockValuation) [][]string {
	rows := [][]string{{"SKU", "Name", "Category", "Quantity", "Unit Value", "Value"}}
	for _, v := range r.Rows {
		rows = append(rows, []string{
			v.SKU, v.Name, v.Category,
			v.Quantity.String(),
			types.FormatMoney(v.UnitValue),
			types.FormatMoney(v.Value),
		})
	}
	rows = append(rows, []string{"", "Total", "", "", "", types.FormatMoney(r.Total)})
	return rows
}

func outstandingCSV(r *Outstanding) [][]string {
	rows := [][]string{{"Kind", "Number", "Date", "Due Date", "Counterparty", "Grand Total", "Paid", "Outstanding", "Days Overdue", "Bucket"}}
	for _, o := range r.Rows {
		rows = append(rows, []string{
			o.Kind, o.Number, o.Date, o.DueDate, o.Counterparty,
			types.FormatMoney(o.GrandTotal),
			types.FormatMoney(o.Paid),
			types.FormatMoney(o.Outstanding),
			fmt.Sprint(o.DaysOverdue),
			o.Bucket,
		})
	}
	return rows
}
