// Package export dumps a run's snapshots and opportunities to CSV and
// XLSX for spreadsheet review.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/nichewatch/nichewatch/internal/model"
)

var snapshotHeader = []string{
	"platform", "product_id", "run_id", "category", "subcategory",
	"title", "creator", "url", "price_usd", "currency", "is_pwyw",
	"rating_avg", "rating_count", "sales_count", "revenue_usd",
	"revenue_confidence", "scraped_at",
}

var opportunityHeader = []string{
	"platform", "product_id", "run_id", "score", "velocity",
	"copyability", "novelty", "price_to_value", "saturation_penalty",
	"confidence", "reason", "computed_at",
}

// SnapshotsCSV writes the snapshot rows with a header line.
func SnapshotsCSV(w io.Writer, snapshots []model.ProductSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return eris.Wrap(err, "export: write snapshot header")
	}
	for i := range snapshots {
		if err := cw.Write(snapshotRow(&snapshots[i])); err != nil {
			return eris.Wrap(err, "export: write snapshot row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush snapshots")
}

// OpportunitiesCSV writes the opportunity rows with a header line.
func OpportunitiesCSV(w io.Writer, opportunities []model.Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(opportunityHeader); err != nil {
		return eris.Wrap(err, "export: write opportunity header")
	}
	for i := range opportunities {
		if err := cw.Write(opportunityRow(&opportunities[i])); err != nil {
			return eris.Wrap(err, "export: write opportunity row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush opportunities")
}

// RunXLSX writes one workbook with a snapshots sheet and an
// opportunities sheet.
func RunXLSX(path string, snapshots []model.ProductSnapshot, opportunities []model.Opportunity) error {
	f := xlsx.NewFile()

	snapSheet, err := f.AddSheet("snapshots")
	if err != nil {
		return eris.Wrap(err, "export: add snapshots sheet")
	}
	addRow(snapSheet, snapshotHeader)
	for i := range snapshots {
		addRow(snapSheet, snapshotRow(&snapshots[i]))
	}

	oppSheet, err := f.AddSheet("opportunities")
	if err != nil {
		return eris.Wrap(err, "export: add opportunities sheet")
	}
	addRow(oppSheet, opportunityHeader)
	for i := range opportunities {
		addRow(oppSheet, opportunityRow(&opportunities[i]))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func snapshotRow(s *model.ProductSnapshot) []string {
	return []string{
		s.Platform,
		s.ProductID,
		s.RunID,
		s.Category,
		s.Subcategory,
		s.Title,
		s.Creator,
		s.URL,
		formatFloatPtr(s.PriceUSD),
		s.Currency,
		strconv.FormatBool(s.IsPWYW),
		formatFloatPtr(s.RatingAvg),
		strconv.Itoa(s.RatingCount),
		formatIntPtr(s.SalesCount),
		formatFloatPtr(s.RevenueUSD),
		string(s.RevenueConfidence),
		formatTime(s.ScrapedAt),
	}
}

func opportunityRow(o *model.Opportunity) []string {
	return []string{
		o.Platform,
		o.ProductID,
		o.RunID,
		formatFloat(o.Score),
		formatFloat(o.Velocity),
		formatFloat(o.Copyability),
		formatFloat(o.Novelty),
		formatFloat(o.PriceToValue),
		formatFloat(o.SaturationPenalty),
		string(o.Confidence),
		o.Reason,
		formatTime(o.ComputedAt),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
