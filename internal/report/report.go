// Package report renders decoded packet sequences as self-contained HTML
// charts using go-echarts.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/logcode.report/internal/decode"
	"github.com/banshee-data/logcode.report/internal/postproc"
)

// FieldTrendChart renders a line chart of one field's value over a packet
// sequence, ordered as given (typically capture order). Packets missing the
// field or holding a non-numeric value are skipped.
func FieldTrendChart(w io.Writer, packets []*decode.DecodedPacket, fieldName string) error {
	var x []string
	var y []opts.LineData
	for i, p := range packets {
		f, ok := p.Field(fieldName)
		if !ok {
			continue
		}
		v, ok := f.Float()
		if !ok {
			continue
		}
		x = append(x, fmt.Sprintf("#%d seq=%d", i, p.Header.Sequence))
		y = append(y, opts.LineData{Value: v})
	}
	if len(y) == 0 {
		return fmt.Errorf("field %q has no numeric values across %d packets", fieldName, len(packets))
	}

	subtitle := fmt.Sprintf("%s packets=%d", packets[0].LogcodeHex, len(y))
	if summary, ok := postproc.SummarizeAcrossPackets(packets, fieldName); ok {
		subtitle = fmt.Sprintf("%s mean=%.2f min=%.2f max=%.2f", subtitle,
			summary.Mean, summary.Min, summary.Max)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fieldName, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: fieldName, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "packet"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fieldName}),
	)
	line.SetXAxis(x)
	line.AddSeries(fieldName, y,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return line.Render(w)
}

// RecordSummaryChart renders a bar chart of per-record field means for one
// decoded packet, one bar per base field name.
func RecordSummaryChart(w io.Writer, packet *decode.DecodedPacket) error {
	summaries := postproc.SummarizeRecords(packet.Fields)
	if len(summaries) == 0 {
		return fmt.Errorf("packet %s has no record-array fields to summarize", packet.LogcodeHex)
	}

	x := make([]string, 0, len(summaries))
	y := make([]opts.BarData, 0, len(summaries))
	for _, s := range summaries {
		x = append(x, s.Name)
		y = append(y, opts.BarData{Value: s.Mean})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s record field means", packet.LogcodeHex),
			Subtitle: fmt.Sprintf("version=%s table=%s", packet.VersionHex, packet.TableNumber),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x)
	bar.AddSeries("mean", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	return bar.Render(w)
}
