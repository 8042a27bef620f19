package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/feedtriage/triage/internal/socketrpc"
)

// SeverityCounts is the number of entries at each level observed in one
// time bucket.
type SeverityCounts struct {
	Bucket                                             time.Time
	Trace, Debug, Info, Warn, Error, Fatal, Critical   int
	Unknown                                            int
	Total                                              int
}

var severityChartColors = map[string]lipgloss.Style{
	"TRACE":    lipgloss.NewStyle().Foreground(ColorGray).Background(ColorGray),
	"DEBUG":    lipgloss.NewStyle().Foreground(ColorGray).Background(ColorGray),
	"INFO":     lipgloss.NewStyle().Foreground(ColorBlue).Background(ColorBlue),
	"WARN":     lipgloss.NewStyle().Foreground(ColorOrange).Background(ColorOrange),
	"ERROR":    lipgloss.NewStyle().Foreground(ColorRed).Background(ColorRed),
	"FATAL":    lipgloss.NewStyle().Foreground(ColorPurple).Background(ColorPurple),
	"UNKNOWN":  lipgloss.NewStyle().Foreground(ColorWhite).Background(ColorWhite),
}

// bucketSeverityCounts groups entries into fixed-width time buckets,
// oldest first, for the counts chart.
func bucketSeverityCounts(entries []socketrpc.WireEntry, bucket time.Duration, maxBuckets int) []SeverityCounts {
	if len(entries) == 0 {
		return nil
	}
	byBucket := make(map[int64]*SeverityCounts)
	var order []int64
	for _, e := range entries {
		key := e.Timestamp.Truncate(bucket).Unix()
		sc, ok := byBucket[key]
		if !ok {
			sc = &SeverityCounts{Bucket: e.Timestamp.Truncate(bucket)}
			byBucket[key] = sc
			order = append(order, key)
		}
		sc.Total++
		switch e.Level {
		case "TRACE":
			sc.Trace++
		case "DEBUG":
			sc.Debug++
		case "INFO":
			sc.Info++
		case "WARN":
			sc.Warn++
		case "ERROR":
			sc.Error++
		case "FATAL":
			sc.Fatal++
		case "CRITICAL":
			sc.Critical++
		default:
			sc.Unknown++
		}
	}
	// order is insertion order from the (already time-ascending) entries
	// slice, so the buckets already come out oldest-first.
	dedup := make(map[int64]bool, len(order))
	var keys []int64
	for _, k := range order {
		if !dedup[k] {
			dedup[k] = true
			keys = append(keys, k)
		}
	}
	if maxBuckets > 0 && len(keys) > maxBuckets {
		keys = keys[len(keys)-maxBuckets:]
	}
	out := make([]SeverityCounts, len(keys))
	for i, k := range keys {
		out[i] = *byBucket[k]
	}
	return out
}

// renderCountsChart renders a stacked bar chart of severity counts over
// time plus a text legend summarizing the most recent bucket.
func renderCountsChart(data []SeverityCounts, width, height int) string {
	if len(data) == 0 || width < 20 || height < 3 {
		return helpStyle.Render("No data available")
	}

	legendWidth := 16
	chartHeight := height - 1
	if chartHeight < 2 {
		chartHeight = 2
	}
	actualChartWidth := width - legendWidth - 2
	if actualChartWidth < 10 {
		actualChartWidth = 10
	}

	maxBars := actualChartWidth / 3
	dataStartIdx := 0
	if len(data) > maxBars {
		dataStartIdx = len(data) - maxBars
	}
	visible := data[dataStartIdx:]

	bc := barchart.New(actualChartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)

	for _, sc := range visible {
		bars := []struct {
			name  string
			count int
		}{
			{"TRACE", sc.Trace},
			{"DEBUG", sc.Debug},
			{"INFO", sc.Info},
			{"WARN", sc.Warn},
			{"ERROR", sc.Error},
			{"FATAL", sc.Fatal + sc.Critical},
		}
		var values []barchart.BarValue
		for _, b := range bars {
			if b.count > 0 {
				values = append(values, barchart.BarValue{Name: b.name, Value: float64(b.count), Style: severityChartColors[b.name]})
			}
		}
		if len(values) == 0 {
			values = append(values, barchart.BarValue{Name: "UNKNOWN", Value: 0, Style: severityChartColors["UNKNOWN"]})
		}
		bc.Push(barchart.BarData{Label: "", Values: values})
	}
	bc.Draw()
	chartOutput := bc.View()

	latest := data[len(data)-1]
	legendRows := []struct {
		name  string
		count int
		color lipgloss.Color
	}{
		{"FATAL", latest.Fatal + latest.Critical, ColorPurple},
		{"ERROR", latest.Error, ColorRed},
		{"WARN", latest.Warn, ColorOrange},
		{"INFO", latest.Info, ColorBlue},
		{"DEBUG", latest.Debug, ColorGray},
		{"TRACE", latest.Trace, ColorGray},
		{"TOTAL", latest.Total, ColorWhite},
	}
	var legendLines []string
	for _, row := range legendRows {
		style := lipgloss.NewStyle().Foreground(row.color)
		legendLines = append(legendLines, style.Render(fmt.Sprintf("%-6s:%6d", row.name, row.count)))
	}
	for len(legendLines) < chartHeight {
		legendLines = append(legendLines, "")
	}

	chartLines := strings.Split(chartOutput, "\n")
	for len(chartLines) < chartHeight {
		chartLines = append(chartLines, "")
	}

	var combined []string
	for i := 0; i < chartHeight; i++ {
		chartLine := chartLines[i]
		if lipgloss.Width(chartLine) < actualChartWidth {
			chartLine += strings.Repeat(" ", actualChartWidth-lipgloss.Width(chartLine))
		}
		combined = append(combined, chartLine+"  "+legendLines[i])
	}
	header := deckTitleStyle.Render(fmt.Sprintf("Log Counts (%d buckets)", len(visible)))
	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(combined, "\n"))
}
