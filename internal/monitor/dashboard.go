// File: internal/monitor/dashboard.go
// Brief: Dashboard grid layout and widget validation.

package monitor

import "fmt"

// The console renders dashboards on a 24-unit-wide grid. Row 0 holds the two
// per-alarm signals side by side; the sent/deleted comparison gets a full
// row of its own so both counters overlap on one chart.
const (
	gridWidth    = 24
	widgetHeight = 6
)

func buildDashboard(queue string) Dashboard {
	return Dashboard{
		LogicalID: dashboardLogicalID,
		Name:      DashboardName(queue),
		Widgets: []Widget{
			{
				X: 0, Y: 0, Width: gridWidth / 2, Height: widgetHeight,
				Title:  "Visible Messages",
				Stat:   StatisticMaximum,
				Period: DepthPeriod,
				View:   "timeSeries",
				Series: []MetricSeries{queueSeries(queue, metricVisible)},
			},
			{
				X: gridWidth / 2, Y: 0, Width: gridWidth / 2, Height: widgetHeight,
				Title:  "Oldest Message Age",
				Stat:   StatisticMaximum,
				Period: DepthPeriod,
				View:   "timeSeries",
				Series: []MetricSeries{queueSeries(queue, metricAge)},
			},
			{
				X: 0, Y: widgetHeight, Width: gridWidth, Height: widgetHeight,
				Title:  "Messages Sent vs Deleted",
				Stat:   StatisticSum,
				Period: DepthPeriod,
				View:   "timeSeries",
				Series: []MetricSeries{
					queueSeries(queue, metricSent),
					queueSeries(queue, metricDeleted),
				},
			},
		},
	}
}

func validateDashboard(d Dashboard) error {
	for i, w := range d.Widgets {
		if w.Width <= 0 || w.Height <= 0 {
			return fmt.Errorf("dashboard %s widget %d has a degenerate rectangle", d.Name, i)
		}
		if w.X < 0 || w.X+w.Width > gridWidth {
			return fmt.Errorf("dashboard %s widget %q exceeds the %d-unit grid", d.Name, w.Title, gridWidth)
		}
		if len(w.Series) == 0 {
			return fmt.Errorf("dashboard %s widget %q has no metric series", d.Name, w.Title)
		}
	}
	for i := 0; i < len(d.Widgets); i++ {
		for j := i + 1; j < len(d.Widgets); j++ {
			if widgetsOverlap(d.Widgets[i], d.Widgets[j]) {
				return fmt.Errorf("dashboard %s widgets %q and %q overlap", d.Name, d.Widgets[i].Title, d.Widgets[j].Title)
			}
		}
	}
	return nil
}

func widgetsOverlap(a, b Widget) bool {
	if a.X+a.Width <= b.X || b.X+b.Width <= a.X {
		return false
	}
	if a.Y+a.Height <= b.Y || b.Y+b.Height <= a.Y {
		return false
	}
	return true
}
