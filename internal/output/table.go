package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/emmett/streamvox/internal/telemetry"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	return table
}

// WriteSummaries renders end-of-session statistics
func WriteSummaries(w io.Writer, summaries []telemetry.Summary) {
	table := newTable(w, []string{"Session", "Source", "Audio", "Elapsed", "RTF", "Segments", "Words", "Dropped", "Failures"})
	for _, s := range summaries {
		table.Append([]string{
			s.ID,
			s.Source,
			fmt.Sprintf("%.2f s", s.Audio.Seconds()),
			fmt.Sprintf("%.2f s", s.Duration.Seconds()),
			fmt.Sprintf("%.3f", s.RealTimeFactor()),
			fmt.Sprintf("%d", s.Segments),
			fmt.Sprintf("%d", s.Words),
			fmt.Sprintf("%d", s.Dropped),
			fmt.Sprintf("%d", s.Failures),
		})
	}
	table.Render()
}

// ModelRow is one line of the model listing
type ModelRow struct {
	Name        string
	Language    string
	Size        string
	Installed   bool
	Default     bool
	Description string
}

// WriteModels renders the model catalog and installed bundles
func WriteModels(w io.Writer, rows []ModelRow) {
	table := newTable(w, []string{"Name", "Language", "Size", "Status", "Description"})
	for _, r := range rows {
		status := "available"
		if r.Installed {
			status = "installed"
		}
		if r.Default {
			status += ", default"
		}
		table.Append([]string{r.Name, r.Language, r.Size, status, r.Description})
	}
	table.Render()
}

// DeviceRow is one line of the device listing
type DeviceRow struct {
	ID      string
	Name    string
	Default bool
}

// WriteDevices renders the capture devices
func WriteDevices(w io.Writer, rows []DeviceRow) {
	table := newTable(w, []string{"ID", "Name", "Default"})
	for _, r := range rows {
		def := ""
		if r.Default {
			def = "yes"
		}
		table.Append([]string{r.ID, r.Name, def})
	}
	table.Render()
}
