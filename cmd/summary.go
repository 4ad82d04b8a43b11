package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/jdkdb-crawler/internal/downloadmgr"
	"github.com/JakeFAU/jdkdb-crawler/internal/orchestrator"
)

func summaryTable(s orchestrator.Summary) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.SetTitle(fmt.Sprintf("Run %s (%s)", s.RunID, s.Duration.Round(time.Millisecond)))
	w.AppendHeader(table.Row{"Scraper", "Vendor", "Status", "Processed", "Skipped", "Failed", "Error"})
	for _, r := range s.Results {
		status, errText := "SUCCESS", ""
		if !r.Success {
			status = "FAILED"
			if r.Err != nil {
				errText = r.Err.Error()
			}
		}
		w.AppendRow(table.Row{r.ScraperID, r.Vendor, status, r.Processed, r.Skipped, r.Failed, errText})
	}
	w.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d ok / %d failed", s.Successful, s.Failed),
		"",
		s.TotalProcessed,
		s.TotalSkipped,
		"",
		"",
	})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, WidthMax: 60},
	})
	return w.Render()
}

func backfillTable(stats downloadmgr.BackfillStats, completed, failed int64, statsOnly bool) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"Scanned", "Complete", "Missing checksums", "Downloaded", "Failed"})
	downloaded := any(completed)
	failedCol := any(failed)
	if statsOnly {
		downloaded, failedCol = "-", "-"
	}
	w.AppendRow(table.Row{stats.Scanned, stats.Complete, stats.Missing, downloaded, failedCol})
	return w.Render()
}
