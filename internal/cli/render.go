package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/spiceflow/internal/category"
	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/dashboard"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/storage"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

// MaxTableRows bounds the transaction rows printed under a dashboard.
const MaxTableRows = 25

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func header(columns ...string) string {
	styled := make([]string, len(columns))
	for i, c := range columns {
		styled[i] = TableHeaderStyle.Render(c)
	}
	return strings.Join(styled, "\t")
}

// RenderDashboard prints totals and recent transactions for a dashboard.
func RenderDashboard(w io.Writer, resp *dashboard.Response) error {
	summary := fmt.Sprintf("Spending: %s\nTransactions: %d\nAccount: %s",
		BoldStyle.Render("$"+resp.Totals.Spending.StringFixed(2)), resp.Matched, resp.Account)
	if _, err := fmt.Fprintln(w, RenderBox(resp.Month+" Spending Flow", summary)); err != nil {
		return err
	}

	if resp.Matched == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No spending in this period."))
		return err
	}

	labels := make([]string, 0, len(resp.Totals.ByCategory))
	for _, t := range resp.Totals.ByCategory {
		labels = append(labels, t.Label)
	}
	colors := category.ColorMap(labels)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header("CATEGORY", "TOTAL", "SHARE"))
	for _, t := range resp.Totals.ByCategory {
		share := "0.0%"
		if resp.Totals.Spending.IsPositive() {
			share = t.Total.Div(resp.Totals.Spending).Shift(2).StringFixed(1) + "%"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", Swatch(colors[t.Label]), category.Label(t.Label), t.Total.StringFixed(2), share)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, header("ACCOUNT", "TOTAL"))
	for _, t := range resp.Totals.ByAccount {
		fmt.Fprintf(tw, "%s\t%s\n", t.Label, t.Total.StringFixed(2))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, header("DATE", "MERCHANT", "AMOUNT", "CATEGORY", "SOURCE", "ACCOUNT"))
	for i, txn := range resp.Transactions {
		if i == MaxTableRows {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			txn.Date,
			txn.Merchant,
			txn.Amount.StringFixed(2),
			category.Label(txn.Category),
			SubtitleStyle.Render(string(txn.Source)),
			txn.AccountName)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(resp.Transactions) > MaxTableRows {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("… %d more (use --format json for all)", len(resp.Transactions)-MaxTableRows)))
		return err
	}
	return nil
}

// RenderSyncOutcomes prints one line per synced item.
func RenderSyncOutcomes(w io.Writer, outcomes []syncer.ItemOutcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			if _, err := fmt.Fprintln(w, FormatError(fmt.Sprintf("item %d: %v (%s)", o.ItemID, o.Err, common.KindOf(o.Err)))); err != nil {
				return err
			}
			continue
		}
		r := o.Result
		line := fmt.Sprintf("item %d: +%d added, ~%d modified, -%d removed, %d accounts",
			o.ItemID, r.Added, r.Modified, r.Removed, r.Accounts)
		if r.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", r.Skipped)
		}
		if _, err := fmt.Fprintln(w, FormatSuccess(line)); err != nil {
			return err
		}
	}
	return nil
}

// RenderSeedOutcomes prints one line per seeded item.
func RenderSeedOutcomes(w io.Writer, outcomes []syncer.SeedOutcome) error {
	for _, o := range outcomes {
		var line string
		switch {
		case o.Err != nil:
			line = FormatError(fmt.Sprintf("item %d: created %d, then failed: %v", o.ItemID, o.Created, o.Err))
		case o.Sync != nil:
			line = FormatSuccess(fmt.Sprintf("item %d: created %d, synced +%d", o.ItemID, o.Created, o.Sync.Added))
		default:
			line = FormatSuccess(fmt.Sprintf("item %d: created %d", o.ItemID, o.Created))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderRules prints rules in creation order.
func RenderRules(w io.Writer, rules []model.Rule) error {
	if len(rules) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No rules defined."))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header("ID", "MATCH", "PATTERN", "CATEGORY", "CREATED"))
	for _, r := range rules {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.MatchType, r.Pattern, r.Category, r.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

// RenderItems prints linked items. Access tokens are never shown.
func RenderItems(w io.Writer, items []model.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No linked items. Run 'spiceflow items link-token' to start."))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header("ID", "ITEM", "SYNCED", "LINKED"))
	for _, item := range items {
		synced := "never"
		if item.Cursor != nil {
			synced = FormatRelativeTime(item.UpdatedAt)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", item.ID, item.ExternalID, synced, item.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

// RenderSnapshots prints snapshots newest first.
func RenderSnapshots(w io.Writer, snapshots []storage.SnapshotInfo) error {
	if len(snapshots) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No snapshots found."))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header("NAME", "CREATED", "SIZE", "TRANSACTIONS", "TYPE"))
	for _, s := range snapshots {
		typeLabel := "manual"
		if s.IsAuto {
			typeLabel = "auto"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			InfoStyle.Render(s.ID),
			FormatRelativeTime(s.CreatedAt),
			FormatFileSize(s.FileSize),
			s.RowCounts["transactions"],
			SubtitleStyle.Render(typeLabel))
	}
	return tw.Flush()
}

// RenderCategories prints category labels with their palette colors.
func RenderCategories(w io.Writer, categories []string) error {
	colors := category.ColorMap(categories)
	for _, c := range categories {
		if _, err := fmt.Fprintf(w, "%s %s\n", Swatch(colors[c]), c); err != nil {
			return err
		}
	}
	return nil
}

// NewProgress creates a progress bar for total steps.
func NewProgress(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

// FormatFileSize renders a byte count in binary units.
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FormatRelativeTime renders t relative to now, falling back to a date
// after a week.
func FormatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return plural(days, "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
