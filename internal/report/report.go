// Package report renders service results for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/oshikatsu-collection/oshidata/internal/backup"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	gradeStyles  = map[string]lipgloss.Style{
		"A": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		"B": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		"C": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		"D": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}

	// 日本語ロケールで桁区切り
	numbers = message.NewPrinter(language.Japanese)
)

// maxIssueRows caps the rows printed per issue code; --json has everything.
const maxIssueRows = 20

// Printer writes results as tables under styled headings, or as indented JSON.
type Printer struct {
	w    io.Writer
	json bool
}

func New(w io.Writer, jsonOutput bool) *Printer {
	return &Printer{w: w, json: jsonOutput}
}

func (p *Printer) heading(title string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, headingStyle.Render(title))
}

func (p *Printer) note(format string, args ...any) {
	fmt.Fprintln(p.w, noteStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) table(header []any, rows [][]any) error {
	t := tablewriter.NewWriter(p.w)
	t.Header(header...)
	for _, row := range rows {
		if err := t.Append(row...); err != nil {
			return err
		}
	}
	return t.Render()
}

func (p *Printer) emitJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yen(v float64) string {
	return numbers.Sprintf("¥%.0f", v)
}

func count(n int) string {
	return numbers.Sprintf("%d", n)
}

func dryRunSuffix(dry bool) string {
	if dry {
		return " (dry run)"
	}
	return ""
}

func (p *Printer) Stats(c store.Counts) error {
	if p.json {
		return p.emitJSON(c)
	}
	p.heading("Row counts")
	return p.table([]any{"Table", "Rows"}, [][]any{
		{"celebrities", count(int(c.Celebrities))},
		{"episodes", count(int(c.Episodes))},
		{"locations", count(int(c.Locations))},
		{"episode_locations", count(int(c.EpisodeLocations))},
	})
}

func (p *Printer) CelebritySeed(r *service.SeedResult, dryRun bool) error {
	if p.json {
		return p.emitJSON(r)
	}
	p.heading("Celebrity seed" + dryRunSuffix(dryRun))
	if err := p.table([]any{"Created", "Updated", "Failed"}, [][]any{
		{count(r.Created), count(r.Updated), count(r.Failed)},
	}); err != nil {
		return err
	}
	for _, e := range r.Errors {
		p.note("! %s", e)
	}
	return nil
}

func (p *Printer) LocationSeed(r *service.LocationSeedResult, dryRun bool) error {
	if p.json {
		return p.emitJSON(r)
	}
	p.heading("Location seed" + dryRunSuffix(dryRun))
	if err := p.table([]any{"Created", "Updated", "Links", "Missing episodes"}, [][]any{
		{count(r.Created), count(r.Updated), count(r.LinksCreated), count(len(r.MissingEpisodes))},
	}); err != nil {
		return err
	}
	for _, ref := range r.MissingEpisodes {
		p.note("missing episode: %s", ref)
	}
	for _, w := range r.Warnings {
		p.note("! %s", w)
	}
	return nil
}

func (p *Printer) Imports(source string, results []service.ImportResult, dryRun bool) error {
	if p.json {
		return p.emitJSON(results)
	}
	p.heading(source + " import" + dryRunSuffix(dryRun))
	rows := make([][]any, 0, len(results)+1)
	var fetched, added, updated, skipped int
	for _, r := range results {
		rows = append(rows, []any{r.Name, count(r.Fetched), count(r.New), count(r.Updated), count(r.Skipped)})
		fetched += r.Fetched
		added += r.New
		updated += r.Updated
		skipped += r.Skipped
	}
	rows = append(rows, []any{"TOTAL", count(fetched), count(added), count(updated), count(skipped)})
	return p.table([]any{"Celebrity", "Fetched", "New", "Updated", "Skipped"}, rows)
}

func (p *Printer) Enrich(changed int, dryRun bool) error {
	if p.json {
		return p.emitJSON(map[string]any{"changed": changed, "dry_run": dryRun})
	}
	p.heading("TMDB enrich" + dryRunSuffix(dryRun))
	p.note("%s celebrities updated", count(changed))
	return nil
}

func (p *Printer) Dedup(r *service.DedupReport) error {
	if p.json {
		return p.emitJSON(r)
	}
	p.heading(fmt.Sprintf("Duplicate %s%s", r.Kind, dryRunSuffix(r.DryRun)))
	if len(r.Groups) == 0 {
		p.note("no duplicates found")
		return nil
	}
	rows := make([][]any, 0, len(r.Groups))
	for _, g := range r.Groups {
		rows = append(rows, []any{g.KeeperID, g.KeeperName, strings.Join(g.DuplicateIDs, "\n"), g.Reason})
	}
	if err := p.table([]any{"Keep", "Name", "Duplicates", "Reason"}, rows); err != nil {
		return err
	}
	p.note("%s rows deleted, %s links moved, %s links dropped",
		count(r.Deleted), count(r.LinksMoved), count(r.LinksDropped))
	return nil
}

func (p *Printer) Cleanup(r *service.CleanupReport) error {
	if p.json {
		return p.emitJSON(r)
	}
	p.heading("Cleanup" + dryRunSuffix(r.DryRun))
	if len(r.Changes) > 0 {
		rows := make([][]any, 0, len(r.Changes))
		for _, c := range r.Changes {
			rows = append(rows, []any{c.Name, c.Field, c.From, c.To, c.Reason})
		}
		if err := p.table([]any{"Location", "Field", "From", "To", "Reason"}, rows); err != nil {
			return err
		}
	}
	p.note("%s locations updated, %s orphan links", count(r.Updated), count(len(r.OrphanLinks)))
	return nil
}

func (p *Printer) Audit(r *service.AuditReport) error {
	if p.json {
		return p.emitJSON(r)
	}
	p.heading("Data quality")
	var scoreRows [][]any
	for _, kind := range []string{service.EntityCelebrity, service.EntityEpisode, service.EntityLocation, service.EntityLink} {
		s := r.Scores[kind]
		scoreRows = append(scoreRows, []any{kind, count(s.Total), count(s.Clean), fmt.Sprintf("%.1f", s.Score)})
	}
	if err := p.table([]any{"Entity", "Total", "Clean", "Score"}, scoreRows); err != nil {
		return err
	}
	style, ok := gradeStyles[r.Grade]
	if !ok {
		style = lipgloss.NewStyle()
	}
	fmt.Fprintf(p.w, "Overall %.1f  Grade %s\n", r.Overall, style.Render(r.Grade))

	for _, code := range r.Codes() {
		issues := r.Issues[code]
		p.heading(fmt.Sprintf("%s (%d)", code, len(issues)))
		rows := make([][]any, 0, min(len(issues), maxIssueRows))
		for i, is := range issues {
			if i == maxIssueRows {
				break
			}
			rows = append(rows, []any{is.ID, is.Name, is.Detail})
		}
		if err := p.table([]any{"ID", "Name", "Detail"}, rows); err != nil {
			return err
		}
		if len(issues) > maxIssueRows {
			p.note("... %d more", len(issues)-maxIssueRows)
		}
	}
	return nil
}

func (p *Printer) Revenue(r *service.RevenueReport) error {
	if p.json {
		return p.emitJSON(r)
	}
	a := r.Assumptions
	p.heading("Revenue estimate")
	p.note("views = %.0f + %.0f x episodes, ctr %.1f%%, cvr %.1f%%, %s per reservation",
		a.BaseMonthlyViews, a.ViewsPerEpisode, a.ClickThroughRate*100, a.ConversionRate*100, yen(a.CommissionYen))

	var rows [][]any
	for _, s := range r.Scenarios {
		rows = append(rows, []any{s.Name, numbers.Sprintf("%.0f", s.Views), numbers.Sprintf("%.1f", s.Reservations), yen(s.RevenueYen), yen(s.AnnualYen)})
	}
	if err := p.table([]any{"Scenario", "Views/mo", "Reservations/mo", "Revenue/mo", "Revenue/yr"}, rows); err != nil {
		return err
	}
	p.note("%s monetized locations, %s food locations without affiliate (%s/mo unrealised)",
		count(r.MonetizedCount), count(r.OpportunityCount), yen(r.OpportunityRevenue))

	if len(r.ByCelebrity) > 0 {
		p.heading("By celebrity")
		rows = rows[:0]
		for _, c := range r.ByCelebrity {
			rows = append(rows, []any{c.Name, count(c.Locations), yen(c.RevenueYen)})
		}
		if err := p.table([]any{"Celebrity", "Locations", "Revenue/mo"}, rows); err != nil {
			return err
		}
	}
	if len(r.TopLocations) > 0 {
		p.heading("Top locations")
		rows = rows[:0]
		for _, l := range r.TopLocations {
			rows = append(rows, []any{l.Name, count(l.Episodes), numbers.Sprintf("%.0f", l.MonthlyViews), yen(l.RevenueYen)})
		}
		if err := p.table([]any{"Location", "Episodes", "Views/mo", "Revenue/mo"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) Backup(s *backup.Stats, title string, dryRun bool) error {
	if p.json {
		return p.emitJSON(s)
	}
	p.heading(title + dryRunSuffix(dryRun))
	p.note("%s (%s bytes, %s)", s.Path, numbers.Sprintf("%d", s.SizeBytes), s.LastModified)
	return p.Stats(s.Counts)
}

func (p *Printer) RemoteBackups(files []backup.RemoteFile) error {
	if p.json {
		if files == nil {
			files = []backup.RemoteFile{}
		}
		return p.emitJSON(files)
	}
	p.heading("R2 backups")
	if len(files) == 0 {
		p.note("no backups found")
		return nil
	}
	rows := make([][]any, 0, len(files))
	for _, f := range files {
		rows = append(rows, []any{f.Key, numbers.Sprintf("%d", f.Size), f.LastModified})
	}
	return p.table([]any{"Key", "Bytes", "Last modified"}, rows)
}
