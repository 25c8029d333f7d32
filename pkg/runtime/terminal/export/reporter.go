package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
)

type TableConfig struct {
	SiteWidth   int
	TenantWidth int
	ValueWidth  int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		SiteWidth:   24,
		TenantWidth: 40,
		ValueWidth:  14,
	}
}

type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

func (c *Reporter) funcs() template.FuncMap {
	cell := func(width int, v any) string {
		s := fmt.Sprint(v)
		if len(s) > width {
			s = s[:width-1] + "~"
		}
		return fmt.Sprintf(" %-*s ", width, s)
	}
	return template.FuncMap{
		"site":   func(v any) string { return cell(c.config.SiteWidth, v) },
		"tenant": func(v any) string { return cell(c.config.TenantWidth, v) },
		"value":  func(v any) string { return cell(c.config.ValueWidth, v) },
		"num":    func(f float64) string { return fmt.Sprintf("%.0f", f) },
		"separator": func(values int) string {
			parts := []string{
				strings.Repeat("-", c.config.SiteWidth+2),
				strings.Repeat("-", c.config.TenantWidth+2),
			}
			for i := 0; i < values; i++ {
				parts = append(parts, strings.Repeat("-", c.config.ValueWidth+2))
			}
			return "+" + strings.Join(parts, "+") + "+"
		},
		"tiers": func(tiers []domain.TierHighWaterMark) string {
			out := make([]string, 0, len(tiers))
			for _, t := range tiers {
				out = append(out, fmt.Sprintf("%s=%.0f", t.Name, t.MaxUsed))
			}
			return strings.Join(out, " ")
		},
	}
}

func (c *Reporter) render(name, tmpl string, data any) error {
	t, err := template.New(name).Funcs(c.funcs()).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, data)
}

const sitesTemplate = `{{separator 2}}
|{{site "Key"}}|{{tenant "Name"}}|{{value "Platform"}}|{{value "Status"}}|
{{separator 2}}
{{range .}}|{{site .CompositeID}}|{{tenant .Name}}|{{value .PlatformType}}|{{value .Status}}|
{{end}}{{separator 2}}
`

func (c *Reporter) Sites(sites []domain.SiteInfo) error {
	return c.render("sites", sitesTemplate, sites)
}

const pollTemplate = `Cycle {{.CycleID}} polled at {{.PolledAt.Format "2006-01-02T15:04:05Z07:00"}}
Succeeded: {{.Succeeded}}  Failed: {{.Failed}}  Tenant rows: {{.TenantRows}}
Pruned: {{.PrunedSites}} site rows, {{.PrunedTenants}} tenant rows
{{range .Sites}}- {{.SiteKey}}: {{if .Err}}FAILED {{.Err}}{{else}}{{.TenantRows}} tenants{{if .Partial}} (partial){{end}}{{end}}
{{end}}{{range .Skipped}}- {{.}}: skipped
{{end}}`

func (c *Reporter) Poll(res *domain.PollResult) error {
	return c.render("poll", pollTemplate, res)
}

const hwmTemplate = `
High-water marks {{.Year}}-{{printf "%02d" .Month}}
Period: {{.Period.Start.Format "2006-01-02"}} to {{.Period.End.Format "2006-01-02"}}

{{separator 5}}
|{{site "Site"}}|{{tenant "Tenant"}}|{{value "Snapshots"}}|{{value "CPU MHz"}}|{{value "RAM MB"}}|{{value "Storage MB"}}|{{value "IPs"}}|
{{separator 5}}
{{range .Tenants}}|{{site .SiteID}}|{{tenant .TenantName}}|{{value .SnapshotCount}}|{{value (num .MaxCPUUsed)}}|{{value (num .MaxRAMUsed)}}|{{value (num .MaxStorageUsed)}}|{{value .MaxIPAllocated}}|
{{if .Tiers}}|{{site ""}}|{{tenant (tiers .Tiers)}}|{{value ""}}|{{value ""}}|{{value ""}}|{{value ""}}|{{value ""}}|
{{end}}{{end}}{{separator 5}}
`

func (c *Reporter) HighWaterMarks(report *domain.HighWaterMarkReport) error {
	data := struct {
		*domain.HighWaterMarkReport
		Month int
	}{report, int(report.Month)}
	return c.render("hwm", hwmTemplate, data)
}

const overageTemplate = `
Overages {{.Period.Start.Format "2006-01-02"}} to {{.Period.End.Format "2006-01-02"}}

{{separator 4}}
|{{site "Site"}}|{{tenant "Tenant"}}|{{value "CPU breaches"}}|{{value "CPU max over"}}|{{value "RAM breaches"}}|{{value "RAM max over"}}|
{{separator 4}}
{{range .Tenants}}|{{site .SiteID}}|{{tenant .TenantName}}|{{value .CPU.Count}}|{{value (num .CPU.MaxOverage)}}|{{value .RAM.Count}}|{{value (num .RAM.MaxOverage)}}|
{{end}}{{separator 4}}
`

func (c *Reporter) Overages(report *domain.OverageReport) error {
	return c.render("overage", overageTemplate, report)
}
