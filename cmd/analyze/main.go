package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/template"

	"github.com/google/uuid"

	"github.com/ericksa/contractlens/internal/analysis"
	"github.com/ericksa/contractlens/internal/app"
	"github.com/ericksa/contractlens/internal/config"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/model"
	"github.com/ericksa/contractlens/internal/review"
)

const reportTemplate = `Contract Review: {{.Summary.Title}}
Document: {{.DocumentID}}{{if .Synthetic}} (no text layer, sample clauses used){{end}}
{{with .Summary.Parties}}Parties: {{.Party1}} / {{.Party2}}
{{end}}Effective: {{.Summary.EffectiveDate}} | Term: {{.Summary.TermLength}}

Digest
{{range .Summary.Digest}}  - {{.}}
{{end}}
Clauses ({{len .Clauses}})
{{range $i, $c := .Clauses}}  [{{inc $i}}] {{$c.ComplianceStatus}} | risk {{$c.RiskScore}} | {{$c.Category}}{{if $c.Section}} | {{$c.Section}}{{end}}
      {{clip $c.Clause 110}}
{{- range $c.ComplianceIssues}}
      ! {{.Issue}}{{if .Rule}} ({{.Rule}}){{end}}
{{- end}}
{{end}}
{{- if .Summary.Fees}}
Fees
{{range .Summary.Fees}}  - {{.Name}}: {{.Amount}}{{if .Frequency}} {{.Frequency}}{{end}}{{if .Category}} [{{.Category}}]{{end}}
{{end}}{{end}}
{{- if .Summary.RateCard}}
Rate card
{{range .Summary.RateCard}}  - {{.Item}}: {{.Rate}}{{if .Unit}} per {{.Unit}}{{end}}
{{end}}{{end}}
{{- if .Summary.PaymentTerms}}
Payment terms
{{range .Summary.PaymentTerms}}  - {{.}}
{{end}}{{end}}`

var report = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"clip": func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "..."
	},
}).Parse(reportTemplate))

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	var (
		file     = fs.String("file", "", "Contract file to analyze (.pdf, .docx, .doc)")
		rulesArg = fs.String("rules", "", "JSON file with an array of compliance rules")
		format   = fs.String("format", "text", "Output format: text or json")
		seed     = fs.Int64("seed", 0, "Seed for heuristic scoring (0 uses the configured seed)")
		verbose  = fs.Bool("v", false, "Log pipeline activity to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return errors.New("-file is required")
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *seed != 0 {
		cfg.Review.Pipeline.Seed = *seed
	}

	log := logger.Nop()
	if *verbose {
		if log, err = logger.New("dev", "debug"); err != nil {
			return err
		}
		defer log.Sync()
	}

	rules, err := loadRules(*rulesArg)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", *file, err)
	}

	res, err := app.NewPipeline(cfg, log).Run(ctx, model.Document{Filename: filepath.Base(*file), Data: data}, rules)
	if err != nil {
		return err
	}
	return render(out, res, *format)
}

// loadRules reads and normalizes a rules file. An empty path means no rules.
func loadRules(path string) ([]model.ComplianceRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	var rules []model.ComplianceRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("invalid rules file: %w", err)
	}
	for i := range rules {
		if err := review.NormalizeRule(&rules[i]); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if rules[i].ID == "" {
			rules[i].ID = uuid.NewString()
		}
	}
	return rules, nil
}

func render(out io.Writer, res *analysis.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	var buf strings.Builder
	if err := report.Execute(&buf, res); err != nil {
		return err
	}
	_, err := io.WriteString(out, buf.String())
	return err
}
