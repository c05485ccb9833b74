package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/bimaudit/bimaudit/constants"
	"github.com/bimaudit/bimaudit/internal/analysis"
	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/chat"
	"github.com/bimaudit/bimaudit/internal/common"
	"github.com/bimaudit/bimaudit/internal/export"
	"github.com/bimaudit/bimaudit/internal/poller"
	"github.com/bimaudit/bimaudit/internal/rules"
	"github.com/bimaudit/bimaudit/internal/session"
	"github.com/bimaudit/bimaudit/internal/upload"
	"github.com/bimaudit/bimaudit/internal/validation"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		modelPath = flag.String("ifc", "", "IFC model file to upload (required)")
		rulesPath = flag.String("rules", "", "validation rules workbook (.xlsx)")
		outPath   = flag.String("out", "", "write a local XLSX issue report to this path")
		pages     = flag.Int("pages", 1, "number of issue pages to print")
		entity    = flag.String("entity", "", "filter issues by entity type")
		reason    = flag.String("reason", "", "filter issues by failure reason")
		ask       = flag.String("ask", "", "one question to ask about the model")
		chatMode  = flag.Bool("chat", false, "interactive Q&A after loading")
		verbose   = flag.Bool("v", false, "verbose request logging")
	)
	flag.Parse()

	if *modelPath == "" {
		printError("Error: -ifc is required\n")
		flag.Usage()
		os.Exit(1)
	}
	if !constants.IsModelFile(*modelPath) {
		printError("Error: only .%s files are accepted: %s\n", constants.ModelExtension, *modelPath)
		os.Exit(1)
	}

	// Env (.env is optional)
	_ = godotenv.Load()

	// Setup logger
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Wire the client and orchestrators
	client := api.NewClient(cfg.API.BaseURL, nil, logger)
	sessions := session.NewTracker()
	watch := poller.New(client, sessions, logger,
		poller.WithInterval(cfg.Poll.Interval),
		poller.WithInitialDelay(cfg.Poll.SubmitDelay),
	)
	aggregator := analysis.NewAggregator(client, sessions, logger)
	transcript := chat.NewLog(client, sessions, logger)
	validator := validation.New(client, sessions, logger,
		validation.WithPageSize(cfg.Issues.PageSize),
	)

	progress := color.New(color.FgCyan)
	orchestrator := upload.New(client, sessions, watch, aggregator, logger,
		upload.WithDependents(transcript, validator),
		upload.WithStatusListener(func(s upload.Status) {
			_, _ = progress.Printf("\r[%3d%%] %-40s", s.Progress, s.Message)
		}),
	)

	fmt.Printf("Uploading %s to %s\n", filepath.Base(*modelPath), cfg.API.BaseURL)
	if err := orchestrator.Submit(ctx, *modelPath); err != nil {
		fmt.Println()
		color.Red("Upload failed: %v", err)
		os.Exit(1)
	}
	fmt.Println()
	color.Green("Model loaded.")

	printSnapshot(orchestrator.Snapshot())

	if *rulesPath != "" {
		runValidation(ctx, cfg, client, sessions, validator, *modelPath, *rulesPath, *outPath, *pages, api.IssueFilter{Entity: *entity, Reason: *reason}, logger)
	}

	if *ask != "" {
		askOne(ctx, transcript, *ask)
	}
	if *chatMode {
		chatLoop(ctx, transcript)
	}
}

func printSnapshot(snap *analysis.Snapshot) {
	if snap == nil {
		return
	}
	bold := color.New(color.Bold)

	_, _ = bold.Println("\nModel")
	if fn := snap.Header.FileName; fn != nil {
		fmt.Printf("  Name:           %s\n", fn.Name)
		fmt.Printf("  Authors:        %s\n", strings.Join(fn.Author, ", "))
		fmt.Printf("  Organization:   %s\n", strings.Join(fn.Organization, ", "))
		fmt.Printf("  System:         %s\n", fn.OriginatingSystem)
		fmt.Printf("  Created:        %s\n", fn.TimeStamp)
	}
	fmt.Printf("  Schema:         %s (%s)\n", snap.Version.VersionLabel, snap.Version.SchemaIdentifier)

	_, _ = bold.Println("\nUnits")
	for _, u := range snap.Units {
		name := u.Name
		if u.Prefix != "" {
			name = u.Prefix + " " + name
		}
		fmt.Printf("  %-24s %s\n", u.UnitType, name)
	}

	_, _ = bold.Println("\nGeoreferencing")
	if snap.Georef.HasGeoref {
		for _, line := range snap.Georef.Summary {
			fmt.Printf("  %s\n", line)
		}
	} else {
		fmt.Println("  no georeferencing data found")
	}
}

func runValidation(ctx context.Context, cfg *common.Config, client *api.Client, sessions *session.Tracker, validator *validation.Orchestrator, modelPath, rulesPath, outPath string, pages int, filter api.IssueFilter, logger *slog.Logger) {
	discipline, stage, err := rules.DisciplineStage(filepath.Base(modelPath))
	if err != nil {
		color.Red("Validation skipped: %v", err)
		return
	}
	if _, err := rules.Preflight(rulesPath, discipline, stage, logger); err != nil {
		color.Red("Rules workbook rejected: %v", err)
		return
	}

	fmt.Printf("\nValidating with %s (discipline %s, stage %s)\n", filepath.Base(rulesPath), discipline, stage)
	if err := validator.SubmitRulesFile(ctx, rulesPath); err != nil {
		color.Red("Validation failed: %v", err)
		return
	}

	if filter != (api.IssueFilter{}) {
		if err := validator.ApplyFilter(ctx, filter); err != nil {
			color.Red("Issue filter failed: %v", err)
			return
		}
	}

	report := validator.Report()
	bold := color.New(color.Bold)

	_, _ = bold.Println("\nValidation summary")
	fmt.Printf("  Elements evaluated:  %d\n", report.Summary.EvaluatedElements)
	fmt.Printf("  Conformant:          %d\n", report.Summary.ConformantElements)
	fmt.Printf("  Non-conformant:      %d\n", report.Summary.NonConformantElements)
	fmt.Printf("  Checks applied:      %d\n", report.Summary.RulesApplied)
	fmt.Printf("  Compliance:          %.1f%%\n", report.CompliancePercent())

	_, _ = bold.Println("\nBy entity")
	for entityType, cell := range report.ByEntity {
		fmt.Printf("  %-28s %4d checks, %5.1f%% conformant\n", entityType, cell.Total, validation.ConformancePercent(cell))
	}

	_, _ = bold.Println("\nWorst properties")
	for _, stat := range report.TopNonConformantProperties(15) {
		fmt.Printf("  %-44s %4d non-conformant\n", stat.Key, stat.Cell.NonConformant)
	}

	printIssuePage(report)
	for page := 2; page <= pages; page++ {
		if page > report.TotalPages {
			break
		}
		if err := validator.LoadIssuesPage(ctx, page); err != nil {
			color.Red("Issue page %d failed: %v", page, err)
			break
		}
		printIssuePage(validator.Report())
	}

	if outPath != "" {
		exporter := export.NewService(client, sessions, cfg.Issues.PageSize, logger)
		data, err := exporter.IssuesXLSX(ctx)
		if err != nil {
			color.Red("Export failed: %v", err)
			return
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			color.Red("Export write failed: %v", err)
			return
		}
		color.Green("\nIssue report written to %s", outPath)
	}
}

func printIssuePage(report *validation.Report) {
	if report == nil || report.TotalIssues == 0 {
		color.Green("\nNo issues found.")
		return
	}
	fmt.Printf("\nIssues (page %d of %d, %d total)\n", report.Page, report.TotalPages, report.TotalIssues)
	for _, issue := range report.Issues {
		actual := "<missing>"
		if issue.Actual != nil {
			actual = *issue.Actual
		}
		fmt.Printf("  %-20s %-24s %s.%s expected=%q actual=%q (%s)\n",
			issue.EntityType, issue.Name, issue.Pset, issue.Property, issue.Expected, actual, issue.Reason)
	}
}

func askOne(ctx context.Context, transcript *chat.Log, question string) {
	fmt.Printf("\n> %s\n", question)
	turn, err := transcript.Ask(ctx, question)
	if err != nil {
		color.Red("Chat failed: %v", err)
		return
	}
	fmt.Println(turn.Text)
	for _, src := range turn.Sources {
		step := ""
		if src.StepID != nil {
			step = fmt.Sprintf(" #%d", *src.StepID)
		}
		fmt.Printf("  source: %s %s%s (%s)\n", src.Entity, src.GUID, step, src.Path)
	}
}

func chatLoop(ctx context.Context, transcript *chat.Log) {
	fmt.Println("\nAsk about the model (empty line to quit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			return
		}
		turn, err := transcript.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			color.Red("Chat failed: %v", err)
			continue
		}
		fmt.Println(turn.Text)
	}
}
