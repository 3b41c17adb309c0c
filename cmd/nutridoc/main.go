package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/catalog"
	"nutridoc/internal/config"
	"nutridoc/internal/connectors"
	"nutridoc/internal/embedding"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/logger"
	"nutridoc/internal/metrics"
	"nutridoc/internal/pipeline"
	"nutridoc/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	switch cmd {
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", cfg.InputDir, "input directory")
		output := fs.String("output", cfg.OutputDir, "output directory")
		level := fs.String("log-level", cfg.LogLevel, "debug|info|warn|error")
		formats := fs.String("formats", strings.Join(cfg.ExportFormats, ","), "json,report,xlsx,prom,validation")
		dbPath := fs.String("db", "", "sqlite path for stored results")
		embed := fs.Bool("embed", false, "index recipes for retrieval (requires --db)")
		_ = fs.Parse(os.Args[2:])
		if *embed && *dbPath == "" {
			*dbPath = cfg.DBPath
		}

		log := newLogger(cfg, *level)
		defer log.Sync()
		lex := loadLexicon(cfg)

		opts := pipeline.Options{Lexicon: lex, Logger: log, Metrics: metrics.New()}
		if *dbPath != "" {
			db, err := storage.Open(*dbPath)
			must(err)
			defer db.Close()
			opts.Store = db
			matcher, err := catalog.LoadMatcher(db, cfg)
			must(err)
			if matcher.Len() > 0 {
				opts.Reference = matcher
				opts.Metrics.SetCatalogFoods(matcher.Len())
			}
			if *embed {
				opts.Sink = embedding.StoreSink{DB: db}
				opts.Embedder = embedding.HashEmbedder{Dim: cfg.EmbeddingDim}
			}
		}

		orch := pipeline.NewOrchestrator(opts)
		report, err := orch.ProcessDirectory(ctx, *input)
		if errors.Is(err, pipeline.ErrInputDir) {
			must(err)
		}
		if err != nil {
			log.Warn("run interrupted", zap.Error(err))
		}
		written, exportErr := orch.Export(*output, config.SplitList(*formats))
		must(exportErr)

		printSummary(report)
		for _, f := range config.SplitList(*formats) {
			fmt.Printf("%s: %s\n", f, written[f])
		}
		must(err)
	case "catalog:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		full := fs.Bool("full", false, "re-download the whole catalog")
		_ = fs.Parse(os.Args[2:])

		log := newLogger(cfg, cfg.LogLevel)
		defer log.Sync()
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		svc := catalog.NewSyncService(db, cfg, log)
		var count int
		if *full {
			count, err = svc.InitialSync(ctx)
		} else {
			count, err = svc.IncrementalSync(ctx)
		}
		must(err)
		fmt.Printf("catalog sync complete full=%t foods=%d\n", *full, count)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailProvider, "gmail|imap")
		label := fs.String("label", cfg.MailLabel, "mailbox/label")
		max := fs.Int("max", cfg.MailFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])

		log := newLogger(cfg, cfg.LogLevel)
		defer log.Sync()
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		cfg.MailProvider = *provider
		conn, err := connectors.NewConnector(ctx, cfg)
		must(err)
		rec := metrics.New()
		fetch := connectors.NewFetchService(db, cfg.MailInboxDir, *provider, conn, rec, log)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d inbox=%s\n", *provider, result.Fetched, result.Stored, cfg.MailInboxDir)
	case "recipes:context":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		query := fs.String("query", "", "free text query")
		category := fs.String("category", "", "restrict to one category")
		k := fs.Int("k", 5, "number of recipes")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*query) == "" {
			must(fmt.Errorf("--query is required"))
		}

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		rows, err := db.ListEmbeddings(ctx)
		must(err)
		hits := embedding.Search(rows, embedding.HashEmbedder{Dim: cfg.EmbeddingDim}, *query, *category, *k)
		recipes, err := db.ListRecipes(ctx, "")
		must(err)
		byID := make(map[string]internal.Recipe, len(recipes))
		for _, r := range recipes {
			byID[r.ID] = r
		}
		selected := make([]internal.Recipe, 0, len(hits))
		for _, h := range hits {
			if r, ok := byID[h.ID]; ok {
				selected = append(selected, r)
			}
		}
		for _, line := range embedding.PromptLines(selected) {
			fmt.Println(line)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config, level string) *zap.Logger {
	log, err := logger.New(logger.Config{Level: level, Format: cfg.LogFormat})
	must(err)
	return log
}

func loadLexicon(cfg config.Config) *lexicon.Lexicon {
	if cfg.LexiconPath == "" {
		return lexicon.Default()
	}
	lex, err := lexicon.LoadFile(cfg.LexiconPath)
	must(err)
	return lex
}

func printSummary(rep pipeline.Report) {
	s := rep.Summary
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Metric", "Value"})
	tw.AppendBulk([][]string{
		{"Run", rep.RunID},
		{"Files processed", strconv.Itoa(s.TotalFilesProcessed)},
		{"Successful", strconv.Itoa(s.SuccessfulFiles)},
		{"Failed", strconv.Itoa(s.FailedFiles)},
		{"Skipped", strconv.Itoa(s.SkippedFiles)},
		{"Recipes", strconv.Itoa(s.TotalRecipes)},
		{"Equivalencies", strconv.Itoa(s.TotalEquivalencies)},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate)},
		{"Time", fmt.Sprintf("%.2fs", s.ProcessingTime)},
	})
	tw.Render()

	for _, e := range rep.ProcessingDetails.Errors {
		fmt.Printf("  %s: %s\n", filepath.Base(e.File), e.Error)
	}
}

func usage() {
	fmt.Println("usage: nutridoc <command>")
	fmt.Println("commands:")
	fmt.Println("  process --input=DIR --output=DIR [--log-level=info] [--formats=json,report] [--db=PATH] [--embed]")
	fmt.Println("  catalog:sync [--full]")
	fmt.Println("  mail:fetch [--provider=gmail|imap] [--label=INBOX] [--max=20]")
	fmt.Println("  recipes:context --query=TEXT [--category=...] [--k=5]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
