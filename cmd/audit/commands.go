package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
	"github.com/rocjay1/spend-audit/internal/store"
)

type runCmd struct {
	Source []string `short:"s" required help:"Source export as label=path. Repeat for each source."`
	After  string   `help:"Keep records strictly after this date (YYYY-MM-DD)."`
	Before string   `help:"Keep records strictly before this date (YYYY-MM-DD)."`
	Out    string   `default:"ledger.csv" help:"Where to write the classified ledger CSV."`
	Store  string   `help:"Also export the ledger to [jsonfile:/path/file.json es8:http://myelasticsearch:9200]"`
	Audit  string   `help:"Canonical audit ledger CSV to verify against the sources."`
}

func (c *runCmd) Run(g *globals) error {
	cfg, err := g.config(c.After, c.Before)
	if err != nil {
		return err
	}
	data, err := loadSources(c.Source)
	if err != nil {
		return err
	}

	res, err := engine.Run(cfg, data)
	if err != nil {
		return err
	}
	if err := writeLedger(c.Out, res.Ledger); err != nil {
		return err
	}
	slog.Info("wrote ledger", "path", c.Out, "rows", len(res.Ledger))

	if c.Store != "" {
		storage, err := store.Open(c.Store)
		if err != nil {
			return err
		}
		if err := storage.Write(context.Background(), uuid.NewString(), res.Ledger); err != nil {
			return err
		}
	}

	printSummary(os.Stdout, res.Statistics)

	if c.Audit != "" {
		return verifyAgainst(c.Audit, res.Sources)
	}
	return nil
}

type verifyCmd struct {
	Audit  string   `arg help:"Canonical audit ledger CSV."`
	Source []string `short:"s" required help:"Source export as label=path. Repeat for each source."`
	After  string   `help:"Keep records strictly after this date (YYYY-MM-DD)."`
	Before string   `help:"Keep records strictly before this date (YYYY-MM-DD)."`
}

func (c *verifyCmd) Run(g *globals) error {
	cfg, err := g.config(c.After, c.Before)
	if err != nil {
		return err
	}
	data, err := loadSources(c.Source)
	if err != nil {
		return err
	}
	res, err := engine.Run(cfg, data)
	if err != nil {
		return err
	}
	return verifyAgainst(c.Audit, res.Sources)
}

func verifyAgainst(path string, sources []engine.SourceLedger) error {
	audit, err := readLedger(path)
	if err != nil {
		return err
	}
	report, err := engine.Verify(audit, sources)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	printMatch(os.Stdout, report)
	return nil
}

type reclassifyCmd struct {
	Ledger string `arg help:"Classified ledger CSV from an earlier run. Labels missing from the current taxonomy show up as removed categories."`
	Out    string `help:"Where to write the reclassified ledger. Nothing is written when empty."`
}

func (c *reclassifyCmd) Run(g *globals) error {
	cfg, err := g.config("", "")
	if err != nil {
		return err
	}
	ledger, err := readLedger(c.Ledger)
	if err != nil {
		return err
	}

	res, err := engine.Reclassify(cfg, ledger)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Ledger, err)
	}
	before := engine.Summarize(cfg.Rules, ledger)
	printComparison(os.Stdout, engine.Compare(before, res.Statistics), staleCategories(cfg.Rules, ledger))

	if c.Out != "" {
		if err := writeLedger(c.Out, res.Ledger); err != nil {
			return err
		}
		slog.Info("wrote ledger", "path", c.Out, "rows", len(res.Ledger))
	}
	return nil
}

// staleCategories lists the labels of a stored ledger that the rule set no longer
// declares, in order of first appearance.
func staleCategories(rs *rules.RuleSet, ledger []models.Transaction) []models.Category {
	known := make(map[models.Category]bool)
	for _, c := range rs.Taxonomy() {
		known[c] = true
	}
	var stale []models.Category
	for _, t := range ledger {
		if t.Category == "" || known[t.Category] {
			continue
		}
		known[t.Category] = true
		stale = append(stale, t.Category)
	}
	return stale
}
