/*Command line reconciliation of personal spend exports.*/
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/rules"
	"github.com/shopspring/decimal"
)

// globals holds options shared by every command
type globals struct {
	Rules   string `help:"Rule set YAML file. The embedded rule set is used when empty."`
	Verbose bool   `short:"v" help:"Log at debug level."`
}

// cli commands / args available
var cli struct {
	Globals globals `embed`

	Run        runCmd        `cmd help:"Classify source exports into a ledger and print statistics."`
	Verify     verifyCmd     `cmd help:"Check a canonical audit ledger against source exports."`
	Reclassify reclassifyCmd `cmd help:"Re-apply the rule set to a classified ledger and show what moved."`
}

func (g *globals) setup() {
	level := slog.LevelInfo
	if g.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func (g *globals) ruleSet() (*rules.RuleSet, error) {
	if g.Rules == "" {
		return rules.Default()
	}
	return rules.LoadFile(g.Rules)
}

func (g *globals) config(after, before string) (engine.Config, error) {
	rs, err := g.ruleSet()
	if err != nil {
		return engine.Config{}, err
	}
	window, err := engine.ParseWindow(after, before)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{Rules: rs, Window: window}, nil
}

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	ctx := kong.Parse(&cli)
	cli.Globals.setup()
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
