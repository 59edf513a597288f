package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/parsers"
	"github.com/username/nestegg/backend/src/processors"
)

// app holds what every subcommand shares.
type app struct {
	out           io.Writer
	templatesPath string
}

func (a *app) register(c *subcommands.Commander) {
	c.Register(&institutionsCmd{app: a}, "statements")
	c.Register(&detectCmd{app: a}, "statements")
	c.Register(&mapCmd{app: a}, "statements")
	c.Register(&classifyCmd{app: a}, "statements")
	c.Register(&previewCmd{app: a}, "statements")
}

func (a *app) engine() (*institutions.Engine, error) {
	return institutions.NewEngineWithOverrides(a.templatesPath)
}

// load parses the statement at path and resolves its institution. A known
// institution key wins over detection.
func (a *app) load(path, institution string) (*institutions.Engine, *parsers.Table, string, error) {
	engine, err := a.engine()
	if err != nil {
		return nil, nil, "", fmt.Errorf("loading templates: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, "", err
	}
	table, err := parsers.ParseFile(filepath.Base(path), data)
	if err != nil {
		return nil, nil, "", err
	}
	key := institution
	if _, ok := engine.Template(key); !ok {
		key, _ = engine.DetectInstitution(table.DetectionRows(), table.FileName)
	}
	return engine, table, key, nil
}

func institutionName(engine *institutions.Engine, key string) string {
	if tpl, ok := engine.Template(key); ok {
		return fmt.Sprintf("%s (%s)", tpl.Name, tpl.Key)
	}
	return "unknown"
}

type institutionsCmd struct{ *app }

func (*institutionsCmd) Name() string     { return "institutions" }
func (*institutionsCmd) Synopsis() string { return "list the supported institutions" }
func (*institutionsCmd) Usage() string {
	return `importctl institutions

  Lists the institution templates in detection order.
`
}
func (*institutionsCmd) SetFlags(*flag.FlagSet) {}

func (c *institutionsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	engine, err := c.engine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading templates: %v\n", err)
		return subcommands.ExitFailure
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME")
	for _, info := range engine.SupportedInstitutions() {
		fmt.Fprintf(w, "%s\t%s\n", info.Key, info.Name)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type detectCmd struct{ *app }

func (*detectCmd) Name() string     { return "detect" }
func (*detectCmd) Synopsis() string { return "detect the format and institution of a statement" }
func (*detectCmd) Usage() string {
	return `importctl detect <file>

  Parses the file and prints its format, encoding, headers and institution.
`
}
func (*detectCmd) SetFlags(*flag.FlagSet) {}

func (c *detectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "detect takes exactly one file")
		return subcommands.ExitUsageError
	}
	engine, table, key, err := c.load(f.Arg(0), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading statement: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.out, "File:        %s\n", table.FileName)
	fmt.Fprintf(c.out, "Format:      %s\n", table.Format)
	if table.Encoding != "" {
		fmt.Fprintf(c.out, "Encoding:    %s\n", table.Encoding)
	}
	fmt.Fprintf(c.out, "Institution: %s\n", institutionName(engine, key))
	fmt.Fprintf(c.out, "Headers:     %s\n", strings.Join(table.Headers, ", "))
	fmt.Fprintf(c.out, "Rows:        %d\n", len(table.Rows))
	return subcommands.ExitSuccess
}

type mapCmd struct {
	*app
	institution string
}

func (*mapCmd) Name() string     { return "map" }
func (*mapCmd) Synopsis() string { return "propose a column mapping for a statement" }
func (*mapCmd) Usage() string {
	return `importctl map [-institution <key>] <file>

  Prints the header chosen for every canonical field.
`
}

func (c *mapCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.institution, "institution", "", "institution key, skips detection when known")
}

func (c *mapCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "map takes exactly one file")
		return subcommands.ExitUsageError
	}
	engine, table, key, err := c.load(f.Arg(0), c.institution)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading statement: %v\n", err)
		return subcommands.ExitFailure
	}
	mapping := engine.AutoMapColumns(table.Headers, key)

	fmt.Fprintf(c.out, "Institution: %s\n", institutionName(engine, key))
	printMapping(c.out, mapping)
	if missing := mapping.RequiredMissing(); len(missing) > 0 {
		fmt.Fprintf(c.out, "Missing required: %s\n", joinFields(missing))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type classifyCmd struct {
	*app
	description string
	symbol      string
}

func (*classifyCmd) Name() string     { return "classify" }
func (*classifyCmd) Synopsis() string { return "guess the asset type of a holding" }
func (*classifyCmd) Usage() string {
	return `importctl classify [-description <text>] [-symbol <ticker>]

  Prints the asset type inferred from a description and symbol.
`
}

func (c *classifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "description", "", "holding description")
	f.StringVar(&c.symbol, "symbol", "", "holding symbol")
}

func (c *classifyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	engine, err := c.engine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading templates: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, engine.DetectAssetType(c.description, c.symbol))
	return subcommands.ExitSuccess
}

type previewCmd struct {
	*app
	institution string
	limit       int
	currency    string
}

func (*previewCmd) Name() string     { return "preview" }
func (*previewCmd) Synopsis() string { return "normalize a statement into positions" }
func (*previewCmd) Usage() string {
	return `importctl preview [-institution <key>] [-limit <n>] [-c <currency>] <file>

  Parses, maps and normalizes the file, then prints the positions, the row
  errors and the total current value.
`
}

func (c *previewCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.institution, "institution", "", "institution key, skips detection when known")
	f.IntVar(&c.limit, "limit", 0, "stop after that many data rows (0 for all)")
	f.StringVar(&c.currency, "c", money.USD, "currency used to display values")
}

func (c *previewCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "preview takes exactly one file")
		return subcommands.ExitUsageError
	}
	if money.GetCurrency(c.currency) == nil {
		fmt.Fprintf(os.Stderr, "Unknown currency %q\n", c.currency)
		return subcommands.ExitUsageError
	}
	engine, table, key, err := c.load(f.Arg(0), c.institution)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading statement: %v\n", err)
		return subcommands.ExitFailure
	}
	mapping := engine.AutoMapColumns(table.Headers, key)
	if missing := mapping.RequiredMissing(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "Cannot normalize, no column found for: %s\n", joinFields(missing))
		return subcommands.ExitFailure
	}

	records, rowErrors := processors.NewPositionNormalizer(engine).Normalize(table, mapping, processors.Options{
		InstitutionKey: key,
		Limit:          c.limit,
	})

	fmt.Fprintf(c.out, "Institution: %s\n", institutionName(engine, key))
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tSYMBOL\tTYPE\tQUANTITY\tVALUE")
	total := decimal.Zero
	for _, rec := range records {
		value := "-"
		if rec.CurrentValue.Valid {
			total = total.Add(rec.CurrentValue.Decimal)
			value = formatMoney(rec.CurrentValue.Decimal, c.currency)
		}
		qty := "-"
		if rec.Quantity.Valid {
			qty = rec.Quantity.Decimal.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", rec.Line, rec.Symbol, rec.AssetType, qty, value)
	}
	w.Flush()

	fmt.Fprintf(c.out, "Positions: %d, total current value %s\n", len(records), formatMoney(total, c.currency))
	for _, e := range rowErrors {
		fmt.Fprintf(c.out, "line %d: %s\n", e.Line, e.Message)
	}
	for _, warn := range table.Warnings {
		fmt.Fprintf(c.out, "warning, line %d: %s\n", warn.Line, warn.Message)
	}
	return subcommands.ExitSuccess
}

// formatMoney renders amount in the currency's minor units, rounding half
// away from zero.
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

func printMapping(w io.Writer, mapping institutions.ColumnMapping) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, field := range institutions.CanonicalFields {
		header, ok := mapping[field]
		if !ok {
			header = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", field, header)
	}
	tw.Flush()
}

func joinFields(fields []institutions.CanonicalField) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
