package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schwabStatement = `"Positions for account Individual ...123 as of 10/01/2024, Charles Schwab"

Symbol,Description,Quantity,Price,Market Value,Cost Basis
AAPL,APPLE INC,10,150.00,1500.00,1200.00
BTC,Bitcoin,0.5,60000,30000.25,
,Account Total,,,31500.25,
`

func run(t *testing.T, args ...string) (string, subcommands.ExitStatus) {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out}

	fs := flag.NewFlagSet("importctl", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "importctl")
	a.register(commander)
	require.NoError(t, fs.Parse(args))

	status := commander.Execute(context.Background())
	return out.String(), status
}

func writeStatement(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInstitutionsCmd(t *testing.T) {
	out, status := run(t, "institutions")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "fidelity")
	assert.Contains(t, out, "Charles Schwab")
}

func TestDetectCmd(t *testing.T) {
	path := writeStatement(t, "positions.csv", schwabStatement)
	out, status := run(t, "detect", path)
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Format:      csv")
	assert.Contains(t, out, "Institution: Charles Schwab (schwab)")
	assert.Contains(t, out, "Rows:        3")

	_, status = run(t, "detect")
	assert.Equal(t, subcommands.ExitUsageError, status)

	_, status = run(t, "detect", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestMapCmd(t *testing.T) {
	path := writeStatement(t, "positions.csv", schwabStatement)
	out, status := run(t, "map", path)
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Regexp(t, `currentValue\s+Market Value`, out)
	assert.Regexp(t, `purchaseDate\s+-`, out)

	path = writeStatement(t, "other.csv", "Foo,Bar\n1,2\n")
	out, status = run(t, "map", path)
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, out, "Missing required: symbol, quantity")
}

func TestClassifyCmd(t *testing.T) {
	out, status := run(t, "classify", "-description", "Bitcoin", "-symbol", "BTC")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "crypto\n", out)
}

func TestPreviewCmd(t *testing.T) {
	path := writeStatement(t, "positions.csv", schwabStatement)
	out, status := run(t, "preview", path)
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Institution: Charles Schwab (schwab)")
	assert.Regexp(t, `AAPL\s+security\s+10\s+\$1,500\.00`, out)
	assert.Regexp(t, `BTC\s+crypto\s+0\.5\s+\$30,000\.25`, out)
	assert.Contains(t, out, "Positions: 2, total current value $31,500.25")
	assert.Contains(t, out, "missing symbol")

	out, status = run(t, "preview", "-limit", "1", path)
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Positions: 1, total current value $1,500.00")

	_, status = run(t, "preview", "-c", "XXXX", path)
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.57", formatMoney(decimal.RequireFromString("1234.565"), "USD"))
	assert.Equal(t, "¥1,235", formatMoney(decimal.RequireFromString("1234.5"), "JPY"))
	assert.Equal(t, "12.30", formatMoney(decimal.RequireFromString("12.3"), "NOPE"))
}
