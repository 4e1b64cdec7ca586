package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/uhyunpark/hyperpredict/pkg/api"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
)

const usage = `usage: marketctl [-api URL] <command>

commands:
  markets [-state STATE] [-category CAT]   list markets
  positions ADDRESS                        list an account's positions with P&L
`

func main() {
	base := flag.String("api", envOr("MARKETCTL_API", "http://localhost:8080"), "node API base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	c := &client{base: strings.TrimRight(*base, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	ctx := context.Background()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "markets":
		fs := flag.NewFlagSet("markets", flag.ExitOnError)
		state := fs.String("state", "", "lifecycle filter, e.g. OPEN")
		category := fs.String("category", "", "category filter")
		_ = fs.Parse(args[1:])
		var markets []api.MarketInfo
		if markets, err = c.markets(ctx, *state, *category); err == nil {
			err = renderMarkets(os.Stdout, markets)
		}
	case "positions":
		if len(args) != 2 {
			flag.Usage()
			os.Exit(2)
		}
		var vals []predict.Valuation
		if vals, err = c.positions(ctx, args[1]); err == nil {
			err = renderPositions(os.Stdout, vals)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
}

func (c *client) markets(ctx context.Context, state, category string) ([]api.MarketInfo, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	if category != "" {
		q.Set("category", category)
	}
	var out []api.MarketInfo
	err := c.get(ctx, "/api/v1/markets?"+q.Encode(), &out)
	return out, err
}

func (c *client) positions(ctx context.Context, account string) ([]predict.Valuation, error) {
	var out []predict.Valuation
	err := c.get(ctx, "/api/v1/accounts/"+url.PathEscape(account)+"/positions", &out)
	return out, err
}

func (c *client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Message != "" {
			return fmt.Errorf("%s: %s", e.Error, e.Message)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func renderMarkets(w io.Writer, markets []api.MarketInfo) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Title", "State", "YES", "NO", "Collateral", "Cutoff")
	for _, m := range markets {
		state := m.State.String()
		if m.Halted {
			state += " (halted)"
		}
		if err := table.Append(
			m.ID,
			m.Title,
			state,
			m.YesPrice.Decimal().StringFixed(4),
			m.NoPrice.Decimal().StringFixed(4),
			m.Collateral.Decimal().StringFixed(2),
			m.CutoffTime.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderPositions(w io.Writer, vals []predict.Valuation) error {
	table := tablewriter.NewWriter(w)
	table.Header("Market", "YES", "NO", "LP", "Invested", "Value", "PnL", "PnL %")
	for _, v := range vals {
		p := v.Position
		if err := table.Append(
			p.MarketID,
			p.Yes.String(),
			p.No.String(),
			p.LPUnits.String(),
			p.Invested.Decimal().StringFixed(2),
			v.Value.Decimal().StringFixed(2),
			v.PnL.StringFixed(2),
			v.PnLPercent.StringFixed(2),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
