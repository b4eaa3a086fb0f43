package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/gridmarket/lem"
	"github.com/urfave/cli"
)

var marketCommands = []cli.Command{
	{
		Name:      "market",
		ShortName: "m",
		Usage:     "Query a running market daemon.",
		Category:  "Market",
		Subcommands: []cli.Command{
			statusCommand,
			listRoundsCommand,
			roundCommand,
			listAccountsCommand,
			accountCommand,
			summaryCommand,
			windowMetricsCommand,
			remoteClearCommand,
		},
	},
}

var statusCommand = cli.Command{
	Name:      "status",
	ShortName: "s",
	Usage:     "show the state of the market",
	Action: wrapSimpleCmd(func(ctx context.Context, _ *cli.Context,
		client *restClient) (interface{}, error) {

		resp := &lem.MarketResponse{}
		err := client.get(ctx, "/v1/market", nil, resp)
		return resp, err
	}),
}

var listRoundsCommand = cli.Command{
	Name:      "listrounds",
	ShortName: "lr",
	Usage:     "list all cleared rounds",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "limit",
			Usage: "only list the latest rounds, 0 lists all",
		},
	},
	Action: wrapSimpleCmd(func(ctx context.Context, cliCtx *cli.Context,
		client *restClient) (interface{}, error) {

		var params map[string]string
		if limit := cliCtx.Int("limit"); limit > 0 {
			params = map[string]string{
				"limit": strconv.Itoa(limit),
			}
		}

		var resp []lem.RoundResponse
		err := client.get(ctx, "/v1/rounds", params, &resp)
		return resp, err
	}),
}

var roundCommand = cli.Command{
	Name:      "round",
	ShortName: "r",
	Usage:     "show a single round",
	ArgsUsage: "[sequence|latest]",
	Action: wrapSimpleCmd(func(ctx context.Context, cliCtx *cli.Context,
		client *restClient) (interface{}, error) {

		seq := "latest"
		if cliCtx.NArg() > 0 {
			seq = cliCtx.Args().First()
		}

		resp := &lem.RoundResponse{}
		err := client.get(ctx, "/v1/rounds/"+seq, nil, resp)
		return resp, err
	}),
}

var listAccountsCommand = cli.Command{
	Name:      "listaccounts",
	ShortName: "la",
	Usage:     "list the settlement accounts of all participants",
	Action: wrapSimpleCmd(func(ctx context.Context, _ *cli.Context,
		client *restClient) (interface{}, error) {

		var resp []lem.AccountResponse
		err := client.get(ctx, "/v1/accounts", nil, &resp)
		return resp, err
	}),
}

var accountCommand = cli.Command{
	Name:      "account",
	ShortName: "a",
	Usage:     "show the settlement account of a participant",
	ArgsUsage: "participant",
	Description: `
	Show the balance of a participant together with the energy it bought
	and sold over all settled rounds and the average prices it paid and
	received per unit.`,
	Action: wrapSimpleCmd(func(ctx context.Context, cliCtx *cli.Context,
		client *restClient) (interface{}, error) {

		if cliCtx.NArg() != 1 {
			return nil, fmt.Errorf("participant id missing")
		}

		resp := &lem.AccountResponse{}
		err := client.get(
			ctx, "/v1/accounts/"+cliCtx.Args().First(), nil, resp,
		)
		return resp, err
	}),
}

var summaryCommand = cli.Command{
	Name:  "summary",
	Usage: "aggregate all rounds of a period",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "start",
			Usage: "RFC 3339 start of the period, inclusive",
		},
		cli.StringFlag{
			Name:  "end",
			Usage: "RFC 3339 end of the period, exclusive",
		},
	},
	Action: wrapSimpleCmd(func(ctx context.Context, cliCtx *cli.Context,
		client *restClient) (interface{}, error) {

		params := make(map[string]string)
		if start := cliCtx.String("start"); start != "" {
			params["start"] = start
		}
		if end := cliCtx.String("end"); end != "" {
			params["end"] = end
		}

		resp := &lem.SummaryResponse{}
		err := client.get(ctx, "/v1/summary", params, resp)
		return resp, err
	}),
}

var windowMetricsCommand = cli.Command{
	Name:  "metrics",
	Usage: "show the round statistics of the trailing windows",
	Action: wrapSimpleCmd(func(ctx context.Context, _ *cli.Context,
		client *restClient) (interface{}, error) {

		var resp []lem.WindowMetricResponse
		err := client.get(ctx, "/v1/metrics", nil, &resp)
		return resp, err
	}),
}

var remoteClearCommand = cli.Command{
	Name:  "clear",
	Usage: "clear a book with the engine of the daemon without settling it",
	Description: `
	Send the order book in the given YAML or JSON file to the market daemon
	and clear it with the daemon's engine. Nothing is settled or recorded.
	`,
	ArgsUsage: "book_file",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "curve",
			Usage: "include the merged curve in the result",
		},
	},
	Action: wrapSimpleCmd(func(ctx context.Context, cliCtx *cli.Context,
		client *restClient) (interface{}, error) {

		if cliCtx.NArg() != 1 {
			return nil, fmt.Errorf("book file missing")
		}
		body, err := os.ReadFile(cliCtx.Args().First())
		if err != nil {
			return nil, err
		}

		params := map[string]string{
			"curve": strconv.FormatBool(cliCtx.Bool("curve")),
		}

		resp := &lem.ClearingResponse{}
		err = client.post(
			ctx, "/v1/clear", params, "application/yaml", body, resp,
		)
		return resp, err
	}),
}
