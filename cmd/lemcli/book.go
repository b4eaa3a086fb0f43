package main

import (
	"fmt"

	"github.com/gridmarket/lem"
	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/urfave/cli"
)

// engineFlags select the policies of a local clearing engine.
var engineFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "rule",
		Value: matching.PayAsClearRule.String(),
		Usage: "pricing rule: pay_as_clear, pay_as_bid or mcafee",
	},
	cli.StringFlag{
		Name:  "tiebreak",
		Value: matching.TieBreakSubmission.String(),
		Usage: "ordering of equal prices: submission or participant",
	},
	cli.StringFlag{
		Name:  "priceside",
		Value: matching.PriceFromBid.String(),
		Usage: "side that defines the uniform price: bid or offer",
	},
	cli.StringFlag{
		Name:  "boundary",
		Value: matching.BoundaryPayAsClear.String(),
		Usage: "McAfee boundary policy: pay_as_clear, no_trade or reject",
	},
	cli.StringFlag{
		Name:  "selftrade",
		Value: matching.SelfTradeFilter.String(),
		Usage: "self trade policy: filter or reject",
	},
	cli.Float64Flag{
		Name:  "tolerance",
		Usage: "maximum turnover drift, 0 for the default",
	},
	cli.BoolFlag{
		Name:  "strict",
		Usage: "fail instead of warn if the drift exceeds the tolerance",
	},
}

var bookCommands = []cli.Command{
	{
		Name:     "clear",
		Usage:    "clear an order book locally",
		Category: "Book",
		Description: `
	Clear the order book in the given YAML or JSON file with a local engine
	and print the result. Every order is a [price, quantity, participant]
	triple listed under bids or offers.
	`,
		ArgsUsage: "book_file",
		Flags: append([]cli.Flag{
			cli.BoolFlag{
				Name:  "curve",
				Usage: "include the merged curve in the result",
			},
		}, engineFlags...),
		Action: clearBook,
	},
	{
		Name:      "curve",
		Usage:     "print the merged demand and supply curve of a book",
		Category:  "Book",
		ArgsUsage: "book_file",
		Flags:     engineFlags,
		Action:    printCurve,
	},
}

func clearBook(ctx *cli.Context) error {
	engine, book, err := loadBook(ctx)
	if err != nil {
		return err
	}

	result, err := engine.Clear(book.Bids, book.Offers)
	if err != nil {
		return err
	}

	printRespJSON(lem.NewClearingResponse(result, ctx.Bool("curve")))
	return nil
}

func printCurve(ctx *cli.Context) error {
	engine, book, err := loadBook(ctx)
	if err != nil {
		return err
	}

	if err := order.Validate(book.Bids, book.Offers); err != nil {
		return err
	}
	segments, err := engine.Curve(book.Bids, book.Offers)
	if err != nil {
		return err
	}

	printRespJSON(lem.NewSegmentResponses(segments))
	return nil
}

// loadBook reads the book file argument and creates the engine selected by
// the flags.
func loadBook(ctx *cli.Context) (*matching.Engine, *order.Book, error) {
	if ctx.NArg() != 1 {
		return nil, nil, fmt.Errorf("book file missing")
	}

	matchingCfg := &lem.MatchingConfig{
		Rule:                 ctx.String("rule"),
		TieBreak:             ctx.String("tiebreak"),
		PriceSide:            ctx.String("priceside"),
		Boundary:             ctx.String("boundary"),
		SelfTrade:            ctx.String("selftrade"),
		Tolerance:            ctx.Float64("tolerance"),
		StrictReconciliation: ctx.Bool("strict"),
	}
	engineCfg, err := matchingCfg.EngineConfig()
	if err != nil {
		return nil, nil, err
	}
	engine, err := matching.NewEngine(engineCfg)
	if err != nil {
		return nil, nil, err
	}

	book, err := order.ReadBookFile(ctx.Args().First())
	if err != nil {
		return nil, nil, err
	}

	return engine, book, nil
}
