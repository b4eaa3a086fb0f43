package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gridmarket/lem/build"
	"github.com/urfave/cli"
)

type simpleCmd func(ctx context.Context, cliCtx *cli.Context,
	client *restClient) (interface{}, error)

func wrapSimpleCmd(exec simpleCmd) func(ctx *cli.Context) error {
	return func(ctx *cli.Context) error {
		client := newRestClient(ctx.GlobalString("restserver"))

		resp, err := exec(context.Background(), ctx, client)
		if err != nil {
			return err
		}

		printRespJSON(resp)
		return nil
	}
}

func printRespJSON(resp interface{}) {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Println(string(jsonBytes))
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[lemcli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()

	app.Version = build.Version()
	app.Name = "lemcli"
	app.Usage = "clear order books and query the local energy market"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "restserver",
			Value: "http://localhost:8480",
			Usage: "marketd REST API address",
		},
	}
	app.Commands = append(app.Commands, bookCommands...)
	app.Commands = append(app.Commands, marketCommands...)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}
