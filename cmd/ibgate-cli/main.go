package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"ibgate/pkg/ibgate"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: ibgate-cli [-server URL] <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version       Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  connect       Connect a client session\n")
	fmt.Fprintf(os.Stderr, "  disconnect    Disconnect a client session\n")
	fmt.Fprintf(os.Stderr, "  accounts      List account ids for a session\n")
	fmt.Fprintf(os.Stderr, "  detail        Show the full account snapshot\n")
	fmt.Fprintf(os.Stderr, "  positions     List open positions\n")
	fmt.Fprintf(os.Stderr, "  orders        List working orders\n")
	fmt.Fprintf(os.Stderr, "  order         Place a bracket order\n")
	fmt.Fprintf(os.Stderr, "  flatten       Close a symbol's position and orders\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func main() {
	serverURL := flag.String("server", "http://127.0.0.1:8000", "ibgate-server base URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	client := ibgate.NewClient(*serverURL)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch args[0] {
	case "version":
		fmt.Printf("ibgate-cli %s\n", version)

	case "connect":
		fs := flag.NewFlagSet("connect", flag.ExitOnError)
		host := fs.String("host", "127.0.0.1", "venue gateway host")
		port := fs.Int("port", 7497, "venue gateway port")
		clientID := fs.Int("client", 1, "client id")
		fs.Parse(args[1:])

		data, err := client.Connect(ctx, *host, *port, *clientID)
		if err != nil {
			fatal(err)
		}
		printJSON(data)

	case "disconnect":
		fs := flag.NewFlagSet("disconnect", flag.ExitOnError)
		clientID := fs.Int("client", 1, "client id")
		fs.Parse(args[1:])

		if err := client.Disconnect(ctx, *clientID); err != nil {
			fatal(err)
		}
		fmt.Printf("client %d disconnected\n", *clientID)

	case "accounts":
		fs := flag.NewFlagSet("accounts", flag.ExitOnError)
		clientID := fs.Int("client", 1, "client id")
		fs.Parse(args[1:])

		accounts, err := client.Accounts(ctx, *clientID)
		if err != nil {
			fatal(err)
		}
		printJSON(accounts)

	case "detail":
		fs := flag.NewFlagSet("detail", flag.ExitOnError)
		clientID := fs.Int("client", 1, "client id")
		fs.Parse(args[1:])

		detail, err := client.AccountDetail(ctx, *clientID)
		if err != nil {
			fatal(err)
		}
		printJSON(detail)

	case "positions":
		fs := flag.NewFlagSet("positions", flag.ExitOnError)
		clientID := fs.Int("client", 1, "client id")
		fs.Parse(args[1:])

		positions, err := client.Positions(ctx, *clientID)
		if err != nil {
			fatal(err)
		}
		printJSON(positions)

	case "orders":
		fs := flag.NewFlagSet("orders", flag.ExitOnError)
		clientID := fs.Int("client", 1, "client id")
		fs.Parse(args[1:])

		orders, err := client.Orders(ctx, *clientID)
		if err != nil {
			fatal(err)
		}
		printJSON(orders)

	case "order":
		fs := flag.NewFlagSet("order", flag.ExitOnError)
		clientID := fs.Int("client", 1, "client id")
		symbol := fs.String("symbol", "", "symbol (required)")
		exchange := fs.String("exchange", "SMART", "exchange")
		currency := fs.String("currency", "USD", "currency")
		qty := fs.Float64("qty", 0, "position quantity, negative to short (required)")
		stop := fs.Float64("stop", 0, "stop price")
		limit := fs.Float64("limit", 0, "target limit price")
		tif := fs.String("tif", "GTC", "time in force")
		fs.Parse(args[1:])

		if *symbol == "" || *qty == 0 {
			fs.Usage()
			os.Exit(1)
		}

		res, err := client.SendOrder(ctx, ibgate.OrderRequest{
			ClientID: *clientID, Symbol: *symbol, Exchange: *exchange, Currency: *currency,
			PositionQty: *qty, StopPrice: *stop, LimitPrice: *limit, TIF: *tif,
		})
		if res != nil && len(res.Steps) > 0 {
			printJSON(res.Steps)
		}
		if err != nil {
			fatal(err)
		}

	case "flatten":
		fs := flag.NewFlagSet("flatten", flag.ExitOnError)
		clientID := fs.Int("client", 1, "client id")
		symbol := fs.String("symbol", "", "symbol (required)")
		exchange := fs.String("exchange", "SMART", "exchange")
		currency := fs.String("currency", "USD", "currency")
		fs.Parse(args[1:])

		if *symbol == "" {
			fs.Usage()
			os.Exit(1)
		}

		res, err := client.Flatten(ctx, ibgate.FlattenRequest{
			ClientID: *clientID, Symbol: *symbol, Exchange: *exchange, Currency: *currency,
		})
		if res != nil && len(res.Steps) > 0 {
			printJSON(res.Steps)
		}
		if err != nil {
			fatal(err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage()
		os.Exit(1)
	}
}
