package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"ibtrade_go/internal/app"
	"ibtrade_go/internal/engine"
	"ibtrade_go/internal/service"
)

const usage = `Usage: ibtrade <command> [flags]

Commands:
  health    Connect to the gateway and report the next valid order id
  validate  Validate an order payload without submitting
  submit    Submit an order (use dry_run to encode without sending)
  watch     Wait for an order to reach a terminal status
  execute   Validate, submit and optionally watch in one call

The payload is a JSON object passed via -payload, or "-" to read stdin.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", "", "path to config.yaml (optional)")
	payload := flags.String("payload", "{}", `JSON payload, or "-" for stdin`)
	flags.Parse(os.Args[2:])

	raw, err := readPayload(*payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "payload: %v\n", err)
		os.Exit(2)
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		os.Exit(1)
	}

	svc := bootstrap.Service
	var result any
	ok := true

	switch command {
	case "health":
		var in service.HealthIn
		if err := decode(raw, &in); err != nil {
			fail(err)
		}
		out := svc.Health(in)
		result, ok = out, out.Connected
	case "validate":
		var in service.ValidateIn
		if err := decode(raw, &in); err != nil {
			fail(err)
		}
		out := svc.Validate(in)
		result, ok = out, out.Valid
	case "submit":
		var in service.SubmitIn
		if err := decode(raw, &in); err != nil {
			fail(err)
		}
		out := svc.Submit(in)
		result, ok = out, out.Submitted || out.DryRun
	case "watch":
		var in service.WatchIn
		if err := decode(raw, &in); err != nil {
			fail(err)
		}
		out := svc.Watch(in, logUpdate)
		result, ok = out, out.Error == ""
	case "execute":
		var in service.ExecuteIn
		if err := decode(raw, &in); err != nil {
			fail(err)
		}
		out := svc.Execute(in, logUpdate)
		result, ok = out, out.Ok
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func readPayload(arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(os.Stdin)
	}
	return []byte(arg), nil
}

func decode(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

func logUpdate(update engine.Update) {
	slog.Info("order update",
		slog.Int64("order_id", update.OrderID),
		slog.String("status", update.State.Status),
	)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "invalid payload: %v\n", err)
	os.Exit(2)
}
