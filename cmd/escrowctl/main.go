// Command escrowctl drives invoice escrows from a local wallet: deploy,
// fund, approve, auto-release, refund, dispute and watch.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command func(ctx context.Context, args []string, stdout, stderr io.Writer) int

var commands = map[string]command{
	"create":       runCreate,
	"fund":         runFund,
	"approve":      runApprove,
	"auto-release": runAutoRelease,
	"refund":       runRefund,
	"dispute":      runDispute,
	"status":       runStatus,
	"watch":        runWatch,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
	return cmd(ctx, args[1:], stdout, stderr)
}

func usage() string {
	return `Usage: escrowctl <subcommand> --invoice <id> [flags]

Subcommands:
  create        deploy the invoice escrow (creator) and attach it
  fund          fund the escrow, or one deliverable/milestone (payer)
  approve       approve a deliverable or milestone, or release the escrow (payer)
  auto-release  release after the review period
  refund        refund the payer (simple and yield escrows)
  dispute       open a dispute and submit the on-chain call when required
  status        print the escrow snapshot
  watch         print the escrow snapshot whenever it changes

Common flags:
  --api URL        API base URL (default $ESCROWCTL_API or http://localhost:3000)
  --keystore PATH  keystore file; otherwise $ESCROWCTL_PRIVATE_KEY is used`
}
