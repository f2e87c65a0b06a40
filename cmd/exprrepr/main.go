// Command exprrepr converts expression trees to and from their serializable
// representation, checks representation files and evaluates them locally or
// against an HTTP/3 evaluation server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/orizon-lang/exprrepr/cmd/exprrepr/pkg/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
