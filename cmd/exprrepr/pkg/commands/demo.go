package commands

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/spf13/cobra"

	"github.com/orizon-lang/exprrepr/internal/astbridge"
	"github.com/orizon-lang/exprrepr/internal/cli"
	"github.com/orizon-lang/exprrepr/internal/repr"
	"github.com/orizon-lang/exprrepr/internal/sample"
)

// NewDemoCommand converts, rebuilds and evaluates the sample expressions.
func NewDemoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "demo [example...]",
		Short: "Round-trip the sample expressions and evaluate the rebuilt trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := app.Environment()
			if err != nil {
				return err
			}
			examples, err := sample.Examples()
			if err != nil {
				return err
			}
			opts := []astbridge.Option{
				astbridge.WithLogger(app.Logr()),
				astbridge.WithMaxDepth(app.MaxDepth()),
			}

			fmt.Fprintln(app.Out, cli.Highlight("%-10s %-6s %-16s %s", "EXAMPLE", "NODES", "HASH", "REPRESENTATION"))
			failed := 0
			for _, ex := range examples {
				if len(args) > 0 && !slices.Contains(args, ex.Name) {
					continue
				}
				node, err := astbridge.ToRepresentation(ex.Lambda, opts...)
				if err != nil {
					return fmt.Errorf("%s: %w", ex.Name, err)
				}
				closure, err := astbridge.FromRepresentation(node, cat, opts...)
				if err != nil {
					return fmt.Errorf("%s: %w", ex.Name, err)
				}
				got, err := closure.Call(ex.Args...)
				ok := err == nil && reflect.DeepEqual(got, ex.Want)
				if !ok {
					failed++
				}
				fmt.Fprintf(app.Out, "%-10s %-6d %016x %s\n", ex.Name, len(repr.AllNodes(node)), repr.Hash(node), node)
				fmt.Fprintf(app.Out, "%-10s %v -> %v %s\n", "", ex.Args, got, cli.Status(ok))
				if err != nil {
					app.Log.Error("evaluation failed", "example", ex.Name, "error", err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d example(s) failed", failed)
			}
			return nil
		},
	}
}

// NewDumpCommand writes the representation of one sample expression.
func NewDumpCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <example>",
		Short: "Print the encoded representation of a sample expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := app.Environment()
			if err != nil {
				return err
			}
			ex, err := sample.ExampleNamed(args[0])
			if err != nil {
				return err
			}
			node, err := astbridge.ToRepresentation(ex.Lambda,
				astbridge.WithLogger(app.Logr()),
				astbridge.WithMaxDepth(app.MaxDepth()))
			if err != nil {
				return err
			}
			return writeRepresentation(app.Out, c, node, app.output)
		},
	}
}
