package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/exprrepr/internal/astbridge"
	"github.com/orizon-lang/exprrepr/internal/cli"
	"github.com/orizon-lang/exprrepr/internal/codec"
	"github.com/orizon-lang/exprrepr/internal/descriptor"
	"github.com/orizon-lang/exprrepr/internal/repr"
)

type checkResult struct {
	path  string
	nodes int
	err   error
}

// checkFile decodes path, validates parameter scoping and rebuilds the tree
// against cat.
func (a *App) checkFile(cat descriptor.Catalog, c *codec.Codec, path string) checkResult {
	res := checkResult{path: path}
	node, err := readRepresentation(c, path)
	if err != nil {
		res.err = err
		return res
	}
	res.nodes = len(repr.AllNodes(node))
	if err := repr.Validate(node); err != nil {
		res.err = err
		return res
	}
	_, res.err = astbridge.Rebuild(node, cat,
		astbridge.WithLogger(a.Logr().WithValues("file", path)),
		astbridge.WithMaxDepth(a.MaxDepth()))
	return res
}

func (a *App) printCheck(r checkResult) {
	if r.err != nil {
		fmt.Fprintf(a.Out, "%s %s: %v\n", cli.Status(false), r.path, r.err)
		return
	}
	fmt.Fprintf(a.Out, "%s %s (%d nodes)\n", cli.Status(true), r.path, r.nodes)
}

// checkFiles checks paths concurrently and reports results in input order.
func (a *App) checkFiles(ctx context.Context, paths []string) ([]checkResult, error) {
	cat, c, err := a.Environment()
	if err != nil {
		return nil, err
	}
	results := make([]checkResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.checkFile(cat, c, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// NewCheckCommand decodes and rebuilds representation files.
func NewCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Decode, validate and rebuild representation files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := app.checkFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				app.printCheck(r)
				if r.err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
			}
			return nil
		},
	}
}
