package commands

import (
	"github.com/spf13/cobra"

	"github.com/orizon-lang/exprrepr/internal/watch"
)

// NewWatchCommand re-checks representation files as they change.
func NewWatchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-check representation files in a directory whenever they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.Config.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			cat, c, err := app.Environment()
			if err != nil {
				return err
			}
			w, err := watch.New(watch.Representations)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Add(dir); err != nil {
				return err
			}
			app.Log.Info("watching", "dir", dir)

			ctx := cmd.Context()
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-w.Events():
					if !ok {
						return nil
					}
					if ev.Op&(watch.OpCreate|watch.OpWrite) == 0 {
						continue
					}
					app.Log.Debug("change", "path", ev.Path, "op", ev.Op.String())
					app.printCheck(app.checkFile(cat, c, ev.Path))
				case err := <-w.Errors():
					app.Log.Warn("watch error", "error", err)
				}
			}
		},
	}
}
