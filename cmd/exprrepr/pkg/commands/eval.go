package commands

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/orizon-lang/exprrepr/internal/astbridge"
	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/remote"
)

// NewEvalCommand rebuilds a representation file and calls it.
func NewEvalCommand(app *App) *cobra.Command {
	var (
		remoteURL string
		insecure  bool
	)
	cmd := &cobra.Command{
		Use:   "eval <file> [json-arg...]",
		Short: "Rebuild a representation file and call it with JSON arguments",
		Long: "Rebuild a representation file and call it with JSON arguments.\n\n" +
			"With --remote the lambda is posted to an exprrepr evaluation server over HTTP/3.",
		Example: `  exprrepr eval output.json '"hello"'
  exprrepr eval --remote https://127.0.0.1:4433 --insecure join.yaml '"ab"'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, c, err := app.Environment()
			if err != nil {
				return err
			}
			node, err := readRepresentation(c, args[0])
			if err != nil {
				return err
			}
			raw := make([]json.RawMessage, len(args)-1)
			for i, a := range args[1:] {
				if !json.Valid([]byte(a)) {
					return fmt.Errorf("argument %d is not valid JSON: %s", i, a)
				}
				raw[i] = json.RawMessage(a)
			}

			var result json.RawMessage
			if remoteURL != "" {
				timeout, err := app.Config.Timeout()
				if err != nil {
					return err
				}
				hc := remote.HTTP3Client(&tls.Config{InsecureSkipVerify: insecure, MinVersion: tls.VersionTLS13}, timeout)
				client := remote.NewClient(remoteURL, hc, c)
				defer client.Close()
				callArgs := make([]any, len(raw))
				for i := range raw {
					callArgs[i] = raw[i]
				}
				if err := client.Eval(cmd.Context(), node, &result, callArgs...); err != nil {
					return err
				}
			} else {
				closure, err := astbridge.FromRepresentation(node, cat,
					astbridge.WithLogger(app.Logr()),
					astbridge.WithMaxDepth(app.MaxDepth()))
				if err != nil {
					return err
				}
				ft := closure.Lambda().Type()
				if len(raw) != ft.NumIn() {
					return &rerrors.ArityMismatchError{Context: "eval arguments", Expected: ft.NumIn(), Actual: len(raw)}
				}
				callArgs := make([]any, len(raw))
				for i, r := range raw {
					v := reflect.New(ft.In(i))
					if err := json.Unmarshal(r, v.Interface()); err != nil {
						return fmt.Errorf("argument %d as %s: %w", i, ft.In(i), err)
					}
					callArgs[i] = v.Elem().Interface()
				}
				out, err := closure.Call(callArgs...)
				if err != nil {
					return err
				}
				if result, err = json.Marshal(out); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(app.Out, string(result))
			return err
		},
	}
	cmd.Flags().StringVar(&remoteURL, "remote", "", "evaluation server base URL")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification for --remote")
	return cmd
}
