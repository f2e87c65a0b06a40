package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/orizon-lang/exprrepr/internal/codec"
	"github.com/orizon-lang/exprrepr/internal/repr"
)

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// readRepresentation decodes a JSON or YAML document chosen by extension.
func readRepresentation(c *codec.Codec, path string) (repr.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return c.UnmarshalYAML(data)
	}
	return c.Unmarshal(data)
}

func writeRepresentation(w io.Writer, c *codec.Codec, n repr.Node, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json", "":
		data, err = c.Marshal(n)
	case "yaml":
		data, err = c.MarshalYAML(n)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
