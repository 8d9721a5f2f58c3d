package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/oreflow/pkg/pipeline"
	"github.com/matzehuels/oreflow/pkg/render"
)

// formatExt maps output formats to file extensions.
var formatExt = map[string]string{
	pipeline.FormatText: ".txt",
	pipeline.FormatJSON: ".json",
	pipeline.FormatDOT:  ".dot",
	pipeline.FormatSVG:  ".svg",
}

// basePath strips a known format extension from output, so that
// "layout.svg" and "layout" both expand to "layout.<ext>" per format.
func basePath(output string) string {
	ext := filepath.Ext(output)
	for _, known := range formatExt {
		if strings.EqualFold(ext, known) {
			return strings.TrimSuffix(output, ext)
		}
	}
	return output
}

// outputPaths returns the file each format is written to. A single format
// goes to output as given; several formats share output's base name.
func outputPaths(output string, formats []string) map[string]string {
	paths := make(map[string]string, len(formats))
	if len(formats) == 1 {
		paths[formats[0]] = output
		return paths
	}
	base := basePath(output)
	for _, f := range formats {
		paths[f] = base + formatExt[f]
	}
	return paths
}

// writeArtifacts writes each artifact to its output file in format order
// and returns the paths written.
func writeArtifacts(output string, formats []string, artifacts map[string][]byte) ([]string, error) {
	paths := outputPaths(output, formats)
	written := make([]string, 0, len(formats))
	for _, f := range formats {
		path := paths[f]
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return written, fmt.Errorf("create output dir: %w", err)
			}
		}
		if err := os.WriteFile(path, artifacts[f], 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// printArtifacts writes artifacts to out in format order. Text goes through
// render.Styled when out is a terminal.
func printArtifacts(out io.Writer, res *pipeline.Result, opts pipeline.Options) error {
	styled := false
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		styled = true
	}
	for _, f := range opts.Formats {
		data := res.Artifacts[f]
		if f == pipeline.FormatText && styled && res.Layout != nil {
			data = []byte(render.Styled(res.Layout, opts.Glyphs))
		}
		if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
			data = append(data[:len(data):len(data)], '\n')
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	return nil
}
