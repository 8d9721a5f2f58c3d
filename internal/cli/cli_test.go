package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/history"
	"github.com/matzehuels/oreflow/pkg/milp"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/pipeline"
	"github.com/matzehuels/oreflow/pkg/render"
)

const smallMap = "o..\n...\n"

// testEnv is a temp directory holding a map and a config file.
type testEnv struct {
	dir    string
	mapPth string
	config string
}

// newTestEnv writes smallMap and a config with the given extra TOML.
// Caching and history are off unless extra turns them on.
func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:    dir,
		mapPth: filepath.Join(dir, "small.txt"),
		config: filepath.Join(dir, "config.toml"),
	}
	if err := os.WriteFile(env.mapPth, []byte(smallMap), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := extra
	if !strings.Contains(extra, "[cache]") {
		cfg += "\n[cache]\nbackend = \"none\"\n"
	}
	if !strings.Contains(extra, "[history]") {
		cfg += "\n[history]\nenabled = false\n"
	}
	if err := os.WriteFile(env.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

// runCLI executes the root command and returns what it wrote to stdout.
func runCLI(t *testing.T, env testEnv, args ...string) (string, error) {
	t.Helper()
	prev := statusOut
	statusOut = io.Discard
	t.Cleanup(func() { statusOut = prev })

	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", env.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"canceled", context.Canceled, ExitInterrupted},
		{"wrapped canceled", fmt.Errorf("solve: %w", context.Canceled), ExitInterrupted},
		{"load error", errors.New(errors.ErrCodeNonRectangular, "row 2"), ExitError},
		{"config error", errors.New(errors.ErrCodeInvalidConfig, "bad"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"text"}},
		{"json", []string{"json"}},
		{"text, svg", []string{"text", "svg"}},
		{"dot,,json", []string{"dot", "json"}},
	}
	for _, tt := range tests {
		got := parseFormats(tt.in)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("parseFormats(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()
	want := []string{"solve", "model", "view", "serve", "history", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"verbose", "config"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func decodeLayout(t *testing.T, s string) render.Layout {
	t.Helper()
	var l render.Layout
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		t.Fatalf("decode layout: %v\n%s", err, s)
	}
	return l
}

func TestSolveCommandText(t *testing.T) {
	env := newTestEnv(t, "")
	out, err := runCLI(t, env, "solve", env.mapPth)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "MM") || !strings.HasPrefix(lines[1], "MM") {
		t.Errorf("machine not drawn at the origin:\n%s", out)
	}
}

func TestSolveCommandRates(t *testing.T) {
	env := newTestEnv(t, "")
	tests := []struct {
		args []string
		want float64
	}{
		{nil, 10},
		{[]string{"--max-belt-output", "2"}, 4},
		{[]string{"--max-machine-output", "1"}, 2},
	}
	for _, tt := range tests {
		args := append([]string{"solve", env.mapPth, "-f", "json"}, tt.args...)
		out, err := runCLI(t, env, args...)
		if err != nil {
			t.Fatalf("solve %v: %v", tt.args, err)
		}
		l := decodeLayout(t, out)
		if l.Export < tt.want-1e-6 || l.Export > tt.want+1e-6 {
			t.Errorf("solve %v: export = %v, want %v", tt.args, l.Export, tt.want)
		}
		if len(l.Machines) != 1 {
			t.Errorf("solve %v: %d machines, want 1", tt.args, len(l.Machines))
		}
	}
}

func TestSolveCommandConfigRates(t *testing.T) {
	env := newTestEnv(t, "[rates]\nmax_machine_output = 5.0\nmax_belt_output = 1.5\n")
	out, err := runCLI(t, env, "solve", env.mapPth, "-f", "json")
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if l := decodeLayout(t, out); l.Export < 3-1e-6 || l.Export > 3+1e-6 {
		t.Errorf("export = %v, want 3 from the config belt rate", l.Export)
	}

	// Flags win over the file.
	out, err = runCLI(t, env, "solve", env.mapPth, "-f", "json", "--max-belt-output", "2")
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if l := decodeLayout(t, out); l.Export < 4-1e-6 || l.Export > 4+1e-6 {
		t.Errorf("export = %v, want 4 from the flag", l.Export)
	}
}

func TestSolveCommandWritesFiles(t *testing.T) {
	env := newTestEnv(t, "")
	base := filepath.Join(env.dir, "out", "small.txt")
	out, err := runCLI(t, env, "solve", env.mapPth, "-f", "text,json,dot", "-o", base)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if out != "" {
		t.Errorf("stdout should be empty when writing files, got %q", out)
	}
	for _, name := range []string{"small.txt", "small.json", "small.dot"} {
		data, err := os.ReadFile(filepath.Join(env.dir, "out", name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestSolveCommandErrors(t *testing.T) {
	env := newTestEnv(t, "")
	ragged := filepath.Join(env.dir, "ragged.txt")
	if err := os.WriteFile(ragged, []byte("ooo\noo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	badConfig := filepath.Join(env.dir, "bad.toml")
	if err := os.WriteFile(badConfig, []byte("[rates]\nspeed = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		env  testEnv
		args []string
		code errors.Code
	}{
		{"non-rectangular", env, []string{"solve", ragged}, errors.ErrCodeNonRectangular},
		{"missing map", env, []string{"solve", filepath.Join(env.dir, "nope.txt")}, errors.ErrCodeFileNotFound},
		{"bad format", env, []string{"solve", env.mapPth, "-f", "png"}, errors.ErrCodeInvalidFormat},
		{"bad rate", env, []string{"solve", env.mapPth, "--max-belt-output=-1"}, errors.ErrCodeInvalidConfig},
		{"bad config", testEnv{config: badConfig}, []string{"solve", env.mapPth}, errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.env, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
			if ExitCode(err) != ExitError {
				t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitError)
			}
		})
	}
}

func TestReportNonOptimal(t *testing.T) {
	prev := statusOut
	statusOut = io.Discard
	defer func() { statusOut = prev }()

	var buf bytes.Buffer
	res := &pipeline.Result{Solution: &milp.Solution{Status: milp.StatusTimeout}}
	if err := reportNonOptimal(&buf, res); err != nil {
		t.Fatal(err)
	}
	want := pipeline.NoOptimalMessage + " (status: timeout)\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestModelCommand(t *testing.T) {
	env := newTestEnv(t, "")
	out, err := runCLI(t, env, "model", env.mapPth, "--json")
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	var st model.Stats
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if st.Width != 3 || st.Height != 2 {
		t.Errorf("size = %dx%d, want 3x2", st.Width, st.Height)
	}
	if st.Machines != 2 {
		t.Errorf("machines = %d, want 2 anchors", st.Machines)
	}
	if st.Variables == 0 || st.Constraints == 0 {
		t.Errorf("empty model: %+v", st)
	}

	out, err = runCLI(t, env, "model", env.mapPth)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	for _, want := range []string{"variables", "constraints", "3x2"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	env := newTestEnv(t, fmt.Sprintf("[history]\nenabled = true\npath = %q\n", dbPath))

	out, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if out != "" {
		t.Errorf("empty history printed %q", out)
	}

	if _, err := runCLI(t, env, "solve", env.mapPth); err != nil {
		t.Fatalf("solve: %v", err)
	}
	out, err = runCLI(t, env, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "optimal") || !strings.Contains(out, "small.txt") {
		t.Errorf("history table missing the run:\n%s", out)
	}

	store, err := history.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := store.List(context.Background(), 1)
	store.Close()
	if err != nil || len(runs) != 1 {
		t.Fatalf("List = %v, %v", runs, err)
	}

	out, err = runCLI(t, env, "history", "show", shortID(runs[0].ID))
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	var run history.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("decode run: %v\n%s", err, out)
	}
	if run.ID != runs[0].ID || run.Objective != 10 {
		t.Errorf("show returned %+v", run)
	}

	if _, err := runCLI(t, env, "history", "show", "zzzz"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown run: err = %v, want NOT_FOUND", err)
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return n
}

func TestCacheCommands(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	env := newTestEnv(t, fmt.Sprintf("[cache]\nbackend = \"file\"\ndir = %q\n", cacheDir))

	out, err := runCLI(t, env, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if strings.TrimSpace(out) != cacheDir {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(out), cacheDir)
	}

	if _, err := runCLI(t, env, "solve", env.mapPth); err != nil {
		t.Fatalf("solve: %v", err)
	}
	if countFiles(t, cacheDir) == 0 {
		t.Fatal("solve did not populate the cache")
	}

	if _, err := runCLI(t, env, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if n := countFiles(t, cacheDir); n != 0 {
		t.Errorf("%d files left after clear", n)
	}
}

func TestCompletionCommand(t *testing.T) {
	env := newTestEnv(t, "")
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := runCLI(t, env, "completion", shell)
		if err != nil {
			t.Errorf("completion %s: %v", shell, err)
			continue
		}
		if !strings.Contains(out, "oreflow") {
			t.Errorf("completion %s does not mention oreflow", shell)
		}
	}
	if _, err := runCLI(t, env, "completion", "tcsh"); err == nil {
		t.Error("completion tcsh should fail")
	}
}
