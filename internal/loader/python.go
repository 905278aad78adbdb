package loader

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sourcegraph/conc/panics"
)

//go:embed introspect.py
var introspectScript string

//go:embed envelope.schema.json
var envelopeSchema []byte

const envelopeSchemaURL = "envelope.schema.json"

// DefaultLoadTimeout bounds a single python load
const DefaultLoadTimeout = 30 * time.Second

// syntaxErrors are exception types reported as ReasonSyntax
var syntaxErrors = map[string]bool{
	"SyntaxError":      true,
	"IndentationError": true,
	"TabError":         true,
}

type envelope struct {
	Module *struct {
		Name    string   `json:"name"`
		File    string   `json:"file"`
		Members []Member `json:"members"`
	} `json:"module"`
	Error *struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		Traceback string `json:"traceback"`
	} `json:"error"`
}

// PythonLoader executes the solution in a python3 subprocess and reads back a
// JSON description of its members
type PythonLoader struct {
	python  string
	timeout time.Duration
	schema  *jsonschema.Schema
}

// NewPythonLoader creates a loader using the given interpreter
func NewPythonLoader(python string, timeout time.Duration) (*PythonLoader, error) {
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to read envelope schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add envelope schema: %w", err)
	}
	schema, err := c.Compile(envelopeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}

	return &PythonLoader{
		python:  python,
		timeout: timeout,
		schema:  schema,
	}, nil
}

// Load runs the solution's top-level code and snapshots the module
func (l *PythonLoader) Load(ctx context.Context, path string) (*Module, error) {
	var (
		mod     *Module
		loadErr *LoadError
		pc      panics.Catcher
	)
	pc.Try(func() {
		mod, loadErr = l.load(ctx, path)
	})
	if r := pc.Recovered(); r != nil {
		loadErr = loadErrorf(path, ReasonProtocol, r.AsError(), "loader panic: %v", r.Value)
	}

	if loadErr != nil {
		log.Warn().
			Str("path", path).
			Str("reason", string(loadErr.Reason)).
			Str("error", loadErr.Message).
			Msg("failed to load solution")
		return nil, loadErr
	}
	return mod, nil
}

func (l *PythonLoader) load(ctx context.Context, path string) (*Module, *LoadError) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, loadErrorf(path, ReasonRead, err, "%v", err)
	}

	source, lerr := readSource(path, abs)
	if lerr != nil {
		return nil, lerr
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.python, "-c", introspectScript, abs)
	cmd.Dir = filepath.Dir(abs)
	cmd.Env = append(os.Environ(), "PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	log.Debug().Str("python", l.python).Str("file", abs).Msg("loading solution")

	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, loadErrorf(path, ReasonTimeout, ctx.Err(), "module load exceeded %s", l.timeout)
	}
	if runErr != nil && stdout.Len() == 0 {
		if errors.Is(runErr, exec.ErrNotFound) {
			return nil, loadErrorf(path, ReasonProtocol, runErr, "python interpreter %q not found", l.python)
		}
		return nil, loadErrorf(path, ReasonProtocol, runErr, "interpreter failed: %v: %s", runErr, lastLine(stderr.String()))
	}

	env, lerr := l.decode(path, stdout.Bytes())
	if lerr != nil {
		return nil, lerr
	}

	if env.Error != nil {
		reason := ReasonImport
		if syntaxErrors[env.Error.Type] {
			reason = ReasonSyntax
		}
		log.Debug().Str("traceback", env.Error.Traceback).Msg("solution raised during import")
		return nil, loadErrorf(path, reason, &Exception{Type: env.Error.Type, Message: env.Error.Message},
			"%s: %s", env.Error.Type, env.Error.Message)
	}

	mod := NewModule(env.Module.Name, abs, source, env.Module.Members)

	log.Info().
		Str("file", abs).
		Int("members", len(env.Module.Members)).
		Dur("duration", time.Since(start)).
		Msg("solution loaded")

	return mod, nil
}

// decode validates the envelope against the schema before unmarshalling it
func (l *PythonLoader) decode(path string, data []byte) (*envelope, *LoadError) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, loadErrorf(path, ReasonProtocol, err, "malformed loader output: %v", err)
	}
	if err := l.schema.Validate(inst); err != nil {
		return nil, loadErrorf(path, ReasonProtocol, err, "invalid loader output: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, loadErrorf(path, ReasonProtocol, err, "failed to decode loader output: %v", err)
	}
	return &env, nil
}

func readSource(path, abs string) ([]byte, *LoadError) {
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, loadErrorf(path, ReasonNotFound, err, "No such file or directory: '%s'", path)
		}
		return nil, loadErrorf(path, ReasonRead, err, "%v", err)
	}
	if info.IsDir() {
		return nil, loadErrorf(path, ReasonRead, nil, "Is a directory: '%s'", path)
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, loadErrorf(path, ReasonRead, err, "%v", err)
	}
	return source, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
