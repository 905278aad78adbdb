package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/qgrade/internal/testutil"
)

func newPythonLoader(t *testing.T, timeout time.Duration) *PythonLoader {
	t.Helper()
	python := testutil.RequirePython(t)
	l, err := NewPythonLoader(python, timeout)
	require.NoError(t, err)
	return l
}

const pythonSolution = `from dataclasses import dataclass

print("top-level output goes to stderr")


class EmailService:
    def __init__(self):
        self.sent = []

    def send_welcome_email(self, user):
        self.sent.append(user)


class UserService:
    def __init__(self, validator, repository, email_service):
        self.validator = validator
        self.repository = repository
        self.email_service = email_service


@dataclass
class Money:
    amount: float
    currency: str = "USD"


async def fetch():
    return 1
`

func TestPythonLoader_Load(t *testing.T) {
	l := newPythonLoader(t, 0)

	mod, err := l.Load(context.Background(), writeSolution(t, pythonSolution))
	require.NoError(t, err)

	assert.Equal(t, ModuleName, mod.Name)
	assert.Contains(t, mod.Dir(), "__builtins__")
	assert.Contains(t, mod.Dir(), "dataclass")

	inst, err := mod.Instantiate("EmailService")
	require.NoError(t, err)
	assert.True(t, inst.HasAttr("sent"))
	assert.True(t, inst.HasAttr("send_welcome_email"))

	svc, err := mod.Get("UserService")
	require.NoError(t, err)
	assert.Equal(t, []string{"self", "validator", "repository", "email_service"}, svc.InitParams)
	assert.Equal(t, 4, svc.InitLocals)
	assert.Contains(t, svc.Source, "class UserService")

	_, err = mod.Instantiate("UserService")
	var exc *Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "TypeError", exc.Type)

	money, err := mod.Get("Money")
	require.NoError(t, err)
	assert.Equal(t, 1, money.InitRequired)
	assert.True(t, money.HasAttr("currency"))

	fetch, err := mod.Get("fetch")
	require.NoError(t, err)
	assert.True(t, fetch.Coroutine)
}

func TestPythonLoader_ImportError(t *testing.T) {
	l := newPythonLoader(t, 0)

	_, err := l.Load(context.Background(), writeSolution(t, "raise ValueError('boom')\n"))
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ReasonImport, loadErr.Reason)
	assert.Equal(t, "ValueError: boom", loadErr.Message)
}

func TestPythonLoader_Timeout(t *testing.T) {
	l := newPythonLoader(t, 500*time.Millisecond)

	_, err := l.Load(context.Background(), writeSolution(t, "import time\ntime.sleep(30)\n"))
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ReasonTimeout, loadErr.Reason)
}

func TestPythonLoader_MissingInterpreter(t *testing.T) {
	l, err := NewPythonLoader("qgrade-no-such-python", time.Second)
	require.NoError(t, err)

	_, err = l.Load(context.Background(), writeSolution(t, "x = 1\n"))
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ReasonProtocol, loadErr.Reason)
}

func TestPythonLoader_Decode(t *testing.T) {
	l, err := NewPythonLoader("", 0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		data  string
		valid bool
	}{
		{"module", `{"module": {"name": "m", "file": "m.py", "members": [{"name": "x", "kind": "value", "init_required": 0, "init_locals": -1}]}}`, true},
		{"error", `{"error": {"type": "ImportError", "message": "no module"}}`, true},
		{"not json", `hello`, false},
		{"neither", `{"other": 1}`, false},
		{"bad kind", `{"module": {"name": "m", "file": "m.py", "members": [{"name": "x", "kind": "thing", "init_required": 0, "init_locals": -1}]}}`, false},
		{"missing members", `{"module": {"name": "m", "file": "m.py"}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, lerr := l.decode("m.py", []byte(tt.data))
			if tt.valid {
				assert.Nil(t, lerr)
				assert.NotNil(t, env)
				return
			}
			require.NotNil(t, lerr)
			assert.Equal(t, ReasonProtocol, lerr.Reason)
		})
	}
}
