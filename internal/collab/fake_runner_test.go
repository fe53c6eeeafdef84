package collab

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type call struct {
	Dir  string
	Name string
	Args []string
}

// fakeRunner records invocations. fail decides whether a call errors; hook
// runs before the result is returned and may create files.
type fakeRunner struct {
	mu    sync.Mutex
	calls []call

	fail    func(c call) bool
	hook    func(c call)
	missing map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	c := call{Dir: workDir, Name: name, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.hook != nil {
		f.hook(c)
	}
	if f.fail != nil && f.fail(c) {
		return []byte("fatal: simulated failure\n"), errors.New("exit status 1")
	}
	return []byte("ok\n"), nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// callsWith returns the calls whose args contain flag.
func (f *fakeRunner) callsWith(flag string) []call {
	var out []call
	for _, c := range f.Calls() {
		if strings.Contains(strings.Join(c.Args, " "), flag) {
			out = append(out, c)
		}
	}
	return out
}
