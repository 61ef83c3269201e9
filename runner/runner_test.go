//go:build linux || darwin

package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/criyle/code-runner/envexec"
	"github.com/criyle/code-runner/language"
	"github.com/criyle/code-runner/workspace"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	envexec.Reexec()
	os.Exit(m.Run())
}

const shebang = "#!/bin/sh\n"

var testSpecs = []language.Spec{
	{
		ID:         "sh",
		Name:       "Shell",
		SourceFile: "main.sh",
		Run:        language.Template{"/bin/sh", language.SlotSource},
	},
	{
		ID:           "shc",
		Name:         "Checked Shell",
		SourceFile:   "main.sh",
		ArtifactFile: "prog",
		Compile: language.Template{"/bin/sh", "-c",
			"/bin/sh -n " + language.SlotSource + " && cp " + language.SlotSource + " " + language.SlotArtifact + " && chmod +x " + language.SlotArtifact},
		Run: language.Template{language.SlotArtifact},
	},
	{
		ID:           "slowc",
		Name:         "Slow Build",
		SourceFile:   "main.sh",
		ArtifactFile: "prog",
		Compile:      language.Template{"/bin/sh", "-c", "sleep 30"},
		Run:          language.Template{language.SlotArtifact},
	},
	{
		ID:         "missing",
		Name:       "Missing Toolchain",
		SourceFile: "main.txt",
		Run:        language.Template{"code-runner-no-such-interpreter", language.SlotSource},
	},
}

func newTestRunner(t *testing.T, conf Config) (*Runner, string) {
	t.Helper()
	reg, err := language.NewRegistry(testSpecs, map[string]string{"shell": "sh"})
	if err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	logger := zaptest.NewLogger(t)
	if conf.Registry == nil {
		conf.Registry = reg
	}
	if conf.Workspace == nil {
		conf.Workspace = workspace.NewManager(root, workspace.WithLogger(logger))
	}
	conf.Logger = logger
	return New(conf), root
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace leaked: %v", entries)
	}
}

func TestRunHelloWorld(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: "sh", Source: "echo hello"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "hello\n" || res.Stderr != "" {
		t.Errorf("stdout = %q, stderr = %q", res.Stdout, res.Stderr)
	}
	if res.Message != MessageFinished || res.Failed || res.ExitStatus != 0 {
		t.Errorf("result = %v", res)
	}
	assertEmptyDir(t, root)
}

func TestRunAlias(t *testing.T) {
	r, _ := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: " SHELL ", Source: "echo ok"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "ok\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestRunStdin(t *testing.T) {
	r, _ := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{
		Language: "sh",
		Source:   "read a b; echo $((a + b))",
		Stdin:    "3 4\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "7\n" || res.Failed {
		t.Errorf("result = %v, stdout = %q", res, res.Stdout)
	}
}

func TestRunStderrMarksFailed(t *testing.T) {
	r, _ := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: "sh", Source: "echo out; echo oops >&2"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Failed || res.Message != MessageFinished {
		t.Errorf("result = %v", res)
	}
	if res.Stdout != "out\n" || res.Stderr != "oops\n" {
		t.Errorf("stdout = %q, stderr = %q", res.Stdout, res.Stderr)
	}
}

func TestRunNonZeroExitWithoutStderr(t *testing.T) {
	r, _ := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: "sh", Source: "echo partial; exit 2"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed || res.ExitStatus != 2 || res.Stdout != "partial\n" {
		t.Errorf("result = %v", res)
	}
}

func TestRunSignalled(t *testing.T) {
	r, _ := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: "sh", Source: "kill -SEGV $$"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Failed || !strings.Contains(res.Stderr, MarkerSignalled) {
		t.Errorf("result = %v, stderr = %q", res, res.Stderr)
	}
}

func TestRunInvalidUTF8Output(t *testing.T) {
	r, _ := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: "sh", Source: `printf 'a\377b'`})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "a�b" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestRunOutputLimit(t *testing.T) {
	r, root := newTestRunner(t, Config{OutputLimit: 1000})
	res, err := r.Run(context.Background(), &Request{Language: "sh", Source: "head -c 50000000 /dev/zero"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Stdout) != 1000 || !res.OutputTruncated {
		t.Errorf("stdout length = %d, truncated = %v", len(res.Stdout), res.OutputTruncated)
	}
	if res.Message != MessageFinished {
		t.Errorf("result = %v", res)
	}
	assertEmptyDir(t, root)
}

func TestRunNilRequest(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageFailed || !res.Failed {
		t.Errorf("result = %v", res)
	}
	assertEmptyDir(t, root)
}

func TestRunCompiled(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{
		Language: "shc",
		Source:   shebang + "read x; echo \"got $x\"",
		Stdin:    "42",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageFinished || res.Stdout != "got 42\n" || res.Failed {
		t.Errorf("result = %v, stdout = %q, stderr = %q", res, res.Stdout, res.Stderr)
	}
	assertEmptyDir(t, root)
}

func TestRunCompileFailed(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: "shc", Source: shebang + "if then fi (("})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageCompileFailed || !res.Failed {
		t.Errorf("result = %v", res)
	}
	if res.Stderr == "" || res.Stdout != "" {
		t.Errorf("stdout = %q, stderr = %q", res.Stdout, res.Stderr)
	}
	assertEmptyDir(t, root)
}

func TestRunCompileTimeLimit(t *testing.T) {
	r, root := newTestRunner(t, Config{CompileTimeLimit: 300 * time.Millisecond})
	start := time.Now()
	res, err := r.Run(context.Background(), &Request{Language: "slowc", Source: "echo never"})
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Since(start); d > 10*time.Second {
		t.Errorf("build not bounded: %v", d)
	}
	if res.Message != MessageTimeLimitExceeded || !res.Failed {
		t.Errorf("result = %v", res)
	}
	want := "[TimeLimitExceeded]: Compilation timed out after 0.3 seconds"
	if res.Stderr != want {
		t.Errorf("stderr = %q, want %q", res.Stderr, want)
	}
	assertEmptyDir(t, root)
}

func TestRunTimeLimit(t *testing.T) {
	r, root := newTestRunner(t, Config{TimeLimit: 500 * time.Millisecond})
	pidFile := filepath.Join(t.TempDir(), "pid")
	src := fmt.Sprintf("echo started; sleep 30 & echo $! > %s; wait", pidFile)

	start := time.Now()
	res, err := r.Run(context.Background(), &Request{Language: "sh", Source: src})
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Errorf("time limit not enforced: %v", d)
	}
	if res.Message != MessageTimeLimitExceeded || !res.Failed || res.Stdout != "" {
		t.Errorf("result = %v, stdout = %q", res, res.Stdout)
	}
	want := "[TimeLimitExceeded]: Code execution timed out after 0.5 seconds"
	if res.Stderr != want {
		t.Errorf("stderr = %q, want %q", res.Stderr, want)
	}
	b, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		t.Fatal(err)
	}
	waitGone(t, pid)
	assertEmptyDir(t, root)
}

// waitGone waits for pid to disappear or become a zombie awaiting its reaper
func waitGone(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			return
		}
		if b, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid)); err == nil {
			if f := strings.Fields(string(b[strings.LastIndexByte(string(b), ')')+1:])); len(f) > 0 && (f[0] == "Z" || f[0] == "X") {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("process %d still running", pid)
}

func TestRunCanceled(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := r.Run(ctx, &Request{Language: "sh", Source: "sleep 30"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageFailed || !res.Failed {
		t.Errorf("result = %v", res)
	}
	assertEmptyDir(t, root)
}

func TestRunUnsupportedLanguage(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	_, err := r.Run(context.Background(), &Request{Language: "cobol", Source: "DISPLAY 'HI'."})
	if !errors.Is(err, language.ErrUnsupportedLanguage) {
		t.Fatalf("err = %v", err)
	}
	assertEmptyDir(t, root)
}

func TestRunMissingToolchain(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	res, err := r.Run(context.Background(), &Request{Language: "missing", Source: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageFailed || !res.Failed || res.Stderr == "" {
		t.Errorf("result = %v, stderr = %q", res, res.Stderr)
	}
	assertEmptyDir(t, root)
}

func TestRunProvisionError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r, _ := newTestRunner(t, Config{Workspace: workspace.NewManager(file)})
	_, err := r.Run(context.Background(), &Request{Language: "sh", Source: "echo hi"})
	var we *workspace.Error
	if !errors.As(err, &we) || we.Op != "provision" {
		t.Fatalf("err = %v", err)
	}
}

func TestRunTeardownHook(t *testing.T) {
	root := t.TempDir()
	var (
		mu   sync.Mutex
		dirs []string
	)
	m := workspace.NewManager(root, workspace.WithTeardownHook(func(w *workspace.Workspace) {
		mu.Lock()
		defer mu.Unlock()
		dirs = append(dirs, w.Dir())
	}))
	r, _ := newTestRunner(t, Config{Workspace: m})
	if _, err := r.Run(context.Background(), &Request{Language: "sh", Source: "pwd"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background(), &Request{Language: "shc", Source: "if then"}); err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 || dirs[0] == dirs[1] {
		t.Errorf("teardown dirs = %v", dirs)
	}
	assertEmptyDir(t, root)
}

func TestRunConcurrentIsolation(t *testing.T) {
	r, root := newTestRunner(t, Config{})
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := strconv.Itoa(i)
			res, err := r.Run(context.Background(), &Request{
				Language: "sh",
				Source:   "read x; ls; echo \"$x\"",
				Stdin:    in,
			})
			if err != nil {
				errs <- err
				return
			}
			if want := "main.sh\n" + in + "\n"; res.Stdout != want {
				errs <- fmt.Errorf("run %d: stdout = %q, want %q", i, res.Stdout, want)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assertEmptyDir(t, root)
}

func TestTimeLimitMessage(t *testing.T) {
	res := timeLimitExceeded("Code execution", 5*time.Second)
	if res.Stderr != "[TimeLimitExceeded]: Code execution timed out after 5 seconds" {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if res.ExitStatus != -1 || res.Message != MessageTimeLimitExceeded {
		t.Errorf("result = %v", res)
	}
}

func TestFinishedSignalledWithStderr(t *testing.T) {
	res := finished(envexec.Result{
		Status:     envexec.StatusCompleted,
		ExitStatus: 11,
		Signalled:  true,
		Error:      "signal: segmentation fault",
		Stderr:     []byte("partial"),
	})
	if res.Stderr != "partial\n[Signalled]: signal: segmentation fault" || !res.Failed {
		t.Errorf("result = %v, stderr = %q", res, res.Stderr)
	}
}

func TestDefaultLimits(t *testing.T) {
	r := New(Config{})
	if r.timeLimit != DefaultTimeLimit || r.memoryLimit != DefaultMemoryLimit || r.outputLimit != DefaultOutputLimit {
		t.Errorf("defaults not applied: %v %v %v", r.timeLimit, r.memoryLimit, r.outputLimit)
	}
	spec, err := r.Registry().Lookup("java")
	if err != nil {
		t.Fatal(err)
	}
	if l := r.limit(spec); l.AddressSpace != spec.MemoryLimit {
		t.Errorf("language memory limit not applied: %v", l.AddressSpace)
	}
	spec, _ = r.Registry().Lookup("python")
	if l := r.limit(spec); l.AddressSpace != DefaultMemoryLimit {
		t.Errorf("memory limit = %v", l.AddressSpace)
	}
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
}

func TestRunBuiltinHello(t *testing.T) {
	tests := []struct {
		language string
		tools    []string
		source   string
	}{
		{"cpp", []string{"g++"}, "#include <iostream>\nint main() { std::cout << \"hello\" << std::endl; }\n"},
		{"python", []string{"python3"}, "print('hello')\n"},
		{"nodejs", []string{"node"}, "console.log('hello')\n"},
		{"java", []string{"javac", "java"}, "public class Solution {\n    public static void main(String[] args) {\n        System.out.println(\"hello\");\n    }\n}\n"},
		{"go", []string{"go"}, "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hello\") }\n"},
	}
	for _, tc := range tests {
		t.Run(tc.language, func(t *testing.T) {
			requireTools(t, tc.tools...)
			r, root := newTestRunner(t, Config{Registry: language.Default(), TimeLimit: 30 * time.Second, CompileTimeLimit: 60 * time.Second})
			res, err := r.Run(context.Background(), &Request{Language: tc.language, Source: tc.source})
			if err != nil {
				t.Fatal(err)
			}
			if res.Stdout != "hello\n" || res.Failed {
				t.Errorf("result = %v, stdout = %q, stderr = %q", res, res.Stdout, res.Stderr)
			}
			assertEmptyDir(t, root)
		})
	}
}

func TestRunCppSyntaxError(t *testing.T) {
	requireTools(t, "g++")
	r, _ := newTestRunner(t, Config{Registry: language.Default(), CompileTimeLimit: 60 * time.Second})
	res, err := r.Run(context.Background(), &Request{Language: "cpp", Source: "int main() { return 0 }\n"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageCompileFailed || !strings.Contains(res.Stderr, "error") {
		t.Errorf("result = %v, stderr = %q", res, res.Stderr)
	}
}

func TestRunPythonMemoryLimit(t *testing.T) {
	requireTools(t, "python3")
	r, _ := newTestRunner(t, Config{Registry: language.Default(), MemoryLimit: 256 << 20})
	res, err := r.Run(context.Background(), &Request{Language: "python", Source: "x = bytearray(1 << 30)\nprint('allocated')\n"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Failed || !strings.Contains(res.Stderr, "MemoryError") || res.Stdout != "" {
		t.Errorf("result = %v, stdout = %q, stderr = %q", res, res.Stdout, res.Stderr)
	}
}
