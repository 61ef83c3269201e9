//go:build integration

// Package integration_test runs requests against a live code-runner server,
// CR_SERVER_URL or http://localhost:8000 by default.
package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/criyle/code-runner/cmd/code-runner/model"
	"github.com/criyle/code-runner/codec"
)

func serverURL() string {
	if u := os.Getenv("CR_SERVER_URL"); u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return "http://localhost:8000"
}

var client = &http.Client{Timeout: 60 * time.Second}

func postRun(t *testing.T, req model.Request) (int, model.Response) {
	t.Helper()
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Post(serverURL()+"/run", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var res model.Response
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode, res
}

const pySample = `def main():
    inputs = input()
    for i in range(4):
        print(f"User input {i=} {inputs=}")

main()
`

func TestPythonStdin(t *testing.T) {
	code, res := postRun(t, model.Request{Language: "python", Code: codec.Encode(pySample), Stdin: "1 2 3"})
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Error || res.Message != "Execution finished" {
		t.Errorf("response = %+v", res)
	}
	if strings.Count(res.Stdout, "inputs='1 2 3'") != 4 {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestHelloWorld(t *testing.T) {
	tests := []struct {
		language string
		code     string
	}{
		{"cpp", "#include <iostream>\nint main() { std::cout << \"hello\\n\"; }\n"},
		{"python", "print('hello')\n"},
		{"javascript", "console.log('hello')\n"},
		{"java", "public class Solution { public static void main(String[] a) { System.out.println(\"hello\"); } }\n"},
		{"go", "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hello\") }\n"},
	}
	for _, tc := range tests {
		t.Run(tc.language, func(t *testing.T) {
			code, res := postRun(t, model.Request{Language: tc.language, Code: codec.Encode(tc.code)})
			if code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if res.Stdout != "hello\n" || res.Error {
				t.Errorf("response = %+v", res)
			}
		})
	}
}

func TestCompileError(t *testing.T) {
	code, res := postRun(t, model.Request{Language: "cpp", Code: codec.Encode("int main() { return 0 }")})
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Message != "Compilation failed" || !res.Error || res.Stderr == "" || res.Stdout != "" {
		t.Errorf("response = %+v", res)
	}
}

func TestTimeLimit(t *testing.T) {
	src := "import os, time\nos.fork()\ntime.sleep(60)\n"
	code, res := postRun(t, model.Request{Language: "python", Code: codec.Encode(src)})
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Message != "Time limit exceeded" || !strings.HasPrefix(res.Stderr, "[TimeLimitExceeded]") || res.Stdout != "" {
		t.Errorf("response = %+v", res)
	}
}

func TestBadRequests(t *testing.T) {
	if code, _ := postRun(t, model.Request{Language: "cobol", Code: codec.Encode("x")}); code != http.StatusBadRequest {
		t.Errorf("unsupported language status = %d", code)
	}
	if code, _ := postRun(t, model.Request{Language: "python", Code: "not base64!"}); code != http.StatusBadRequest {
		t.Errorf("invalid base64 status = %d", code)
	}
}

func BenchmarkPythonHello(b *testing.B) {
	body, _ := json.Marshal(model.Request{Language: "python", Code: codec.Encode("print('hello')\n")})
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resp, err := client.Post(serverURL()+"/run", "application/json", bytes.NewReader(body))
			if err != nil {
				b.Error(err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				b.Errorf("status = %d", resp.StatusCode)
			}
		}
	})
}
