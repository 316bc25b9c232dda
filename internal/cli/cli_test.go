// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/citechat/internal/assistant"
	"github.com/jeranaias/citechat/internal/config"
	"github.com/jeranaias/citechat/internal/export"
)

// =============================================================================
// TEST RELAY
// =============================================================================

const answerStream = `{"event":"thread.message.created","data":{"id":"msg_1"}}
{"event":"thread.message.delta","data":{"id":"msg_1","delta":{"content":[{"index":0,"type":"text","text":{"value":"Revenue grew [Q3](/api/files/file-abc)."}}]}}}
{"event":"thread.run.completed","data":{"id":"run_1"}}
`

// testRelay serves one thread, a canned answer and one file.
type testRelay struct {
	server       *httptest.Server
	threads      atomic.Int32
	threadStatus int
	sendStatus   int
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	r := &testRelay{threadStatus: http.StatusOK, sendStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/assistants/threads", func(w http.ResponseWriter, req *http.Request) {
		if r.threadStatus != http.StatusOK {
			http.Error(w, `{"error":"Failed to create thread"}`, r.threadStatus)
			return
		}
		n := r.threads.Add(1)
		fmt.Fprintf(w, `{"threadId":"thread_%d"}`, n)
	})
	mux.HandleFunc("/api/assistants/threads/", func(w http.ResponseWriter, req *http.Request) {
		if !strings.HasSuffix(req.URL.Path, "/messages") {
			http.NotFound(w, req)
			return
		}
		if r.sendStatus != http.StatusOK {
			http.Error(w, `{"error":"assistant unavailable"}`, r.sendStatus)
			return
		}
		_, _ = io.WriteString(w, answerStream)
	})
	mux.HandleFunc("/api/files/file-abc", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="Annual Report.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.7"))
	})
	r.server = httptest.NewServer(mux)
	t.Cleanup(r.server.Close)
	return r
}

// testEnv isolates HOME and writes a config pointing at relayURL.
type testEnv struct {
	dir        string
	configPath string
	downloads  string
}

func newTestEnv(t *testing.T, relayURL string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("USERPROFILE", dir)
	for _, key := range []string{"CITECHAT_RELAY_URL", "CITECHAT_FILES_URL", "CITECHAT_API_KEY", "CITECHAT_LOG_LEVEL", "FORCE_COLOR"} {
		t.Setenv(key, "")
	}

	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		downloads:  filepath.Join(dir, "downloads"),
	}
	content := fmt.Sprintf(`version = "1"

[relay]
base_url = %q
requests_per_second = 0

[files]
download_dir = %q

[files.names]
"file-abc" = "Annual Report.pdf"

[log]
file = %q
`, relayURL, env.downloads, filepath.Join(dir, "citechat.log"))
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))
	return env
}

// forgetNames removes the configured document names.
func (e *testEnv) forgetNames(t *testing.T) {
	t.Helper()
	data, err := os.ReadFile(e.configPath)
	require.NoError(t, err)
	content := strings.Replace(string(data), `"file-abc" = "Annual Report.pdf"`, "", 1)
	require.NoError(t, os.WriteFile(e.configPath, []byte(content), 0600))
}

// run executes the command tree and returns stdout and the error.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(Streams{In: strings.NewReader(stdin), Out: &out, Err: &errOut})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_PrintsAnswerWithReferences(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "", "--config", env.configPath, "ask", "What", "grew?")

	require.NoError(t, err)
	assert.Contains(t, out, "Assistant")
	assert.Contains(t, out, "Revenue grew [1].")
	assert.Contains(t, out, "References")
	assert.Contains(t, out, "[1] Annual Report.pdf  "+relay.server.URL+"/api/files/file-abc")
	assert.NotContains(t, out, "\x1b[", "piped output is plain")
	assert.NotContains(t, out, "What grew?", "the question is not echoed")
}

func TestAsk_Raw(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "", "--config", env.configPath, "ask", "--raw", "What grew?")

	require.NoError(t, err)
	want := "Revenue grew [1].\n\n[1] Annual Report.pdf <" + relay.server.URL + "/api/files/file-abc>\n"
	assert.Equal(t, want, out)
}

func TestAsk_QuestionFromStdin(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "  What grew?\n", "--config", env.configPath, "ask", "--raw", "-")

	require.NoError(t, err)
	assert.Contains(t, out, "Revenue grew [1].")
}

func TestAsk_RelayFlagOverridesConfig(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, "http://127.0.0.1:1/api/assistants")

	_, err := run(t, "", "--config", env.configPath, "--relay", relay.server.URL+"/api/assistants", "ask", "hi")

	require.NoError(t, err)
	assert.Equal(t, int32(1), relay.threads.Load())
}

func TestAsk_Errors(t *testing.T) {
	tests := []struct {
		name         string
		threadStatus int
		sendStatus   int
		wantIs       error
		wantCode     int
	}{
		{name: "thread creation", threadStatus: http.StatusInternalServerError, sendStatus: http.StatusOK, wantIs: assistant.ErrThreadCreate, wantCode: ExitNetworkError},
		{name: "send rejected", threadStatus: http.StatusOK, sendStatus: http.StatusUnauthorized, wantIs: assistant.ErrSubmit, wantCode: ExitAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := newTestRelay(t)
			relay.threadStatus = tt.threadStatus
			relay.sendStatus = tt.sendStatus
			env := newTestEnv(t, relay.server.URL+"/api/assistants")

			_, err := run(t, "", "--config", env.configPath, "ask", "hi")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			if got := ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	_, err := run(t, "   ", "--config", env.configPath, "ask", "-")

	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Equal(t, ExitUsageError, ExitCode(err))
	assert.Zero(t, relay.threads.Load())
}

func TestMissingConfigFile(t *testing.T) {
	newTestEnv(t, "http://127.0.0.1:1")

	_, err := run(t, "", "--config", filepath.Join(t.TempDir(), "nope.toml"), "ask", "hi")

	assert.ErrorIs(t, err, config.ErrNoConfigFile)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestInvalidRelayFlag(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	_, err := run(t, "", "--config", env.configPath, "--relay", "not a url", "ask", "hi")

	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_ConversationAndDownload(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	input := strings.Join([]string{
		"/refs",
		"What grew?",
		"/refs",
		"/get 1",
		"/get 9",
		"/quit",
	}, "\n") + "\n"
	out, err := run(t, input, "--config", env.configPath, "chat")

	require.NoError(t, err)
	assert.Contains(t, out, "No references in the last answer.")
	assert.Contains(t, out, "Revenue grew [1].")
	assert.Contains(t, out, "[1] Annual Report.pdf")
	assert.Contains(t, out, `no reference "9"`)
	assert.Contains(t, out, "Goodbye.")

	saved := filepath.Join(env.downloads, "Annual Report.pdf")
	assert.Contains(t, out, "Saved [1] "+saved)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
}

func TestChat_RefsUseNameLearnedFromDownload(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")
	env.forgetNames(t)

	out, err := run(t, "What grew?\n/refs\n/get 1\n/refs\n", "--config", env.configPath, "chat")
	require.NoError(t, err)

	saved := strings.Index(out, "Saved [1] ")
	require.GreaterOrEqual(t, saved, 0)
	assert.Contains(t, out[:saved], "[1] Q3", "the link label names the document before download")
	assert.NotContains(t, out[:saved], "[1] Annual Report.pdf")
	assert.Contains(t, out[saved:], "[1] Annual Report.pdf", "the relay's filename replaces the label")
}

func TestChat_NewThread(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "What grew?\n/new\n/refs\n", "--config", env.configPath, "chat")

	require.NoError(t, err)
	assert.Contains(t, out, "Started a new thread.")
	assert.Contains(t, out, "No references in the last answer.", "references are cleared by /new")
	assert.Equal(t, int32(2), relay.threads.Load())
}

func TestChat_UnknownCommand(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "/bogus\n", "--config", env.configPath, "chat")

	require.NoError(t, err)
	assert.Contains(t, out, "/bogus: unknown command")
}

func TestChat_Save(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "What grew?\n/save json\n/save pdf\n", "--config", env.configPath, "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved conversation to ")
	assert.Contains(t, out, `unsupported export format "pdf"`)

	matches, err := filepath.Glob(filepath.Join(env.downloads, "citechat_thread_1_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var doc export.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "thread_1", doc.ThreadID)
	require.Len(t, doc.Turns, 2)
	assert.Equal(t, "What grew?", doc.Turns[0].Text)
	assert.Equal(t, "Revenue grew [1].", doc.Turns[1].Text)
	require.Len(t, doc.Turns[1].References, 1)
	assert.Equal(t, "file-abc", doc.Turns[1].References[0].FileID)
}

func TestChat_SaveEmpty(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "/save\n", "--config", env.configPath, "chat")
	require.NoError(t, err)
	assert.NotContains(t, out, "Saved conversation")
	_, statErr := os.Stat(env.downloads)
	assert.True(t, os.IsNotExist(statErr), "nothing is written for an empty conversation")
}

func TestChat_RelayDownShowsError(t *testing.T) {
	relay := newTestRelay(t)
	relay.threadStatus = http.StatusBadGateway
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	out, err := run(t, "hello\n", "--config", env.configPath, "chat")

	require.NoError(t, err)
	assert.Contains(t, out, "Failed to create thread")
	assert.Contains(t, out, "No conversation is open")
}

// =============================================================================
// FILES
// =============================================================================

func TestFilesGet(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := run(t, "", "--config", env.configPath, "files", "get", "file-abc", "-o", outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "Annual Report.pdf")+"\n", out)

	// A second download never overwrites the first.
	out, err = run(t, "", "--config", env.configPath, "files", "get", "file-abc", "-o", outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "Annual Report (1).pdf")+"\n", out)
}

func TestFilesGet_NotFound(t *testing.T) {
	relay := newTestRelay(t)
	env := newTestEnv(t, relay.server.URL+"/api/assistants")

	_, err := run(t, "", "--config", env.configPath, "files", "get", "file-missing")

	assert.ErrorIs(t, err, assistant.ErrDownload)
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigInit(t *testing.T) {
	newTestEnv(t, "http://127.0.0.1:1")
	path := filepath.Join(t.TempDir(), "nested", "citechat.toml")

	out, err := run(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Relay.BaseURL, loaded.Relay.BaseURL)

	_, err = run(t, "", "--config", path, "config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, err = run(t, "", "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigShow_RedactsAPIKey(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	t.Setenv("CITECHAT_API_KEY", "sk-secret")

	out, err := run(t, "", "--config", env.configPath, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "# "+env.configPath)
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "Annual Report.pdf")
	assert.NotContains(t, out, "sk-secret")
}

// =============================================================================
// HELPERS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", newUsageError("ask", "empty", ""), ExitUsageError},
		{"not configured", assistant.ErrNotConfigured, ExitConfigError},
		{"validation", config.ValidateErrors{{Field: "relay.base_url", Message: "bad"}}, ExitConfigError},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"forbidden", &assistant.APIError{Status: http.StatusForbidden}, ExitAuthError},
		{"not found", fmt.Errorf("%w: %w", assistant.ErrDownload, &assistant.APIError{Status: http.StatusNotFound}), ExitNotFoundError},
		{"server error", &assistant.APIError{Status: http.StatusInternalServerError}, ExitNetworkError},
		{"network", fmt.Errorf("%w: dial tcp", assistant.ErrSubmit), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, newUsageError("/get", "expected one reference number", "/get 1"))
	assert.Contains(t, buf.String(), "Error: /get: expected one reference number (example: /get 1)")
	assert.Contains(t, buf.String(), "citechat --help")

	buf.Reset()
	DisplayError(&buf, assistant.ErrNotConfigured)
	assert.Equal(t, "Error: the assistant relay is not configured; set relay.base_url\n", buf.String())
}

func TestReadQuestion(t *testing.T) {
	got, err := readQuestion(strings.NewReader(""), []string{"What", "changed?"})
	require.NoError(t, err)
	assert.Equal(t, "What changed?", got)

	got, err = readQuestion(strings.NewReader("\nfrom stdin\n"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)
}

func TestMarkerPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/files", "/api/files"},
		{"http://relay.test/api/files", "/api/files"},
		{"https://relay.test", "https://relay.test"},
	}
	for _, tt := range tests {
		if got := markerPath(tt.in); got != tt.want {
			t.Errorf("markerPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTUIRequiresTerminal(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	_, err := run(t, "", "--config", env.configPath)

	var ttyErr *TTYRequiredError
	assert.ErrorAs(t, err, &ttyErr)
}
