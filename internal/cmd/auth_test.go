package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
)

func TestAuthAddListRemove(t *testing.T) {
	withTestKeyring(t)

	stdout, _, err := runCommand(t, "auth", "add", "--name", "work", "--port", "8545", "--routing-key", "agent:work:main")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `saved account "work"`) {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = runCommand(t, "auth", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "work") || !strings.Contains(stdout, "8545") || !strings.Contains(stdout, "agent:work:main") {
		t.Errorf("list output = %q", stdout)
	}

	stdout, _, err = runCommand(t, "auth", "remove", "work")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `removed account "work"`) {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = runCommand(t, "auth", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "no accounts configured") {
		t.Errorf("list output = %q", stdout)
	}
}

func TestAuthAddRequiresPort(t *testing.T) {
	withTestKeyring(t)

	_, _, err := runCommand(t, "auth", "add", "--name", "work")
	if err == nil {
		t.Fatal("expected error for missing --port")
	}
	if ExitCode(err) != exitUsage {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), exitUsage)
	}
}

func TestAuthAddDefaultsName(t *testing.T) {
	withTestKeyring(t)

	stdout, _, err := runCommand(t, "auth", "add", "--port", "8545")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `saved account "default"`) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestAuthLogin(t *testing.T) {
	withTestKeyring(t)

	var loggedIn map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/statusgo/LoginAccount", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&loggedIn); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/statusgo/CallRPC", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result":  map[string]string{"public-key": "0x04aabbccddeeff"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = runCommand(t, "auth", "add",
		"--port", strconv.Itoa(port),
		"--key-uid", "0xkeyuid",
		"--password", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCommand(t, "auth", "login")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "logged in as 0x04aabbccdd...") {
		t.Errorf("stdout = %q", stdout)
	}
	if loggedIn["keyUID"] != "0xkeyuid" || loggedIn["password"] != "hunter2" {
		t.Errorf("login payload = %v", loggedIn)
	}
}

func TestAuthLoginWithoutCredentials(t *testing.T) {
	withTestKeyring(t)

	if _, _, err := runCommand(t, "auth", "add", "--port", "8545"); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCommand(t, "auth", "login")
	if err == nil || !strings.Contains(err.Error(), "no key-uid/password stored") {
		t.Errorf("err = %v", err)
	}
}
