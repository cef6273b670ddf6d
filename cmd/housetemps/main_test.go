package main

import (
	"os"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/lox/housetemps/internal/store"
)

func TestGlobals_DefaultsMatchStore(t *testing.T) {
	for _, env := range []string{"QUERY_TIMEOUT", "RETRY_MAX_ELAPSED", "RETRY_MAX_TRIES"} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	var cli CLI
	parser, err := kong.New(&cli, kong.Name(appName))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"migrate"}); err != nil {
		t.Fatal(err)
	}

	if cli.RetryMaxTries != store.DefaultRetryMaxTries {
		t.Errorf("RetryMaxTries = %d, want %d", cli.RetryMaxTries, store.DefaultRetryMaxTries)
	}
	if cli.RetryMaxElapsed != store.DefaultRetryMaxElapsed {
		t.Errorf("RetryMaxElapsed = %v, want %v", cli.RetryMaxElapsed, store.DefaultRetryMaxElapsed)
	}
	if cli.QueryTimeout != store.DefaultQueryTimeout {
		t.Errorf("QueryTimeout = %v, want %v", cli.QueryTimeout, store.DefaultQueryTimeout)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{" WARNING ", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
