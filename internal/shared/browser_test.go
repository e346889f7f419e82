package shared

import (
	"errors"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cmd, err := browserCommand(tt.goos, "https://example.com")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Args[0] != tt.want || cmd.Args[len(cmd.Args)-1] != "https://example.com" {
				t.Errorf("unexpected args %v", cmd.Args)
			}
		})
	}

	t.Run("unsupported platform", func(t *testing.T) {
		if _, err := browserCommand("plan9", "https://example.com"); !errors.Is(err, ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("OpenBrowser reports unsupported runtime", func(t *testing.T) {
		orig := getRuntime
		defer func() { getRuntime = orig }()
		getRuntime = func() string { return "plan9" }

		if err := OpenBrowser("https://example.com"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestCallbackPath(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:3000/callback":      "/callback",
		"http://localhost:8888/spotify/oauth": "/spotify/oauth",
		"http://localhost:8888":               "/callback",
		"http://localhost:8888/":              "/callback",
		"":                                    "/callback",
	}
	for in, want := range tests {
		if got := CallbackPath(in); got != want {
			t.Errorf("CallbackPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		name     string
		redirect string
		want     string
	}{
		{name: "uri wins", redirect: "http://127.0.0.1:3000/callback", want: "127.0.0.1:3000"},
		{name: "missing port", redirect: "http://localhost/callback", want: "localhost:4000"},
		{name: "empty uri", redirect: "", want: "0.0.0.0:4000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CallbackAddr(tt.redirect, "0.0.0.0", 4000); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
