package shared

import (
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"runtime"
	"strconv"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand builds the command that opens url on the given platform.
func browserCommand(goos, url string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("%w: cannot open a browser on %s", ErrServiceUnavailable, goos)
	}
}

// OpenBrowser opens the default system browser to the specified URL.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(getRuntime(), url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// CallbackPath returns the path component of a redirect URI, or /callback when it has none.
func CallbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/callback"
	}
	return u.Path
}

// CallbackAddr returns the address the local callback server must listen on.
//
// The host and port of the redirect URI win so the registered URI and the listener agree.
// host and port fill in whatever the URI leaves out.
func CallbackAddr(redirectURI, host string, port int) string {
	if u, err := url.Parse(redirectURI); err == nil && u.Host != "" {
		h, p := u.Hostname(), u.Port()
		if h == "" {
			h = host
		}
		if p == "" {
			p = strconv.Itoa(port)
		}
		return net.JoinHostPort(h, p)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
