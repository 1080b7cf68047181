package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rescale/dlxt/internal/config"
	dlhttp "github.com/rescale/dlxt/internal/http"
)

// errNoTerminal is returned when a password is needed but stdin is not a
// terminal.
var errNoTerminal = errors.New("proxy password required: set DLXT_PROXY_PASSWORD or --proxy-password (no terminal for prompt)")

// passwordReader reads a line from the terminal without echo.
type passwordReader func(fd int) ([]byte, error)

// ensureProxyPassword prompts for the proxy password when the configured
// mode authenticates and none was supplied.
func ensureProxyPassword(cfg *config.Config, in *os.File, out io.Writer) error {
	if !dlhttp.NeedsProxyPassword(cfg) {
		return nil
	}
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return errNoTerminal
	}
	password, err := promptProxyPassword(fd, out, cfg.ProxyUser, cfg.ProxyHost, term.ReadPassword)
	if err != nil {
		return err
	}
	cfg.ProxyPassword = password
	return nil
}

func promptProxyPassword(fd int, out io.Writer, user, host string, read passwordReader) (string, error) {
	fmt.Fprintf(out, "Proxy password for %s@%s: ", user, host)
	b, err := read(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read proxy password: %w", err)
	}
	password := strings.TrimRight(string(b), "\r\n")
	if password == "" {
		return "", errors.New("proxy password cannot be empty")
	}
	return password, nil
}
