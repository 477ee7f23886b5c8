// Package browser opens story links in the user's default browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Open launches the platform browser for a story link. Only http and
// https links are accepted; feeds occasionally carry other schemes and
// those must never reach a shell.
func Open(link string) error {
	if err := validate(link); err != nil {
		return err
	}
	name, args := openCommand(link)
	return exec.Command(name, args...).Start()
}

func validate(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open link with scheme %q", u.Scheme)
	}
	return nil
}

func openCommand(link string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{link}
	case "windows":
		// rundll32 avoids shell interpretation of the URL.
		return "rundll32", []string{"url.dll,FileProtocolHandler", link}
	default:
		return "xdg-open", []string{link}
	}
}
