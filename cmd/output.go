package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// printer writes user-facing CLI output, degrading to plain text when
// stdout is not a terminal or color is disabled.
type printer struct {
	success *color.Color
	warning *color.Color
	failure *color.Color
	heading *color.Color
}

func newPrinter(noColor bool) *printer {
	if noColor || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		color.NoColor = true
	} else if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	return &printer{
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed, color.Bold),
		heading: color.New(color.FgCyan, color.Bold),
	}
}

func (p *printer) Successf(format string, args ...interface{}) {
	p.success.Printf(format+"\n", args...)
}

func (p *printer) Warnf(format string, args ...interface{}) {
	p.warning.Printf(format+"\n", args...)
}

func (p *printer) Failf(format string, args ...interface{}) {
	p.failure.Fprintf(os.Stderr, format+"\n", args...)
}

func (p *printer) Headingf(format string, args ...interface{}) {
	p.heading.Printf(format+"\n", args...)
}

func (p *printer) Plainf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("cannot prompt for passphrase: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	passphrase := strings.TrimSpace(string(raw))
	if passphrase == "" {
		return "", fmt.Errorf("empty passphrase")
	}
	return passphrase, nil
}
