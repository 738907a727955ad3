package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/nextlevelbuilder/keyproxy/internal/secret"
)

// runWithHelp wraps a huh field in a Form with help hints visible at the bottom.
func runWithHelp(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).Run()
}

// promptPassword prompts for a hidden input using huh TUI.
func promptPassword(title, description string) (string, error) {
	var value string
	inp := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value)

	if description != "" {
		inp = inp.Description(description)
	}

	if err := runWithHelp(inp); err != nil {
		return "", err
	}
	return value, nil
}

// promptConfirm asks a yes/no question using huh TUI. Returns true for yes.
func promptConfirm(title string, defaultYes bool) (bool, error) {
	value := defaultYes

	c := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&value)

	if err := runWithHelp(c); err != nil {
		return false, err
	}
	return value, nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecretInput reads a credential without putting it on the command line:
// from fromFile when set, from an interactive hidden prompt on a terminal,
// or from the first line of piped stdin. The result is trimmed and held in a
// secret.Buffer the caller must Close.
func readSecretInput(fromFile, title string) (*secret.Buffer, error) {
	var raw []byte
	switch {
	case fromFile != "":
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return nil, err
		}
		raw = data
	case stdinIsTerminal():
		v, err := promptPassword(title, "Input is hidden and never echoed.")
		if err != nil {
			return nil, err
		}
		raw = []byte(v)
	default:
		line, err := bufio.NewReader(os.Stdin).ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = line
	}

	trimmed := []byte(strings.TrimSpace(string(raw)))
	secret.Zero(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty value")
	}
	return secret.NewFromBytes(trimmed)
}
