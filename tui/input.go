package tui

import (
	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"
)

var inputTheme = huh.ThemeBase16()

// ErrNoTTY is returned by prompts when stdout is not a terminal.
var ErrNoTTY = errors.New("interactive input requires a terminal")

func Input(title string, description string) (string, error) {
	return prompt(huh.NewInput().Title(title).Description(description))
}

func Password(title string, description string) (string, error) {
	return prompt(huh.NewInput().Title(title).Description(description).EchoMode(huh.EchoModePassword))
}

func prompt(input *huh.Input) (string, error) {
	if !HasTTY {
		return "", ErrNoTTY
	}
	var value string
	if err := input.Prompt("> ").Value(&value).WithTheme(inputTheme).Run(); err != nil {
		return "", errors.Wrap(err, "prompt")
	}
	return value, nil
}
