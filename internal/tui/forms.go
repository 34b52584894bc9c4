package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string) (bool, error) {
	var result bool
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return false, err
	}
	return result, nil
}

// Secret prompts for a value without echoing it.
func Secret(title, description string) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		Description(description).
		EchoMode(huh.EchoModePassword).
		Value(&result).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("this field is required")
			}
			return nil
		}).
		Run()
	return strings.TrimSpace(result), err
}
