package main

import (
	"strings"

	"github.com/charmbracelet/huh"
)

// promptCode спрашивает у пользователя код подтверждения из SMS.
// Блокируется, пока код не введён, как и поле на странице входа.
func promptCode() (string, error) {
	var code string

	inp := huh.NewInput().
		Title("Confirmation code").
		Description("Enter the code MAX sent to your phone").
		Value(&code)

	if err := huh.NewForm(huh.NewGroup(inp)).Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}
