package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/glimte/mqstep/config"
	"github.com/glimte/mqstep/template"
)

var errNoTemplate = errors.New("one of --data or --data-file is required")

// readTemplate returns data, or the content of file when set. "-" reads stdin.
func readTemplate(data, file string) (string, error) {
	if file == "" {
		if data == "" {
			return "", errNoTemplate
		}
		return data, nil
	}

	var (
		content []byte
		err     error
	)
	if file == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(content), nil
}

// parseParams builds build parameters from NAME=VALUE pairs and names
// declared without value.
func parseParams(pairs, nullNames []string) (template.Parameters, error) {
	params := make(template.Parameters, len(pairs)+len(nullNames))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected NAME=VALUE", pair)
		}
		params.Set(strings.TrimSpace(name), value)
	}
	for _, name := range nullNames {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("empty parameter name")
		}
		params.SetNull(strings.TrimSpace(name))
	}
	return params, nil
}

func parsePort(value string) (int, error) {
	if err := config.ValidatePort(value); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(value))
}
