package config

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	PortMin = 0
	PortMax = 65535
)

// ParsePort parses and validates a port given as text.
func ParsePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w, but got %q", ErrPortNotInteger, raw)
	}
	return ValidatePort(port)
}

// ValidatePort returns port unchanged when it is within PortMin-PortMax.
func ValidatePort(port int) (int, error) {
	if port < PortMin || port > PortMax {
		return 0, fmt.Errorf("%w: port %d is not in the valid range %d-%d", ErrPortOutOfRange, port, PortMin, PortMax)
	}
	return port, nil
}
