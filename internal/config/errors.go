package config

import "errors"

var (
	// ErrPortNotInteger is returned when a port value is not an integer.
	ErrPortNotInteger = errors.New("port must be an integer")
	// ErrPortOutOfRange is returned when a port falls outside 0-65535.
	ErrPortOutOfRange = errors.New("port out of range")
	// ErrMissingBotToken is returned when no bot token is configured.
	ErrMissingBotToken = errors.New("BOT_TOKEN is not set")
)
