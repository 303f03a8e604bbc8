// Package application wires the bot status store, the Discord bot, the
// status API router and the HTTP server together, leaving the main package
// with CLI parsing and signal handling.
package application
