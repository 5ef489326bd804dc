// Package main is the entry point for the Scriptbox execution server.
//
// The Scriptbox server implements a configurable Model Context Protocol (MCP)
// server and REST API that execute untrusted analysis scripts (Python, R,
// Scilab) in sandboxed child processes. The server supports both stdio and
// HTTP transports and provides security screening, restricted execution
// environments, hard timeouts, and a catalog of pre-registered scripts.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
