// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes tools
// for sandboxed script execution. It uses the mark3labs/mcp-go library to
// handle the protocol details and provides per-language execution tools
// (execute_python_script, execute_r_script, execute_scilab_script), the
// optimize_function and run_simulation wrapper generators, and the registry
// tools (list_scripts, get_script_schema, execute_script).
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor, validator, registry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
