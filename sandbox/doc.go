// Package sandbox provides secure script execution capabilities.
//
// The sandbox package implements the execution engine for running untrusted
// analysis scripts (Python, R, Scilab) as isolated child processes. Each
// execution gets an ephemeral workspace directory, a restricted environment,
// a hard wall-clock timeout, and process-group cleanup.
//
// The package also provides the per-language script adapters (data injection
// and interpreter command assembly) and the security pre-screening validator
// used when sandbox mode is enabled.
//
// Usage:
//
//	exec := sandbox.NewExecutor(logger, sandbox.ExecutorConfig{SandboxEnabled: true})
//	result := exec.Execute(ctx, sandbox.ExecRequest{
//	    Language: sandbox.LanguagePython,
//	    Script:   "print('Hello, World!')",
//	    Timeout:  10 * time.Second,
//	})
package sandbox
