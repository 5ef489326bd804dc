// Package registry maintains the catalog of pre-defined analysis scripts and
// dispatches execution to the matching source loader.
//
// Entries are loaded once at startup from a YAML catalog. Each entry declares
// its origin (inline text, local file, remote execution server, or a git
// repository) and an input schema; Registry.Execute validates caller input
// against the schema and delegates to the loader registered for the entry's
// source type. Every execution attempt yields a uniform Envelope, error
// paths included.
package registry
