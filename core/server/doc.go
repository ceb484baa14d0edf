// Package server holds the HTTP server configuration.
//
// While the command entry points handle the server startup, this package
// defines the configuration structure for server settings such as the listen
// port and the API key protecting the REST surface.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server
// settings and by the command entry points to derive the listen address.
package server
