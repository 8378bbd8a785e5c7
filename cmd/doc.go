// Package cmd implements the command-line interface for gmailauth.
//
// This package provides the following commands:
//   - login: Obtain a valid read-only Gmail token and print the account email
//   - status: Show the cached token without network access
//   - logout: Remove the cached token
//   - version: Display version information
//
// The login command is the default command when no subcommand is specified.
package cmd
