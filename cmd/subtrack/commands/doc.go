// Package commands defines the subtrack CLI.
//
// Commands
//
//   - list           Show all subscriptions sorted by name
//   - add            Create a subscription
//   - edit <id>      Change fields of a subscription
//   - delete <id>    Remove a subscription
//   - config         Print the effective configuration
//   - config save    Write the effective configuration to the config file
//   - config env     List the environment variables that override the file
//
// # Implementation
//
// The root command loads the configuration and builds a session before any
// subcommand runs. After each operation the session's notification is
// printed in green for success and red for failure.
package commands
