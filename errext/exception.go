// Package errext contains extensions for Go errors used by the locator
// engine and its command line tool, such as hints and exit codes.
package errext

// Exception is an error thrown by a script. Its stack trace is what gets
// logged instead of the plain message.
type Exception interface {
	error
	StackTrace() string
}
