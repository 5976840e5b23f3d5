// Package step runs the publish build step: it gathers the build
// parameters, renders the message template and hands the result to a
// broker publisher supplied by the caller.
package step
