// Package template resolves user-authored build messages.
//
// A template is either published as-is with its $NAME and ${NAME} placeholders
// replaced (raw mode), or read as newline separated key=value records that are
// assembled into a flat JSON object with camelCase keys (JSON mode).
//
// Every function in this package is pure and safe for concurrent use.
package template
