// Package log provides a credential-masking slog.Handler wrapper. The
// crawler authenticates with an opaque session cookie; the handler
// guarantees that token never appears in log output, whatever attribute
// key it travels under.
package log
