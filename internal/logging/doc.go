// Package logging is the leveled wrapper around the standard logger used
// by the server and libctl.
//
// The level comes from LOG_LEVEL (debug, info, warn, error), with
// DEBUG=true forcing debug. Tools that take a --log-level flag call
// SetLevel instead. Messages are prefixed with their level tag, for
// example "[WARN] Skipping unreadable directory ...".
package logging
