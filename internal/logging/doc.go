// Package logging constructs the process logger for tokend.
package logging
