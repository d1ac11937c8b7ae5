// Package utils validates terminal command input before it reaches the
// session manager.
package utils
