// Package platform reports whether the host can enforce Seatbelt profiles:
// the operating system must be macOS and sandbox-exec must be executable.
package platform
