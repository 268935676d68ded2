//go:build !darwin

package platform

// Seatbelt is a macOS facility; profiles can still be generated and dumped
// elsewhere but not enforced.
const seatbeltSupported = false
