//go:build darwin

package platform

const seatbeltSupported = true
