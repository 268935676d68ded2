// Package seatbelt models macOS Seatbelt sandbox profiles (SBPL) as plain
// values and serializes them to the exact text sandbox-exec parses.
//
// A Profile is an ordered list of Rules. Each Rule pairs an Action with an
// Operation and an optional list of Filters:
//
//	p := &seatbelt.Profile{Rules: []seatbelt.Rule{
//	    seatbelt.Deny(seatbelt.Default),
//	    seatbelt.Allow(seatbelt.FileReadAll, seatbelt.Prefix("/usr/lib/")),
//	}}
//	fmt.Print(p)
//
// String values inside filters are written verbatim. Callers must not pass
// paths or patterns containing double quotes or newlines.
package seatbelt
