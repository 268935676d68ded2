// Package cargosafe runs cargo inside a macOS Seatbelt sandbox.
//
// It derives a least-privilege SBPL profile from the workspace location,
// a private staging directory and the process environment, writes the
// profile to the staging directory, and launches cargo through
// sandbox-exec with CARGO_HOME and CARGO_TARGET_DIR redirected into that
// staging directory.
//
// The resulting policy denies everything by default. The build may read
// the toolchain, the system frameworks, the directories on PATH and the
// workspace. It may write only Cargo.lock, the temp directory and its own
// staging directory. Network access is limited to ports 80 and 443 and the
// local DNS resolver, and metadata under ~/.ssh stays hidden.
//
// Basic usage:
//
//	env := cargosafe.CurrentEnvironment()
//	profile, err := cargosafe.BuildProfile(workspace, sandboxDir, env)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(profile)
package cargosafe
