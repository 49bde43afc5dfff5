// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package market

import "github.com/orbitforge/worldmarket/econ"

// log is the package-level logger. It defaults to a disabled logger until
// UseLogger is called.
var log = econ.Disabled

// UseLogger sets the package logger.
func UseLogger(logger econ.Logger) {
	log = logger
}
