// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package notify

import "github.com/orbitforge/worldmarket/econ"

var log = econ.Disabled

// UseLogger sets the package logger.
func UseLogger(logger econ.Logger) {
	log = logger
}
