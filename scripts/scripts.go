// Package scripts embeds the Risor scripts shipped with marstools.
package scripts

import "embed"

// FS holds the bundled scripts. The CLI runs from it unless a scripts
// directory is configured.
//
//go:embed *.risor
var FS embed.FS
