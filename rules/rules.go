// Package rules embeds the built-in rule scripts run when a workspace
// configures no rules directory of its own.
package rules

import "embed"

// FS holds the built-in *.risor rules.
//
//go:embed *.risor
var FS embed.FS
