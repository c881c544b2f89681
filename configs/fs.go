package configs

import "embed"

//go:embed SYSTEM.md
var FS embed.FS
