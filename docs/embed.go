package docs

import _ "embed"

var (
	//go:embed runbook.md
	RunbookMD string
)
