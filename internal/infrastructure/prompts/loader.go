package prompts

import (
	_ "embed"
)

//go:embed navigation_system.txt
var NavigationSystemPrompt string

//go:embed turn.tmpl
var TurnTemplate string
