// Package providers registers every built-in model backend via side effects.
// Import it for its blank identifier wherever providers must be available.
package providers

import (
	_ "github.com/plana-bot/plana/src/llm/gemini"
	_ "github.com/plana-bot/plana/src/llm/mistral"
)
