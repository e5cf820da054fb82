// Copyright 2026 The Agentdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"fmt"
	"strings"
)

// personalityStyles maps the personality enum to a style phrase.
var personalityStyles = map[string]string{
	PersonalityFormal:   "professional, formal, and business-like",
	PersonalityFriendly: "warm, friendly, and approachable",
	PersonalityBrief:    "concise, brief, and to-the-point",
}

const fallbackStyle = "helpful and professional"

const defaultBusinessDescription = "I help businesses automate their operations with AI."

// Compile turns an agent configuration into the system prompt handed to
// the inference runtime. Pure function: identical input yields identical
// output.
func Compile(cfg *Config) string {
	style, ok := personalityStyles[cfg.Personality]
	if !ok {
		style = fallbackStyle
	}

	about := cfg.CustomInstructions
	if about == "" {
		about = defaultBusinessDescription
	}

	prompt := fmt.Sprintf(`You are %s.

Communication style: %s
Primary language: %s

About the business:
%s

Guidelines:
- Always be helpful, concise, and stay in character
- If you cannot help with something, say so clearly and suggest alternatives
- Remember: users configure everything by talking to you
- Guide them through setup naturally
- Be proactive in suggesting next steps`,
		cfg.AgentName, style, cfg.Language, about)

	return strings.TrimSpace(prompt)
}

// CompileWithTools appends the list of connected integrations to the
// compiled prompt.
func CompileWithTools(cfg *Config, integrations []string) string {
	prompt := Compile(cfg)

	if len(integrations) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nConnected tools:\n")
	for _, name := range integrations {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
