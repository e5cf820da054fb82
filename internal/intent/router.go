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

package intent

import "strings"

// Intent is the classified purpose of an inbound message
type Intent string

const (
	Setup   Intent = "setup"
	Task    Intent = "task"
	Account Intent = "account"
	Help    Intent = "help"
)

// Keyword sets checked in priority order Setup > Account > Help, with
// Task as the default. The ordering is a deliberate tie-break: "help me
// configure" matches Setup first even though it also suggests Task.
var (
	setupKeywords = []string{
		"connect", "add", "change", "configure", "set up", "link",
		"integrate", "setup", "install", "enable", "activate",
	}

	accountKeywords = []string{
		"credits", "balance", "buy", "purchase", "payment",
		"subscription", "plan", "billing", "how many credits",
	}

	helpKeywords = []string{
		"help", "what can you", "how do i", "how to", "?",
		"explain", "assist", "support",
	}
)

// handlerNames binds each intent to its handler at compile time
var handlerNames = map[Intent]string{
	Setup:   "setup_orchestrator",
	Task:    "agent_engine",
	Account: "account_manager",
	Help:    "help_responder",
}

// Route is the resolved destination for an inbound message
type Route struct {
	Intent     Intent  `json:"intent"`
	Handler    string  `json:"handler"`
	Confidence float64 `json:"confidence"`
}

// Classify maps a message to an intent by case-insensitive substring
// match against the fixed keyword sets
func Classify(message string) Intent {
	lower := strings.ToLower(message)

	for _, keyword := range setupKeywords {
		if strings.Contains(lower, keyword) {
			return Setup
		}
	}
	for _, keyword := range accountKeywords {
		if strings.Contains(lower, keyword) {
			return Account
		}
	}
	for _, keyword := range helpKeywords {
		if strings.Contains(lower, keyword) {
			return Help
		}
	}

	return Task
}

// RouteMessage wraps classification with the static handler map.
// Confidence scoring is unimplemented upstream; a constant is returned.
func RouteMessage(message string) Route {
	classified := Classify(message)
	return Route{
		Intent:     classified,
		Handler:    handlerNames[classified],
		Confidence: 0.9,
	}
}
