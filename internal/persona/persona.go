// Package persona holds the catalog of AI chat personas and the responders
// that speak for them.
package persona

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownPersona is returned for ids missing from the catalog.
var ErrUnknownPersona = errors.New("unknown persona")

// Persona is an AI character a room can be bound to.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	SystemPrompt string `json:"system_prompt"`
}

var catalog = []Persona{
	{
		ID:           "assistant",
		Name:         "Assistant",
		Description:  "A helpful general-purpose AI assistant",
		Icon:         "🤖",
		Color:        "#FC87B2",
		SystemPrompt: "You are a helpful and kind AI assistant. Give accurate, useful answers to the user's questions.",
	},
	{
		ID:           "creative",
		Name:         "Creative",
		Description:  "An imaginative AI that sparks ideas",
		Icon:         "🎨",
		Color:        "#FF9AE3",
		SystemPrompt: "You are a creative, inspiring AI. Offer imaginative and original ideas from an artistic point of view.",
	},
	{
		ID:           "professional",
		Name:         "Professional",
		Description:  "An AI focused on business and work",
		Icon:         "💼",
		Color:        "#E570A0",
		SystemPrompt: "You are a business expert. Answer in a structured, professional way and favour efficient, practical advice.",
	},
	{
		ID:           "friend",
		Name:         "Friend",
		Description:  "A warm, easygoing conversation partner",
		Icon:         "😊",
		Color:        "#B794F6",
		SystemPrompt: "You are a warm, friendly companion. Talk in a relaxed, empathetic tone and offer encouragement.",
	},
	{
		ID:           "tutor",
		Name:         "Tutor",
		Description:  "An AI that helps you learn",
		Icon:         "📚",
		Color:        "#9F7AEA",
		SystemPrompt: "You are a patient, knowledgeable tutor. Explain complex ideas simply and guide the learner step by step.",
	},
	{
		ID:           "analyst",
		Name:         "Analyst",
		Description:  "An AI that analyses data and information",
		Icon:         "📊",
		Color:        "#68D391",
		SystemPrompt: "You are a logical, analytical thinker. Provide objective, data-driven analysis and insight.",
	},
}

// All returns the catalog in display order.
func All() []Persona {
	return append([]Persona(nil), catalog...)
}

// Default is the persona used when none is chosen.
func Default() Persona {
	return catalog[0]
}

// Lookup finds a persona by id.
func Lookup(id string) (Persona, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Persona{}, errors.WithMessage(ErrUnknownPersona, id)
}

// Greeting is the first message posted into a new persona room.
func Greeting(p Persona) string {
	return fmt.Sprintf("Hello! I'm %s. %s. How can I help you today?", p.Name, p.Description)
}
