package debate

import (
	"fmt"
	"strings"

	llmModels "llmarena/internal/domain/models/llm"
)

// intensityInstructions are indexed by adversarial level (1..4)
var intensityInstructions = map[int]string{
	1: "Keep the exchange collegial. Acknowledge strong points from your opponent before offering your own view, and look for common ground.",
	2: "Argue your side firmly but fairly. Concede what is clearly true and push back where the reasoning is weak.",
	3: "Debate assertively. Challenge your opponent's claims directly, expose gaps in their evidence, and defend your position without conceding ground you do not have to.",
	4: "Be maximally adversarial within the bounds of honesty. Dismantle your opponent's argument point by point, press every weakness, and never soften your stance.",
}

// IntensityInstruction returns the wording for an adversarial level, clamped to the valid range
func IntensityInstruction(level int) string {
	if level < llmModels.MinAdversarialLevel {
		level = llmModels.MinAdversarialLevel
	}
	if level > llmModels.MaxAdversarialLevel {
		level = llmModels.MaxAdversarialLevel
	}
	return intensityInstructions[level]
}

func systemPrompt(topic, role string, intensity, turnNumber int) string {
	stance := "in favor of"
	if role == llmModels.DebateRoleNegative {
		stance = "against"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are taking part in a structured debate as the %s side.\n", role)
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "You argue %s the topic. This is turn %d.\n\n", stance, turnNumber)
	b.WriteString(IntensityInstruction(intensity))
	b.WriteString("\n\nRespond with your argument only. Stay under 300 words and do not break character.")
	return b.String()
}

func openingPrompt(topic string) string {
	return fmt.Sprintf("Open the debate on \"%s\". Present your strongest opening argument.", topic)
}

func rebuttalPrompt(opponent string) string {
	return fmt.Sprintf("Your opponent said:\n\n%s\n\nRespond to their argument and advance your own.", opponent)
}
