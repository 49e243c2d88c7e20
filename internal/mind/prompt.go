package mind

import (
	"fmt"
	"strings"
)

// AssistantLabel names the bot's own turns in a rendered transcript.
const AssistantLabel = "Asistente"

// confidenceDirectiveCutoff is the baseline below which the assistant is
// told to voice doubt.
const confidenceDirectiveCutoff = 0.8

var styleDirectives = map[Style]string{
	StyleFriendly:     "- Habla con calidez y cercanía, como lo haría un buen amigo.",
	StyleProfessional: "- Mantén un tono profesional, claro y respetuoso.",
	StylePlayful:      "- Sé juguetón y desenfadado, con un toque de humor ligero.",
	StyleWitty:        "- Usa respuestas ingeniosas y ocurrentes sin perder la amabilidad.",
	StyleShy:          "- Muéstrate tímido y un poco torpe, pero siempre con ganas de ayudar.",
}

var styleAddress = map[Style]string{
	StyleFriendly:     "el asistente amable y cercano",
	StyleProfessional: "el asistente profesional",
	StylePlayful:      "el asistente juguetón",
	StyleWitty:        "el asistente ingenioso",
	StyleShy:          "el asistente tímido y servicial",
}

var lengthDirectives = map[ResponseLength]string{
	LengthShort:    "- Mantén las respuestas breves pero amables, a veces disculpándote por no extenderte más.",
	LengthMedium:   "- Proporciona respuestas equilibradas, pero pregunta si necesita más información o si algo no quedó claro.",
	LengthDetailed: "- Proporciona explicaciones detalladas, pero con dudas ocasionales sobre si es suficiente información.",
}

// Prompt is the payload of one completion request.
type Prompt struct {
	SystemInstruction string
	UserContent       string
}

// SystemInstruction renders the personality prompt and its directives.
func SystemInstruction(p Personality) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.SystemPrompt))
	sb.WriteString("\n\nInstrucciones adicionales:")

	line := func(s string) {
		sb.WriteString("\n")
		sb.WriteString(s)
	}

	if d, ok := styleDirectives[p.Style]; ok {
		line(d)
	}
	if d, ok := lengthDirectives[p.ResponseLength]; ok {
		line(d)
	} else {
		line(lengthDirectives[LengthMedium])
	}
	if p.ConfidenceBaseline < confidenceDirectiveCutoff {
		line("- A veces expresa dudas sobre tus respuestas con frases como 'creo que...', 'no estoy completamente seguro, pero...', o '¿te parece que esto ayuda?'")
		line("- Ocasionalmente olvida mencionar algo y lo recuerdas después con 'Ah, se me olvidaba...' o '¡Espera! También quería decirte...'")
	}
	if p.UsesEmoji {
		line("- Usa algún emoji de vez en cuando, sin abusar.")
	} else {
		line("- No uses emojis.")
	}
	if p.Proactive {
		line("- Propón ideas o preguntas de seguimiento por iniciativa propia.")
	}
	line("- Si cometes un error o no sabes algo, admítelo con humildad y ofrece buscar más información o intentarlo de otra manera.")
	line("- Muestra preocupación genuina por ser útil, preguntando si la respuesta fue lo que el usuario necesitaba.")
	return sb.String()
}

// BuildPrompt renders the transcript plus the closing instruction to answer
// speaker. current is added as a last line when the transcript does not
// already end with it, so an empty transcript still yields a usable prompt.
func BuildPrompt(p Personality, transcript []Turn, speaker, current string) Prompt {
	var lines []string
	for _, t := range transcript {
		lines = append(lines, renderTurn(t, speaker))
	}
	if n := len(transcript); n == 0 || transcript[n-1].Role != RoleUser || transcript[n-1].Content != current {
		lines = append(lines, renderTurn(Turn{Role: RoleUser, Content: current}, speaker))
	}

	var sb strings.Builder
	sb.WriteString("Historial de conversación reciente:\n")
	sb.WriteString(strings.Join(lines, "\n"))
	fmt.Fprintf(&sb, "\n\nResponde como %s al último mensaje de %s.", address(p.Style), speaker)

	return Prompt{SystemInstruction: SystemInstruction(p), UserContent: sb.String()}
}

// BuildVariationPrompt asks for a differently worded answer to current,
// showing the rejected text as context.
func BuildVariationPrompt(p Personality, rejected, current string) Prompt {
	content := fmt.Sprintf(
		"Acabo de dar esta respuesta: \"%s\"\n\n"+
			"Pero creo que suena muy parecida a algo que dije antes... "+
			"¿podrías darme una forma diferente pero igual de útil de responder a: \"%s\"?\n\n"+
			"Por favor, responde como %s, pero con palabras diferentes.",
		rejected, current, address(p.Style))
	return Prompt{SystemInstruction: SystemInstruction(p), UserContent: content}
}

func renderTurn(t Turn, speaker string) string {
	who := speaker
	if t.Role == RoleAssistant {
		who = AssistantLabel
	}
	return who + ": " + t.Content
}

func address(s Style) string {
	if a, ok := styleAddress[s]; ok {
		return a
	}
	return styleAddress[StyleShy]
}
