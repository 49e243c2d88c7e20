package mind

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence(t *testing.T) {
	long := strings.Repeat("palabra ", 10)
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"plain long", long, 0.7},
		{"short", "Vale.", 0.6},
		{"hedging", long + "creo que sí", 0.5},
		{"hedging and short", "Tal vez.", 0.4},
		{"help question", long + "¿Te ayuda esto?", 0.8},
		{"question without help", long + "¿Seguro?", 0.7},
		{"help without question", long + "espero que ayude", 0.7},
		{"closing mark only", long + "Te ayuda esto?", 0.7},
		{"english help", long + "¿Need some help?", 0.7},
		{"uppercase hedging", long + "QUIZÁS mañana", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(0.7, tt.text), 1e-9)
		})
	}
}

func TestConfidenceClamped(t *testing.T) {
	assert.InDelta(t, 0.1, Confidence(0.1, "tal vez"), 1e-9)
	assert.InDelta(t, 1.0, Confidence(1.0, strings.Repeat("x ", 40)+"¿ayuda?"), 1e-9)
}

func TestConfidenceCountsRunes(t *testing.T) {
	text := strings.Repeat("ñ", 50)
	assert.InDelta(t, 0.7, Confidence(0.7, text), 1e-9)
}
