package brand

import (
	"math/rand"
	"testing"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestFontConsistency(t *testing.T) {
	kit := blackboard.DefaultBrandKit()

	t.Run("unmatched font costs 0.3 and is named", func(t *testing.T) {
		score := Evaluate(kit, Content{Fonts: []string{"Comic Sans"}})
		assert.InDelta(t, 0.7, score.Font.Score, tolerance)
		require.Len(t, score.Font.Issues, 1)
		assert.Contains(t, score.Font.Issues[0], "Comic Sans")
	})

	t.Run("font containing a brand font name matches case-insensitively", func(t *testing.T) {
		score := Evaluate(kit, Content{Fonts: []string{"inter semibold", "JETBRAINS MONO NL"}})
		assert.InDelta(t, 1.0, score.Font.Score, tolerance)
		assert.Empty(t, score.Font.Issues)
	})

	t.Run("score floors at zero", func(t *testing.T) {
		score := Evaluate(kit, Content{Fonts: []string{"A", "B", "C", "D"}})
		assert.Equal(t, 0.0, score.Font.Score)
		require.Len(t, score.Font.Issues, 1)
		assert.Contains(t, score.Font.Issues[0], "A, B, C, D")
	})
}

func TestColorConsistency(t *testing.T) {
	kit := blackboard.DefaultBrandKit()

	t.Run("palette colours match case-insensitively", func(t *testing.T) {
		score := Evaluate(kit, Content{Colors: []string{"#6366F1", "#FFFFFF"}})
		assert.InDelta(t, 1.0, score.Color.Score, tolerance)
		assert.Empty(t, score.Color.Issues)
	})

	t.Run("unmatched colours are batched into one issue", func(t *testing.T) {
		score := Evaluate(kit, Content{Colors: []string{"#ff0000", "#6366f1", "#00ff00"}})
		assert.InDelta(t, 0.6, score.Color.Score, tolerance)
		require.Len(t, score.Color.Issues, 1)
		assert.Equal(t, "Non-brand colors detected: #ff0000, #00ff00", score.Color.Issues[0])
	})

	t.Run("score floors at zero", func(t *testing.T) {
		score := Evaluate(kit, Content{Colors: []string{"1", "2", "3", "4", "5", "6"}})
		assert.Equal(t, 0.0, score.Color.Score)
	})
}

func TestTonalityMatch(t *testing.T) {
	tests := []struct {
		name      string
		tonality  blackboard.Tonality
		tone      string
		expected  float64
		hasIssues bool
	}{
		{"professional hit", blackboard.TonalityProfessional, "A Business update", 0.9, false},
		{"professional miss", blackboard.TonalityProfessional, "wild party", 0.5, true},
		{"casual hit", blackboard.TonalityCasual, "friendly chat", 0.9, false},
		{"energetic hit", blackboard.TonalityEnergetic, "High ENERGY", 0.9, false},
		{"calm hit", blackboard.TonalityCalm, "peaceful evening", 0.9, false},
		{"calm miss on empty tone", blackboard.TonalityCalm, "", 0.5, true},
		{"unknown tonality", blackboard.Tonality("quirky"), "anything", 0.7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kit := blackboard.DefaultBrandKit()
			kit.Guidelines.Tonality = tt.tonality

			score := Evaluate(kit, Content{Tone: tt.tone})
			assert.InDelta(t, tt.expected, score.Tonality.Score, tolerance)
			if tt.hasIssues {
				require.Len(t, score.Tonality.Issues, 1)
				assert.Contains(t, score.Tonality.Issues[0], string(tt.tonality))
			} else {
				assert.Empty(t, score.Tonality.Issues)
			}
		})
	}
}

func TestOverallIsMeanAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	palette := []string{"#6366f1", "#8B5CF6", "#123456", "#abcdef", "red", "#1f2937"}
	fonts := []string{"Inter", "Comic Sans", "Papyrus", "JetBrains Mono", "Arial"}
	tones := []string{"", "business", "dynamic energy", "calm", "friendly", "loud"}
	tonalities := []blackboard.Tonality{
		blackboard.TonalityProfessional, blackboard.TonalityCasual,
		blackboard.TonalityEnergetic, blackboard.TonalityCalm, "unknown",
	}

	pick := func(pool []string) []string {
		n := rng.Intn(8)
		out := make([]string, n)
		for i := range out {
			out[i] = pool[rng.Intn(len(pool))]
		}
		return out
	}

	for i := 0; i < 500; i++ {
		kit := blackboard.DefaultBrandKit()
		kit.Guidelines.Tonality = tonalities[rng.Intn(len(tonalities))]
		content := Content{Colors: pick(palette), Fonts: pick(fonts), Tone: tones[rng.Intn(len(tones))]}

		score := Evaluate(kit, content)
		for _, sub := range []float64{score.Color.Score, score.Font.Score, score.Tonality.Score, score.Overall} {
			assert.GreaterOrEqual(t, sub, 0.0)
			assert.LessOrEqual(t, sub, 1.0)
		}
		mean := (score.Color.Score + score.Font.Score + score.Tonality.Score) / 3
		assert.InDelta(t, mean, score.Overall, tolerance)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	kit := blackboard.DefaultBrandKit()
	content := Content{Colors: []string{"#000"}, Fonts: []string{"Comic Sans"}, Tone: "loud"}

	first := Evaluate(kit, content)
	second := Evaluate(kit, content)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{
		"Non-brand colors detected: #000",
		"Non-brand fonts detected: Comic Sans",
		"Tone mismatch: expected professional, detected tone doesn't align",
	}, first.Issues())
}
