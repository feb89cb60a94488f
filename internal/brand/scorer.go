// Package brand measures how closely a candidate effect's content follows a
// creator's brand kit. It only measures; admission decisions are made by the
// orchestrator.
package brand

import (
	"fmt"
	"strings"

	"github.com/dyluth/vibelayer/pkg/blackboard"
)

// Scoring constants.
const (
	colorPenalty = 0.2
	fontPenalty  = 0.3

	tonalityHit     = 0.9
	tonalityMiss    = 0.5
	tonalityUnknown = 0.7

	// Tonality scores below this record a mismatch issue.
	tonalityIssueBelow = 0.7
)

// tonalityIndicators maps each declared tonality to the substrings that
// indicate a matching tone in content.
var tonalityIndicators = map[blackboard.Tonality][]string{
	blackboard.TonalityProfessional: {"professional", "business"},
	blackboard.TonalityCasual:       {"casual", "friendly"},
	blackboard.TonalityEnergetic:    {"energy", "dynamic"},
	blackboard.TonalityCalm:         {"calm", "peaceful"},
}

// Content is the set of brand-relevant attributes declared by a candidate effect.
type Content struct {
	Colors []string
	Fonts  []string
	Tone   string
}

// SubScore is one dimension of a brand score with its issues in detection order.
type SubScore struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues"`
}

// Score is the result of a single evaluation. It is computed fresh each time
// and never mutated after construction.
type Score struct {
	Overall  float64  `json:"overall"`
	Color    SubScore `json:"color"`
	Font     SubScore `json:"font"`
	Tonality SubScore `json:"tonality"`
}

// Issues returns every issue across the three dimensions in color, font, tonality order.
func (s Score) Issues() []string {
	issues := make([]string, 0, len(s.Color.Issues)+len(s.Font.Issues)+len(s.Tonality.Issues))
	issues = append(issues, s.Color.Issues...)
	issues = append(issues, s.Font.Issues...)
	issues = append(issues, s.Tonality.Issues...)
	return issues
}

// Evaluate scores content against a brand kit. It is deterministic and
// performs no I/O.
func Evaluate(kit *blackboard.BrandKit, content Content) Score {
	color := scoreColors(kit.Colors, content.Colors)
	font := scoreFonts(kit.Fonts, content.Fonts)
	tonality := scoreTonality(kit.Guidelines.Tonality, content.Tone)

	return Score{
		Overall:  (color.Score + font.Score + tonality.Score) / 3,
		Color:    color,
		Font:     font,
		Tonality: tonality,
	}
}

func scoreColors(palette blackboard.ColorPalette, colors []string) SubScore {
	roles := palette.Roles()

	var unmatched []string
	for _, c := range colors {
		if !matchesAny(c, roles) {
			unmatched = append(unmatched, c)
		}
	}

	result := SubScore{Score: 1.0, Issues: []string{}}
	if len(unmatched) > 0 {
		result.Score = floor(1.0 - float64(len(unmatched))*colorPenalty)
		result.Issues = append(result.Issues, fmt.Sprintf("Non-brand colors detected: %s", strings.Join(unmatched, ", ")))
	}
	return result
}

func matchesAny(color string, roles []string) bool {
	for _, role := range roles {
		if strings.EqualFold(color, role) {
			return true
		}
	}
	return false
}

func scoreFonts(brandFonts blackboard.BrandFonts, fonts []string) SubScore {
	primary := strings.ToLower(brandFonts.Primary)
	secondary := strings.ToLower(brandFonts.Secondary)

	var unmatched []string
	for _, f := range fonts {
		name := strings.ToLower(f)
		if !strings.Contains(name, primary) && !strings.Contains(name, secondary) {
			unmatched = append(unmatched, f)
		}
	}

	result := SubScore{Score: 1.0, Issues: []string{}}
	if len(unmatched) > 0 {
		result.Score = floor(1.0 - float64(len(unmatched))*fontPenalty)
		result.Issues = append(result.Issues, fmt.Sprintf("Non-brand fonts detected: %s", strings.Join(unmatched, ", ")))
	}
	return result
}

func scoreTonality(expected blackboard.Tonality, tone string) SubScore {
	result := SubScore{Score: tonalityUnknown, Issues: []string{}}

	if indicators, ok := tonalityIndicators[expected]; ok {
		result.Score = tonalityMiss
		lower := strings.ToLower(tone)
		for _, indicator := range indicators {
			if strings.Contains(lower, indicator) {
				result.Score = tonalityHit
				break
			}
		}
	}

	if result.Score < tonalityIssueBelow {
		result.Issues = append(result.Issues, fmt.Sprintf("Tone mismatch: expected %s, detected tone doesn't align", expected))
	}
	return result
}

func floor(score float64) float64 {
	if score < 0 {
		return 0
	}
	return score
}
