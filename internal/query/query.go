// Package query turns free text, typed or transcribed from voice, into a
// structured advisory request. It leans on the crop catalog for alias
// resolution so "நெல்", "dhan" and "rice" all land on Paddy.
package query

import (
	"strconv"
	"strings"
	"unicode"
)

// Parsed is the structured form of a farmer query.
type Parsed struct {
	Crop      string  `json:"crop,omitempty"`
	District  string  `json:"district,omitempty"`
	SoilType  string  `json:"soil_type,omitempty"`
	AreaAcres float64 `json:"area_acres,omitempty"`
	Lang      string  `json:"lang"`
}

// Missing lists the required fields the parser could not find. Soil type
// is not required here; the advisory service fills it from the district
// survey when absent.
func (p Parsed) Missing() []string {
	var missing []string
	if p.Crop == "" {
		missing = append(missing, "crop")
	}
	if p.District == "" {
		missing = append(missing, "district")
	}
	if p.AreaAcres <= 0 {
		missing = append(missing, "area")
	}
	return missing
}

// Parser resolves tokens against the live catalog.
type Parser struct {
	resolveCrop func(string) (string, bool)
	districts   func() []string
}

func NewParser(resolveCrop func(string) (string, bool), districts func() []string) *Parser {
	return &Parser{resolveCrop: resolveCrop, districts: districts}
}

// Parse extracts crop, district, soil and area from the text. langHint
// overrides script detection when the client already knows the language.
func (p *Parser) Parse(text, langHint string) Parsed {
	out := Parsed{Lang: langHint}
	if out.Lang == "" {
		out.Lang = detectLang(text)
	}

	tokens := tokenize(text)

	// area: a number followed by a unit word
	for i, tok := range tokens {
		factor, ok := unitWords[tok]
		if !ok || i == 0 {
			continue
		}
		if v, err := strconv.ParseFloat(tokens[i-1], 64); err == nil && v > 0 {
			out.AreaAcres = v * factor
			break
		}
	}

	districtSet := make(map[string]string)
	for _, d := range p.districts() {
		districtSet[strings.ToLower(d)] = d
	}

	tryPhrase := func(phrase string) {
		if out.SoilType == "" {
			if soil, ok := soilWords[phrase]; ok {
				out.SoilType = soil
				return
			}
		}
		if out.District == "" {
			if d, ok := districtSet[phrase]; ok {
				out.District = d
				return
			}
		}
		if out.Crop == "" {
			if crop, ok := p.resolveCrop(phrase); ok {
				out.Crop = crop
			}
		}
	}

	for i, tok := range tokens {
		tryPhrase(tok)
		if i+1 < len(tokens) {
			tryPhrase(tok + " " + tokens[i+1])
		}
	}
	return out
}

// tokenize lowercases and splits on anything that is not a letter, digit
// or decimal point, folding Devanagari digits to ASCII.
func tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.Trim(b.String(), "."))
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= '०' && r <= '९': // Devanagari digits
			b.WriteRune('0' + (r - '०'))
		// combining marks carry the vowel signs of Tamil and Devanagari
		case unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r) || r == '.':
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// detectLang picks the language from the dominant script.
func detectLang(text string) string {
	devanagari, tamil := 0, 0
	for _, r := range text {
		switch {
		case r >= 0x0900 && r <= 0x097F:
			devanagari++
		case r >= 0x0B80 && r <= 0x0BFF:
			tamil++
		}
	}
	switch {
	case tamil > 0 && tamil >= devanagari:
		return "ta"
	case devanagari > 0:
		return "hi"
	default:
		return "en"
	}
}
