package service

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"buggy/internal/domain"
)

// MatchReason names the pass that produced a candidate.
type MatchReason string

const (
	ReasonExactID   MatchReason = "exact_id"
	ReasonExactName MatchReason = "exact_name"
	ReasonSynonym   MatchReason = "synonym"
	ReasonFuzzy     MatchReason = "fuzzy"
	ReasonCategory  MatchReason = "category_keyword"
)

// RankedMatch is one candidate location with its confidence score.
type RankedMatch struct {
	Location   domain.Location `json:"location"`
	Confidence int             `json:"confidence"`
	Reason     MatchReason     `json:"reason"`
}

// MatchContext carries conversational state that nudges ranking.
type MatchContext struct {
	PreviousPickup      string
	PreviousDestination string
	CurrentStep         string // "pickup" or "destination"
}

// MatchResult is the ranked outcome of a smart match.
type MatchResult struct {
	Matches       []RankedMatch `json:"matches"`
	TopSuggestion *RankedMatch  `json:"top_suggestion,omitempty"`
	Alternatives  []RankedMatch `json:"alternatives"`
	HasExactMatch bool          `json:"has_exact_match"`
}

const (
	fuzzyAcceptSimilarity = 70
	maxKeptMatches        = 5
	maxAlternatives       = 3
)

// SmartMatchService ranks directory locations against free-text guest
// input. It is pure with respect to ride state and is shared by the
// guest suggestion flow and voice-command interpretation.
type SmartMatchService struct {
	data *MatchData
}

// NewSmartMatchService creates a smart match service over the given
// match data tables.
func NewSmartMatchService(data *MatchData) *SmartMatchService {
	if data == nil {
		data = DefaultMatchData()
	}
	return &SmartMatchService{data: data}
}

// Match runs the strictly ordered matching passes and returns ranked,
// deduplicated candidates. Empty or whitespace-only input yields an
// empty result, not an error.
func (s *SmartMatchService) Match(input string, directory []domain.Location, mctx *MatchContext) MatchResult {
	normalized := normalizeText(input)
	if normalized == "" {
		return MatchResult{Alternatives: []RankedMatch{}, Matches: []RankedMatch{}}
	}

	var matches []RankedMatch
	seen := make(map[string]bool)

	add := func(loc domain.Location, confidence int, reason MatchReason) {
		key := loc.ID
		if key == "" {
			key = strings.ToLower(loc.Name)
		}
		if seen[key] {
			return
		}
		seen[key] = true
		matches = append(matches, RankedMatch{Location: loc, Confidence: confidence, Reason: reason})
	}

	// Pass 1: exact short-ID match.
	for _, loc := range directory {
		if loc.ID != "" && strings.EqualFold(normalized, loc.ID) {
			add(loc, 100, ReasonExactID)
		}
	}

	// Pass 2: exact name match.
	for _, loc := range directory {
		if normalizeText(loc.Name) == normalized {
			boost := s.contextBoost(loc, mctx)
			add(loc, minInt(100, 95+boost), ReasonExactName)
		}
	}

	// Pass 3: synonym table; substring containment in either direction.
	// Aliases are walked in sorted order so rankings are reproducible.
	aliases := make([]string, 0, len(s.data.Synonyms))
	for alias := range s.data.Synonyms {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		canonical := s.data.Synonyms[alias]
		aliasNorm := normalizeText(alias)
		if aliasNorm == "" {
			continue
		}
		if !strings.Contains(normalized, aliasNorm) && !strings.Contains(aliasNorm, normalized) {
			continue
		}
		for _, loc := range directory {
			if strings.EqualFold(strings.TrimSpace(loc.Name), canonical) {
				boost := s.contextBoost(loc, mctx)
				add(loc, minInt(95, 90+boost), ReasonSynonym)
			}
		}
	}

	// Pass 4: fuzzy match against name and short ID.
	for _, loc := range directory {
		similarity := maxInt(
			similarityPercent(normalized, normalizeText(loc.Name)),
			similarityPercent(normalized, strings.ToLower(loc.ID)),
		)
		if similarity >= fuzzyAcceptSimilarity {
			boost := s.contextBoost(loc, mctx)
			add(loc, minInt(100, similarity+boost), ReasonFuzzy)
		}
	}

	// Pass 5: category keyword match.
	if category, ok := s.inferCategory(normalized); ok {
		for _, loc := range directory {
			if loc.Category == category {
				boost := s.contextBoost(loc, mctx)
				add(loc, minInt(80, 60+boost), ReasonCategory)
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > maxKeptMatches {
		matches = matches[:maxKeptMatches]
	}

	result := MatchResult{Matches: matches, Alternatives: []RankedMatch{}}
	if len(matches) > 0 {
		top := matches[0]
		result.TopSuggestion = &top
		end := minInt(len(matches), 1+maxAlternatives)
		result.Alternatives = append(result.Alternatives, matches[1:end]...)
	}
	for _, m := range matches {
		if m.Confidence >= 95 && m.Reason != ReasonCategory {
			result.HasExactMatch = true
			break
		}
	}

	return result
}

// contextBoost rewards candidates that fit the conversational flow.
// Boosts are additive across rules.
func (s *SmartMatchService) contextBoost(loc domain.Location, mctx *MatchContext) int {
	if mctx == nil {
		return 0
	}

	boost := 0
	isOuting := loc.Category == domain.CategoryRestaurant || loc.Category == domain.CategoryFacility

	prevPickup := strings.ToLower(mctx.PreviousPickup)
	if isOuting && looksLikeVillaRef(prevPickup) {
		boost += 15
	}
	if isOuting && mctx.CurrentStep == "destination" && strings.Contains(prevPickup, "lobby") {
		boost += 10
	}

	return boost
}

func looksLikeVillaRef(ref string) bool {
	return strings.Contains(ref, "villa") || strings.Contains(ref, "room") || strings.Contains(ref, "phòng")
}

// inferCategory returns the first category whose keyword bucket
// contains a term present in the input.
func (s *SmartMatchService) inferCategory(normalized string) (domain.LocationCategory, bool) {
	// Deterministic bucket order keeps results stable across calls.
	order := []domain.LocationCategory{
		domain.CategoryRestaurant,
		domain.CategoryFacility,
		domain.CategoryVilla,
		domain.CategoryOther,
	}
	for _, category := range order {
		for _, keyword := range s.data.CategoryKeywords[category] {
			if strings.Contains(normalized, normalizeText(keyword)) {
				return category, true
			}
		}
	}
	return "", false
}

// normalizeText applies NFC normalization, case folding, and whitespace
// collapsing so "Lagoon  Pool" and "lagoon pool" compare equal.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// similarityPercent converts edit distance into a 0..100 similarity.
func similarityPercent(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	ra, rb := []rune(a), []rune(b)
	longest := maxInt(len(ra), len(rb))
	dist := levenshtein(ra, rb)
	return int((1.0 - float64(dist)/float64(longest)) * 100)
}

// levenshtein computes edit distance with a two-row rolling buffer.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(minInt(curr[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
