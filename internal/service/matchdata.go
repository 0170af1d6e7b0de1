package service

import (
	"encoding/json"
	"fmt"
	"os"

	"buggy/internal/domain"
)

// MatchData holds the externally configurable tables behind location
// resolution and smart matching: natural-language synonyms, category
// keyword buckets, and the explicit room-to-location mapping. Keeping
// these as data lets a resort swap in its own names and languages
// without a rebuild.
type MatchData struct {
	// Synonyms maps a lowercase alias to a canonical location name.
	Synonyms map[string]string `json:"synonyms"`

	// CategoryKeywords maps a category to lowercase keywords that
	// imply it ("pool" implies FACILITY, "dinner" implies RESTAURANT).
	CategoryKeywords map[domain.LocationCategory][]string `json:"category_keywords"`

	// Rooms maps a room number to the location ID or name of the villa
	// that houses it. Room references resolve only through this table.
	Rooms map[string]string `json:"rooms"`
}

// DefaultMatchData returns the built-in tables. They cover the common
// English plus Vietnamese phrases heard at the resort's front desk.
func DefaultMatchData() *MatchData {
	return &MatchData{
		Synonyms: map[string]string{
			"lobby":           "Main Lobby",
			"reception":       "Main Lobby",
			"front desk":      "Main Lobby",
			"the pool":        "Lagoon Pool",
			"swimming pool":   "Lagoon Pool",
			"main pool":       "Lagoon Pool",
			"beach":           "Beach Club",
			"beach bar":       "Beach Club",
			"gym":             "Fitness Center",
			"fitness":         "Fitness Center",
			"spa":             "Serenity Spa",
			"massage":         "Serenity Spa",
			"breakfast":       "Garden Restaurant",
			"main restaurant": "Garden Restaurant",
			"kids club":       "Kids Club",
			"tennis":          "Tennis Courts",
		},
		CategoryKeywords: map[domain.LocationCategory][]string{
			domain.CategoryRestaurant: {
				"restaurant", "dinner", "lunch", "breakfast", "eat",
				"food", "bar", "cafe", "nhà hàng", "ăn",
			},
			domain.CategoryFacility: {
				"pool", "swim", "beach", "gym", "spa", "fitness",
				"tennis", "club", "hồ bơi", "bãi biển",
			},
			domain.CategoryVilla: {
				"villa", "room", "suite", "bungalow", "phòng",
			},
		},
		Rooms: map[string]string{},
	}
}

// LoadMatchData reads match data from a JSON file. An empty path
// returns the built-in defaults. Missing sections in the file fall
// back to the defaults for that section.
func LoadMatchData(path string) (*MatchData, error) {
	defaults := DefaultMatchData()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read match data: %w", err)
	}

	var loaded MatchData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse match data: %w", err)
	}

	if loaded.Synonyms == nil {
		loaded.Synonyms = defaults.Synonyms
	}
	if loaded.CategoryKeywords == nil {
		loaded.CategoryKeywords = defaults.CategoryKeywords
	}
	if loaded.Rooms == nil {
		loaded.Rooms = defaults.Rooms
	}

	return &loaded, nil
}
