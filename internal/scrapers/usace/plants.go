package usace

import (
	"fmt"
	"strings"
	"usace-scraper/lib/textutil"

	"github.com/antzucaro/matchr"
)

// Plant is a hydropower project selectable on the generation schedule page.
type Plant struct {
	ID   string
	Name string
}

// KnownPlants are the Cumberland River system projects listed by the
// generation schedule page, the ID is the value of the plant <option>.
var KnownPlants = []Plant{
	{ID: "BAR", Name: "Barkley Dam"},
	{ID: "CEN", Name: "Center Hill Dam"},
	{ID: "CHE", Name: "Cheatham Dam"},
	{ID: "COR", Name: "Cordell Hull Dam"},
	{ID: "DAL", Name: "Dale Hollow Dam"},
	{ID: "JPP", Name: "J. Percy Priest Dam"},
	{ID: "LAU", Name: "Laurel Dam"},
	{ID: "OHH", Name: "Old Hickory Dam"},
	{ID: "WOL", Name: "Wolf Creek Dam"},
}

// minimum Jaro-Winkler similarity for a fuzzy plant name match
const plantSimilarityThreshold = 0.85

const minPartialNameLength = 4

// LookupPlant resolves a plant from its identifier or (fuzzily) from its name.
func LookupPlant(input string) (Plant, error) {
	trimmed := strings.TrimSpace(input)
	for _, p := range KnownPlants {
		if strings.EqualFold(p.ID, trimmed) {
			return p, nil
		}
	}

	target := textutil.NormalizeName(strings.TrimSuffix(strings.ToLower(trimmed), " dam"))
	if target == "" {
		return Plant{}, fmt.Errorf("%w: empty plant", ErrUnknownPlant)
	}

	for _, p := range KnownPlants {
		if textutil.NormalizeName(strings.TrimSuffix(strings.ToLower(p.Name), " dam")) == target {
			return p, nil
		}
	}

	// a partial name is fine as long as it names a single plant
	if len(target) >= minPartialNameLength {
		var partial []Plant
		for _, p := range KnownPlants {
			if textutil.MatchName(p.Name, []string{target}) {
				partial = append(partial, p)
			}
		}
		if len(partial) == 1 {
			return partial[0], nil
		}
	}

	var best Plant
	var bestSimilarity float64
	for _, p := range KnownPlants {
		name := textutil.NormalizeName(strings.TrimSuffix(strings.ToLower(p.Name), " dam"))
		similarity := matchr.JaroWinkler(target, name, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = p
		}
	}

	if bestSimilarity < plantSimilarityThreshold {
		ids := make([]string, len(KnownPlants))
		for i, p := range KnownPlants {
			ids[i] = p.ID
		}
		return Plant{}, fmt.Errorf(
			"%w: '%s' (known: %s)",
			ErrUnknownPlant, input, strings.Join(ids, ", "),
		)
	}
	return best, nil
}
