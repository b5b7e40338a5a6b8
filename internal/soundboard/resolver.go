package soundboard

import (
	"errors"
	"strings"

	"github.com/agnivade/levenshtein"
)

// EditDistanceThreshold is the largest edit distance still considered a
// plausible typo.
const EditDistanceThreshold = 4

var ErrNoMatch = errors.New("no matching sound")

// MatchOrder controls which fuzzy check runs first when the token is not
// an exact sound name. Historical renditions of this bot disagreed;
// edit-distance-first is canonical here.
type MatchOrder int

const (
	EditDistanceFirst MatchOrder = iota
	SubstringFirst
)

// Match is a resolved sound. Fuzzy is true when the token was not an
// exact name, so replies can say what will play instead.
type Match struct {
	Token    string
	Name     string
	Category string
	Fuzzy    bool
}

// Resolve maps an arbitrary user token to the best-matching sound.
func (idx *Index) Resolve(token string, order MatchOrder) (*Match, error) {
	if category, ok := idx.soundToCategory[token]; ok {
		return &Match{Token: token, Name: token, Category: category}, nil
	}

	var name string
	if order == SubstringFirst {
		name = idx.substringMatch(token)
		if name == "" {
			name = idx.editDistanceMatch(token)
		}
	} else {
		name = idx.editDistanceMatch(token)
		if name == "" {
			name = idx.substringMatch(token)
		}
	}

	if name == "" {
		return nil, ErrNoMatch
	}
	return &Match{Token: token, Name: name, Category: idx.soundToCategory[name], Fuzzy: true}, nil
}

func (idx *Index) editDistanceMatch(token string) string {
	best := ""
	bestDist := 0
	for _, name := range idx.names {
		dist := levenshtein.ComputeDistance(token, name)
		if best == "" || dist < bestDist {
			best = name
			bestDist = dist
		}
	}
	if best == "" || bestDist > EditDistanceThreshold {
		return ""
	}
	return best
}

func (idx *Index) substringMatch(token string) string {
	best := ""
	bestDiff := 0
	for _, name := range idx.names {
		if !strings.Contains(name, token) && !strings.Contains(token, name) {
			continue
		}
		diff := len(name) - len(token)
		if diff < 0 {
			diff = -diff
		}
		if best == "" || diff < bestDiff {
			best = name
			bestDiff = diff
		}
	}
	return best
}
