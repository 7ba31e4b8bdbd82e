package scorer

import (
	"math"
	"strings"

	"github.com/sells-group/bom-matcher/internal/config"
	"github.com/sells-group/bom-matcher/internal/model"
)

// neutral is the signal value used when either side lacks the field.
const neutral = 0.5

// minPrefixLen is the shortest token allowed to match another token by prefix.
const minPrefixLen = 2

// prefixPairWeight is what a prefix pair counts for against an exact pair.
const prefixPairWeight = 0.75

// Signals holds each normalized component of a score, before weighting.
type Signals struct {
	Name       float64 `json:"name"`
	PartNumber float64 `json:"part_number"`
	Vendor     float64 `json:"vendor"`
	Unit       float64 `json:"unit"`
	Total      float64 `json:"total"`
}

// Scorer computes weighted similarity. It holds no mutable state and is safe
// for concurrent use.
type Scorer struct {
	weights config.WeightsConfig
	sum     float64
}

// New returns a Scorer using the given weights.
func New(w config.WeightsConfig) (*Scorer, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	return &Scorer{weights: w, sum: WeightSum(w)}, nil
}

// Default returns a Scorer with DefaultWeights.
func Default() *Scorer {
	s, _ := New(DefaultWeights())
	return s
}

// Weights returns the configured weights.
func (s *Scorer) Weights() config.WeightsConfig {
	return s.weights
}

// Score returns the similarity of a material and a supplier item in [0,1].
func (s *Scorer) Score(m model.ExtractedMaterial, item model.SupplierItem) float64 {
	return s.Detail(m, item).Total
}

// Detail returns the per-signal breakdown along with the weighted total.
func (s *Scorer) Detail(m model.ExtractedMaterial, item model.SupplierItem) Signals {
	sig := Signals{
		Name:       NameSimilarity(m.MaterialName, item.ItemName),
		PartNumber: partNumberSignal(m.PartNumber, item.PartNumber),
		Vendor:     vendorSignal(m.VendorName, item.VendorName),
		Unit:       unitSignal(m.Unit(), item.UnitOfMeasure),
	}
	total := (s.weights.Name*sig.Name +
		s.weights.PartNumber*sig.PartNumber +
		s.weights.Vendor*sig.Vendor +
		s.weights.Unit*sig.Unit) / s.sum
	sig.Total = clamp01(total)
	return sig
}

// Best returns the index and score of the best supplier item for m. Ties go
// to an exact part-number match, then to the earliest item. Index is -1 and
// score 0 when items is empty.
func (s *Scorer) Best(m model.ExtractedMaterial, items []model.SupplierItem) (int, float64) {
	bestIdx, bestScore, bestExact := -1, 0.0, false
	for i, item := range items {
		score := s.Score(m, item)
		exact := PartNumbersEqual(m.PartNumber, item.PartNumber)
		switch {
		case bestIdx < 0, score > bestScore:
		case score == bestScore && exact && !bestExact:
		default:
			continue
		}
		bestIdx, bestScore, bestExact = i, score, exact
	}
	if bestIdx < 0 {
		return -1, 0
	}
	return bestIdx, bestScore
}

// PartNumbersEqual reports whether both part numbers are present and equal
// after normalization.
func PartNumbersEqual(a, b string) bool {
	na, nb := NormalizePartNumber(a), NormalizePartNumber(b)
	return na != "" && na == nb
}

// NameSimilarity is the larger of a prefix-aware token Dice coefficient and a
// character edit-distance ratio over the normalized names.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return math.Max(tokenDice(tokens(na), tokens(nb)), levenshteinRatio(na, nb))
}

func partNumberSignal(a, b string) float64 {
	na, nb := NormalizePartNumber(a), NormalizePartNumber(b)
	if na == "" || nb == "" {
		return neutral
	}
	if na == nb {
		return 1
	}
	return 0
}

// vendorSignal treats a missing vendor like a missing part number: neutral,
// not a mismatch.
func vendorSignal(a, b string) float64 {
	na, nb := normalizeVendor(a), normalizeVendor(b)
	if na == "" || nb == "" {
		return neutral
	}
	if na == nb {
		return 1
	}
	return 0
}

func unitSignal(a, b string) float64 {
	if NormalizeUnit(a) == "" || NormalizeUnit(b) == "" {
		return neutral
	}
	if UnitsCompatible(a, b) {
		return 1
	}
	return 0
}

// tokenDice pairs tokens greedily, exact matches first, then prefix matches
// ("m6" pairs with "m6x20"), and returns 2*pairs / (len(a)+len(b)). A prefix
// pair counts for prefixPairWeight of an exact pair.
func tokenDice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	usedA := make([]bool, len(a))
	usedB := make([]bool, len(b))
	pairs := 0.0

	for i, ta := range a {
		for j, tb := range b {
			if !usedB[j] && ta == tb {
				usedA[i], usedB[j] = true, true
				pairs++
				break
			}
		}
	}
	for i, ta := range a {
		if usedA[i] {
			continue
		}
		for j, tb := range b {
			if !usedB[j] && prefixRelated(ta, tb) {
				usedA[i], usedB[j] = true, true
				pairs += prefixPairWeight
				break
			}
		}
	}
	return 2 * pairs / float64(len(a)+len(b))
}

// prefixRelated reports whether the shorter token starts the longer one
// without splitting a number: "m6" and "m6x20" are related, "m6" and "m64"
// or "10" and "100" are not.
func prefixRelated(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) < minPrefixLen || len(a) == len(b) || !strings.HasPrefix(b, a) {
		return false
	}
	return !(isDigit(a[len(a)-1]) && isDigit(b[len(a)]))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
