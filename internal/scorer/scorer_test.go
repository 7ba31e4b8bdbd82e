package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bom-matcher/internal/config"
	"github.com/sells-group/bom-matcher/internal/model"
)

func TestBest_PartNumberExactMatchDominates(t *testing.T) {
	s := Default()
	m := model.ExtractedMaterial{MaterialName: "Bolt M6", PartNumber: "B-100"}
	items := []model.SupplierItem{
		{ItemName: "Bolt M6x20", PartNumber: "B-100"},
		{ItemName: "Nut M6", PartNumber: "N-50"},
	}

	idx, score := s.Best(m, items)
	assert.Equal(t, 0, idx)
	assert.GreaterOrEqual(t, score, 0.8)

	other := s.Score(m, items[1])
	assert.Less(t, other, 0.5)
}

func TestBest_ExactNameBeatsPrefixSibling(t *testing.T) {
	s := Default()
	tests := []struct {
		name     string
		material string
		sibling  string
	}{
		{"bolt size", "Bolt M6", "Bolt M64"},
		{"resistor value", "Resistor 10 ohm", "Resistor 100 ohm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.ExtractedMaterial{MaterialName: tt.material}
			items := []model.SupplierItem{
				{ItemName: tt.sibling},
				{ItemName: tt.material},
			}

			idx, score := s.Best(m, items)
			assert.Equal(t, 1, idx)
			assert.Greater(t, score, s.Score(m, items[0]))
		})
	}
}

func TestPrefixRelated(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"m6", "m6x20", true},
		{"bolt", "bolts", true},
		{"m6", "m64", false},
		{"10", "100", false},
		{"m6", "m6", false},
		{"m", "m6", false},
		{"nut", "bolt", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, prefixRelated(tt.a, tt.b), "%s/%s", tt.a, tt.b)
		assert.Equal(t, tt.want, prefixRelated(tt.b, tt.a), "%s/%s", tt.b, tt.a)
	}
}

func TestBest_EmptyItems(t *testing.T) {
	s := Default()
	idx, score := s.Best(model.ExtractedMaterial{MaterialName: "Washer"}, nil)
	assert.Equal(t, -1, idx)
	assert.Equal(t, 0.0, score)
}

func TestBest_TieBreak(t *testing.T) {
	s := Default()

	t.Run("exact part number wins a tie", func(t *testing.T) {
		// Weight only the name so both candidates tie on score.
		nameOnly, err := New(config.WeightsConfig{Name: 1})
		require.NoError(t, err)
		m := model.ExtractedMaterial{MaterialName: "Hex Nut", PartNumber: "HN-1"}
		items := []model.SupplierItem{
			{ItemName: "Hex Nut", PartNumber: "ZZ-9"},
			{ItemName: "Hex Nut", PartNumber: "HN-1"},
		}
		idx, score := nameOnly.Best(m, items)
		assert.Equal(t, 1, idx)
		assert.Equal(t, 1.0, score)
	})

	t.Run("first item wins otherwise", func(t *testing.T) {
		m := model.ExtractedMaterial{MaterialName: "Spring Washer"}
		items := []model.SupplierItem{
			{ItemName: "Spring Washer"},
			{ItemName: "Spring Washer"},
		}
		idx, _ := s.Best(m, items)
		assert.Equal(t, 0, idx)
	})
}

func TestScore_Range(t *testing.T) {
	s := Default()
	cases := []struct {
		name string
		m    model.ExtractedMaterial
		item model.SupplierItem
	}{
		{"identical", model.ExtractedMaterial{MaterialName: "Gasket", PartNumber: "G1", VendorName: "Acme", Quantity: &model.Quantity{Value: 2, Unit: "pcs"}}, model.SupplierItem{ItemName: "Gasket", PartNumber: "G1", VendorName: "Acme", UnitOfMeasure: "ea"}},
		{"disjoint", model.ExtractedMaterial{MaterialName: "Cable tie", PartNumber: "CT-1", VendorName: "Acme", Quantity: &model.Quantity{Value: 1, Unit: "kg"}}, model.SupplierItem{ItemName: "Epoxy", PartNumber: "EP-9", VendorName: "Other", UnitOfMeasure: "m"}},
		{"empty names", model.ExtractedMaterial{}, model.SupplierItem{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := s.Score(tc.m, tc.item)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}

	identical := s.Score(cases[0].m, cases[0].item)
	assert.Equal(t, 1.0, identical)
	disjoint := s.Score(cases[1].m, cases[1].item)
	assert.Less(t, disjoint, 0.1)
}

func TestScore_Deterministic(t *testing.T) {
	s := Default()
	m := model.ExtractedMaterial{MaterialName: "ステンレス ボルト M8", PartNumber: "SB-8", Quantity: &model.Quantity{Value: 4, Unit: "個"}}
	item := model.SupplierItem{ItemName: "ステンレス ボルト M8x30", PartNumber: "SB-8", UnitOfMeasure: "pcs"}

	first := s.Score(m, item)
	for range 20 {
		assert.Equal(t, first, s.Score(m, item))
	}
}

func TestDetail_Signals(t *testing.T) {
	s := Default()

	t.Run("absent fields are neutral", func(t *testing.T) {
		sig := s.Detail(model.ExtractedMaterial{MaterialName: "Bolt"}, model.SupplierItem{ItemName: "Bolt"})
		assert.Equal(t, 1.0, sig.Name)
		assert.Equal(t, neutral, sig.PartNumber)
		assert.Equal(t, neutral, sig.Vendor)
		assert.Equal(t, neutral, sig.Unit)
		assert.InDelta(t, 0.75, sig.Total, 1e-9)
	})

	t.Run("compatible units", func(t *testing.T) {
		m := model.ExtractedMaterial{MaterialName: "Wire", Quantity: &model.Quantity{Value: 3, Unit: "m"}}
		sig := s.Detail(m, model.SupplierItem{ItemName: "Wire", UnitOfMeasure: "mm"})
		assert.Equal(t, 1.0, sig.Unit)
	})

	t.Run("incompatible units", func(t *testing.T) {
		m := model.ExtractedMaterial{MaterialName: "Wire", Quantity: &model.Quantity{Value: 3, Unit: "kg"}}
		sig := s.Detail(m, model.SupplierItem{ItemName: "Wire", UnitOfMeasure: "pcs"})
		assert.Equal(t, 0.0, sig.Unit)
	})

	t.Run("vendor case and spacing ignored", func(t *testing.T) {
		sig := s.Detail(
			model.ExtractedMaterial{MaterialName: "Bolt", VendorName: "  ACME  Corp"},
			model.SupplierItem{ItemName: "Bolt", VendorName: "acme corp"},
		)
		assert.Equal(t, 1.0, sig.Vendor)
	})
}

func TestNew_CustomWeights(t *testing.T) {
	s, err := New(config.WeightsConfig{Name: 2, PartNumber: 2})
	require.NoError(t, err)

	m := model.ExtractedMaterial{MaterialName: "Bracket", PartNumber: "BR-1"}
	score := s.Score(m, model.SupplierItem{ItemName: "Bracket", PartNumber: "XX-2"})
	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Equal(t, 2.0, s.Weights().Name)
}

func TestNew_InvalidWeights(t *testing.T) {
	cases := []struct {
		name string
		w    config.WeightsConfig
	}{
		{"negative", config.WeightsConfig{Name: -1, PartNumber: 1}},
		{"zero sum", config.WeightsConfig{}},
		{"nan", config.WeightsConfig{Name: math.NaN()}},
		{"inf", config.WeightsConfig{Unit: math.Inf(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.w)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "weights validation failed")
		})
	}
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("Bolt M6", "bolt  m6"))
	assert.Equal(t, 1.0, NameSimilarity("ＢＯＬＴ", "bolt"))
	assert.InDelta(t, 0.875, NameSimilarity("Bolt M6", "Bolt M6x20"), 1e-9)
	assert.Less(t, NameSimilarity("Bolt M6", "Bolt M64"), 1.0)
	assert.Less(t, NameSimilarity("Resistor 10 ohm", "Resistor 100 ohm"), 1.0)
	assert.Equal(t, 0.0, NameSimilarity("", "bolt"))
	assert.Greater(t, NameSimilarity("Gaskit", "Gasket"), 0.8)
	assert.Less(t, NameSimilarity("Nut", "Epoxy resin"), 0.3)
}

func TestTokenDice_ShortTokensNeedExactMatch(t *testing.T) {
	assert.Equal(t, 0.0, tokenDice([]string{"m"}, []string{"mm"}))
	assert.Equal(t, 1.0, tokenDice([]string{"mm"}, []string{"mm"}))
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"ボルト", "ボルト", 0},
		{"ボルト", "ナット", 2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, levenshtein([]rune(tc.a), []rune(tc.b)), "%s vs %s", tc.a, tc.b)
	}
}

func TestNormalizePartNumber(t *testing.T) {
	assert.Equal(t, "B100", NormalizePartNumber("b-100"))
	assert.Equal(t, "B100", NormalizePartNumber(" B 100 "))
	assert.Equal(t, "B100", NormalizePartNumber("Ｂ－１００"))
	assert.True(t, PartNumbersEqual("B.100", "b-100"))
	assert.False(t, PartNumbersEqual("", ""))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "bolt m6x20", NormalizeName("Bolt, M6x20"))
	assert.Equal(t, "pipe 1.5 in", NormalizeName("Pipe (1.5 in.)"))
	assert.Equal(t, "cafe", NormalizeName("Café"))
}

func TestUnitsCompatible(t *testing.T) {
	assert.True(t, UnitsCompatible("PCS", "ea"))
	assert.True(t, UnitsCompatible("個", "pcs"))
	assert.True(t, UnitsCompatible("kg", "g"))
	assert.True(t, UnitsCompatible("Box", "box"))
	assert.False(t, UnitsCompatible("kg", "m"))
	assert.False(t, UnitsCompatible("box", "pcs"))
	assert.Equal(t, "pcs", NormalizeUnit(" Pcs. "))
}
