package stage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/model"
)

// ExtractionConfidence is reported for every successful extraction.
const ExtractionConfidence = 0.9

const extractSystem = `You extract bill-of-materials line items from manufacturing QA documents.
Respond with JSON only, in the form {"materials": [...]}. Each material has:
material_name (string), excerpt (source sentence), part_number (string),
quantity (number or string such as "10 pcs"), unit_of_measure, vendor_name,
qa_classification_label (integer 1-9, 5 when unsure),
qa_confidence_level ("high", "medium" or "low"), qc_process_step,
is_consumable (true for consumables, jigs and tools).`

// Extractor turns translated QA text into structured materials.
type Extractor struct {
	llm *LLM
	log *zap.Logger
}

// NewExtractor creates an Extractor. Without an llm, only pipe-delimited
// tables in the text are recognized.
func NewExtractor(llm *LLM) *Extractor {
	return &Extractor{llm: llm, log: zap.L().With(zap.String("stage", string(model.StageExtraction)))}
}

// Extract pulls materials out of text. Materials that fail validation are
// dropped with a warning.
func (e *Extractor) Extract(ctx context.Context, text string) (*model.ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("extraction: empty text")
	}

	var (
		raws []rawMaterial
		err  error
	)
	if e.llm != nil {
		raws, err = e.extractLLM(ctx, text)
	} else {
		raws = extractTables(text)
	}
	if err != nil {
		return nil, err
	}

	materials := make([]model.ExtractedMaterial, 0, len(raws))
	for _, r := range raws {
		m := r.material()
		if verr := m.Validate(); verr != nil {
			e.log.Warn("extraction: drop material", zap.Error(verr))
			continue
		}
		materials = append(materials, m)
	}

	e.log.Info("extraction: complete", zap.Int("materials", len(materials)), zap.Int("dropped", len(raws)-len(materials)))
	return &model.ExtractionResult{
		Materials:      materials,
		Confidence:     ExtractionConfidence,
		TotalExtracted: len(materials),
	}, nil
}

func (e *Extractor) extractLLM(ctx context.Context, text string) ([]rawMaterial, error) {
	out, err := e.llm.Complete(ctx, model.StageExtraction, extractSystem, "Extract all materials from this QA document:\n\n"+text)
	if err != nil {
		return nil, eris.Wrap(err, "extraction")
	}
	raws, err := parseMaterials(out)
	if err != nil {
		return nil, eris.Wrap(err, "extraction: parse response")
	}
	return raws, nil
}

// parseMaterials accepts {"materials": [...]} or a bare array.
func parseMaterials(text string) ([]rawMaterial, error) {
	body := cleanJSON(text)
	if strings.HasPrefix(body, "[") {
		var raws []rawMaterial
		if err := json.Unmarshal([]byte(body), &raws); err != nil {
			return nil, eris.Wrap(err, "decode array")
		}
		return raws, nil
	}
	var env struct {
		Materials []rawMaterial `json:"materials"`
	}
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, eris.Wrap(err, "decode object")
	}
	return env.Materials, nil
}

// rawMaterial is the loosely-typed shape returned by the model. Both the
// current field names and the older qa_-prefixed names are accepted.
type rawMaterial struct {
	MaterialName        string          `json:"material_name"`
	QAMaterialName      string          `json:"qa_material_name"`
	Excerpt             string          `json:"excerpt"`
	QAExcerpt           string          `json:"qa_excerpt"`
	PartNumber          json.RawMessage `json:"part_number"`
	Quantity            json.RawMessage `json:"quantity"`
	UnitOfMeasure       string          `json:"unit_of_measure"`
	VendorName          string          `json:"vendor_name"`
	Label               *int            `json:"qa_classification_label"`
	Level               string          `json:"qa_confidence_level"`
	QCProcessStep       string          `json:"qc_process_step"`
	IsConsumable        *bool           `json:"is_consumable"`
	ConsumableJigsTools *bool           `json:"consumable_jigs_tools"`
}

func (r rawMaterial) material() model.ExtractedMaterial {
	m := model.ExtractedMaterial{
		MaterialName:          firstNonEmpty(r.MaterialName, r.QAMaterialName),
		Excerpt:               firstNonEmpty(r.Excerpt, r.QAExcerpt),
		PartNumber:            rawString(r.PartNumber),
		Quantity:              rawQuantity(r.Quantity),
		VendorName:            strings.TrimSpace(r.VendorName),
		QAClassificationLabel: model.DefaultClassificationLabel,
		QAConfidenceLevel:     model.NormalizeConfidenceLevel(r.Level),
		QCProcessStep:         strings.TrimSpace(r.QCProcessStep),
	}
	if r.Label != nil {
		m.QAClassificationLabel = *r.Label
	}
	if unit := strings.TrimSpace(r.UnitOfMeasure); unit != "" {
		if m.Quantity == nil {
			m.Quantity = &model.Quantity{}
		}
		if m.Quantity.Unit == "" {
			m.Quantity.Unit = unit
		}
	}
	switch {
	case r.IsConsumable != nil:
		m.IsConsumable = *r.IsConsumable
	case r.ConsumableJigsTools != nil:
		m.IsConsumable = *r.ConsumableJigsTools
	}
	return m
}

// rawQuantity decodes a quantity, treating unparseable values as unknown.
func rawQuantity(raw json.RawMessage) *model.Quantity {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var q model.Quantity
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil
	}
	return &q
}

// rawString renders a JSON string or number as plain text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// extractTables reads materials from pipe-delimited tables whose header
// names an item column. Markdown separator rows are ignored.
func extractTables(text string) []rawMaterial {
	var (
		out  []rawMaterial
		cols map[column]int
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			cols = nil
			continue
		}
		cells := splitPipeRow(line)
		if isSeparatorRow(cells) {
			continue
		}
		if cols == nil {
			if hc := headerMap(cells); hasColumn(hc, colName) {
				cols = hc
			}
			continue
		}
		r := rawMaterial{
			MaterialName:  cell(cells, cols, colName),
			PartNumber:    jsonString(cell(cells, cols, colPartNumber)),
			UnitOfMeasure: cell(cells, cols, colUnit),
			VendorName:    cell(cells, cols, colVendor),
			Quantity:      jsonString(cell(cells, cols, colQuantity)),
			Excerpt:       line,
		}
		out = append(out, r)
	}
	return out
}

func hasColumn(cols map[column]int, c column) bool {
	_, ok := cols[c]
	return ok
}

func splitPipeRow(line string) []string {
	line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func jsonString(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	b, _ := json.Marshal(s)
	return b
}
