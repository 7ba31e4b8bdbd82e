package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-matcher/internal/document"
	"github.com/sells-group/bom-matcher/internal/model"
)

// TranslationConfidence is reported for every successful translation.
const TranslationConfidence = 0.95

// maxChunkRunes bounds one translation request.
const maxChunkRunes = 6000

const translateSystem = `You translate manufacturing quality assurance documents.
Preserve tables, part numbers, quantities, units and vendor names exactly.
Return only the translated text with no commentary.`

// Translator loads the QA document and translates it to the target language.
type Translator struct {
	llm *LLM
	log *zap.Logger
}

// NewTranslator creates a Translator. A nil llm makes every translation a
// pass-through.
func NewTranslator(llm *LLM) *Translator {
	return &Translator{llm: llm, log: zap.L().With(zap.String("stage", string(model.StageTranslation)))}
}

// Process reads the document at path and translates it from src to tgt.
func (t *Translator) Process(ctx context.Context, path, src, tgt string) (*model.TranslationResult, error) {
	text, err := document.Load(path)
	if err != nil {
		return nil, eris.Wrap(err, "translation: load document")
	}
	if strings.TrimSpace(text) == "" {
		return nil, eris.Errorf("translation: document %s has no text", path)
	}

	res := &model.TranslationResult{
		OriginalContent:   text,
		TranslatedContent: text,
		SourceLanguage:    src,
		TargetLanguage:    tgt,
		Confidence:        TranslationConfidence,
	}

	if t.llm == nil || strings.EqualFold(src, tgt) {
		t.log.Info("translation: pass-through", zap.String("path", path), zap.Int("chars", len(text)))
		return res, nil
	}

	chunks := chunkText(text, maxChunkRunes)
	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := fmt.Sprintf("Translate the following document section from %s to %s.\n\n%s", src, tgt, chunk)
		translated, err := t.llm.Complete(ctx, model.StageTranslation, translateSystem, prompt)
		if err != nil {
			return nil, eris.Wrapf(err, "translation: chunk %d of %d", i+1, len(chunks))
		}
		out = append(out, translated)
	}
	res.TranslatedContent = strings.Join(out, "\n")

	t.log.Info("translation: complete",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)),
		zap.Int("chars", len(res.TranslatedContent)),
	)
	return res, nil
}

// chunkText splits text on line boundaries into pieces of at most limit
// runes. A single line longer than limit becomes its own chunk.
func chunkText(text string, limit int) []string {
	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	for _, line := range strings.Split(text, "\n") {
		l := len([]rune(line)) + 1
		if n > 0 && n+l > limit {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			n = 0
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		n += l
	}
	if n > 0 {
		chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
	}
	return chunks
}
