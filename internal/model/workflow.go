package model

import "time"

// Stage names a step of the document workflow. The names double as
// progress-report stage tags and artifact file prefixes.
type Stage string

const (
	StageTranslation Stage = "translation"
	StageExtraction  Stage = "extraction"
	StageSupplierBOM Stage = "supplier_bom"
	StageComparison  Stage = "comparison"
	StageFinal       Stage = "final"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
)

// ProgressUpdate is delivered to the progress callback at fixed milestones.
type ProgressUpdate struct {
	WorkflowID string    `json:"workflow_id"`
	Stage      Stage     `json:"stage"`
	Progress   float64   `json:"progress"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// TranslationResult is the output of the translation stage.
type TranslationResult struct {
	OriginalContent   string  `json:"original_content"`
	TranslatedContent string  `json:"translated_content"`
	SourceLanguage    string  `json:"source_language"`
	TargetLanguage    string  `json:"target_language"`
	Confidence        float64 `json:"translation_confidence"`
}

// ExtractionResult is the output of the extraction stage.
type ExtractionResult struct {
	Materials      []ExtractedMaterial `json:"materials"`
	Confidence     float64             `json:"extraction_confidence"`
	TotalExtracted int                 `json:"total_extracted"`
}

// SupplierBOMResult is the output of the supplier BOM stage.
type SupplierBOMResult struct {
	Items       []SupplierItem `json:"items"`
	SourceFile  string         `json:"source_file"`
	RowsRead    int            `json:"rows_read"`
	RowsSkipped int            `json:"rows_skipped"`
}

// ClassificationSummary aggregates QA labels and confidence tiers.
type ClassificationSummary struct {
	ClassificationCounts   map[int]int             `json:"classification_counts"`
	ConfidenceDistribution map[ConfidenceLevel]int `json:"confidence_distribution"`
	TotalItems             int                     `json:"total_items"`
}

// WorkflowSummary holds the headline numbers of a finished workflow.
type WorkflowSummary struct {
	TotalMaterials       int       `json:"total_materials"`
	TotalSupplierItems   int       `json:"total_supplier_items"`
	SuccessfulMatches    int       `json:"successful_matches"`
	KnowledgeBaseMatches int       `json:"knowledge_base_matches"`
	Unmatched            int       `json:"unmatched"`
	ProcessingDate       time.Time `json:"processing_date"`
	EnhancedMatching     bool      `json:"enhanced_matching"`
}

// WorkflowResult is the final artifact of a workflow run.
type WorkflowResult struct {
	WorkflowID              string                `json:"workflow_id"`
	Matches                 []MatchRecord         `json:"matches"`
	Summary                 WorkflowSummary       `json:"summary"`
	KnowledgeBaseStats      ProcessingStats       `json:"knowledge_base_stats"`
	QAClassificationSummary ClassificationSummary `json:"qa_classification_summary"`
}
