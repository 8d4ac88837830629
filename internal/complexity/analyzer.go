package complexity

import (
	"fmt"
	"strings"

	"github.com/kitbuilder587/docrouter/internal/config"
	"github.com/kitbuilder587/docrouter/internal/domain"
)

// Веса измерений: каждое дает 0..25 баллов, сумма 0..100.
// Конкретные таблицы баллов - дефолты, пороги приходят из конфига.
const (
	dimensionMax = 25

	structureModerate = 15
	structureNoTables = 10

	qualityMissingHint = 12
	qualityGoodCutoff  = 0.95
	qualityPoorCutoff  = 0.70

	standardizationKnownFormat = 15
)

// completenessScale - баллы по числу отсутствующих обязательных полей
var completenessScale = []int{0, 8, 13, 18, dimensionMax}

// Analyzer оценивает, насколько рискованно отдавать документ на быстрый путь.
// Чистая функция от входа и конфига: без I/O, без side effects.
type Analyzer struct {
	simpleThreshold  int
	complexThreshold int
	vendors          map[string]struct{}
}

func New(cfg config.ComplexityConfig) *Analyzer {
	if cfg.SimpleThreshold == 0 && cfg.ComplexThreshold == 0 {
		cfg.SimpleThreshold = 30
		cfg.ComplexThreshold = 61
	}

	vendors := make(map[string]struct{}, len(cfg.KnownVendors))
	for _, v := range cfg.KnownVendors {
		vendors[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}

	return &Analyzer{
		simpleThreshold:  cfg.SimpleThreshold,
		complexThreshold: cfg.ComplexThreshold,
		vendors:          vendors,
	}
}

// Analyze считает четыре независимых суб-оценки и складывает их.
// Порядок reasons фиксирован (structure, quality, completeness, standardization) -
// для одинакового входа выход побайтово одинаков.
func (a *Analyzer) Analyze(meta domain.DocumentMeta, ocr *domain.OCRHint) domain.ComplexityScore {
	var reasons []string

	structure, reason := a.scoreStructure(meta)
	if reason != "" {
		reasons = append(reasons, reason)
	}

	quality, reason := a.scoreQuality(ocr)
	if reason != "" {
		reasons = append(reasons, reason)
	}

	completeness, reason := a.scoreCompleteness(meta)
	if reason != "" {
		reasons = append(reasons, reason)
	}

	standardization, reason := a.scoreStandardization(meta)
	if reason != "" {
		reasons = append(reasons, reason)
	}

	dims := domain.DimensionScores{
		Structure:       structure,
		Quality:         quality,
		Completeness:    completeness,
		Standardization: standardization,
	}

	total := clamp(dims.Sum(), 0, 100)

	return domain.ComplexityScore{
		Total:      total,
		Level:      domain.LevelFor(total, a.simpleThreshold, a.complexThreshold),
		Dimensions: dims,
		Reasons:    reasons,
	}
}

func (a *Analyzer) scoreStructure(meta domain.DocumentMeta) (int, string) {
	switch {
	case meta.Tables > 3 || meta.Pages > 2:
		return dimensionMax, fmt.Sprintf("complex layout: %d tables, %d pages", meta.Tables, meta.Pages)
	case meta.Tables >= 2 || meta.Pages == 2:
		return structureModerate, fmt.Sprintf("moderate layout: %d tables, %d pages", meta.Tables, meta.Pages)
	case meta.Tables == 0:
		// нет таблиц = структура неизвестна, не считаем документ простым
		return structureNoTables, "no table structure detected"
	}
	return 0, ""
}

func (a *Analyzer) scoreQuality(ocr *domain.OCRHint) (int, string) {
	if ocr == nil {
		// без подсказки перестраховываемся средним баллом, а не нулем
		return qualityMissingHint, "no ocr confidence available, assuming medium quality"
	}

	conf := ocr.Confidence
	switch {
	case conf >= qualityGoodCutoff:
		return 0, ""
	case conf < qualityPoorCutoff:
		return dimensionMax, fmt.Sprintf("poor ocr confidence: %.2f", conf)
	}

	// линейная интерполяция между 0.95 -> 0 и 0.70 -> 25
	score := int(float64(dimensionMax)*(qualityGoodCutoff-conf)/(qualityGoodCutoff-qualityPoorCutoff) + 0.5)
	return score, fmt.Sprintf("degraded ocr confidence: %.2f", conf)
}

func (a *Analyzer) scoreCompleteness(meta domain.DocumentMeta) (int, string) {
	missing := len(meta.MissingFields)
	if missing == 0 {
		return 0, ""
	}

	idx := missing
	if idx >= len(completenessScale) {
		idx = len(completenessScale) - 1
	}
	return completenessScale[idx], fmt.Sprintf("missing required fields: %s", strings.Join(meta.MissingFields, ", "))
}

func (a *Analyzer) scoreStandardization(meta domain.DocumentMeta) (int, string) {
	vendor := strings.ToLower(strings.TrimSpace(meta.Vendor))
	if _, ok := a.vendors[vendor]; ok && vendor != "" {
		return 0, fmt.Sprintf("known vendor: %s", meta.Vendor)
	}

	if strings.TrimSpace(meta.Format) != "" {
		return standardizationKnownFormat, fmt.Sprintf("unknown vendor %q with format %q", meta.Vendor, meta.Format)
	}

	// неизвестный вендор без метаданных формата = максимальный риск
	return dimensionMax, fmt.Sprintf("unknown vendor %q, no format metadata", meta.Vendor)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
