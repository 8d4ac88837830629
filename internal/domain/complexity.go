package domain

type ComplexityLevel string

const (
	LevelSimple  ComplexityLevel = "simple"
	LevelMedium  ComplexityLevel = "medium"
	LevelComplex ComplexityLevel = "complex"
)

func (l ComplexityLevel) String() string { return string(l) }

// LevelFor - чистая ступенчатая функция от total и двух порогов.
// total <= simpleThreshold -> Simple, total >= complexThreshold -> Complex, иначе Medium.
func LevelFor(total, simpleThreshold, complexThreshold int) ComplexityLevel {
	switch {
	case total <= simpleThreshold:
		return LevelSimple
	case total >= complexThreshold:
		return LevelComplex
	}
	return LevelMedium
}

// DimensionScores - четыре независимых компоненты сложности, каждая 0..25
type DimensionScores struct {
	Structure       int
	Quality         int
	Completeness    int
	Standardization int
}

func (d DimensionScores) Sum() int {
	return d.Structure + d.Quality + d.Completeness + d.Standardization
}

type ComplexityScore struct {
	Total      int
	Level      ComplexityLevel
	Dimensions DimensionScores
	Reasons    []string
}

// DocumentMeta - метаданные документа, уже извлеченные upstream-слоем.
// Анализатор работает только с тем, что есть в памяти, никакого I/O.
type DocumentMeta struct {
	Vendor        string
	Format        string
	Pages         int
	Tables        int
	MissingFields []string
}

// OCRHint - опциональная подсказка о качестве OCR от upstream-пайплайна
type OCRHint struct {
	Confidence float64
}
