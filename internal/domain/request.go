package domain

import "strings"

type RouteRequest struct {
	DocumentID string
	Meta       DocumentMeta
	OCR        *OCRHint
	// ForceMode пропускает анализ сложности; пустое значение = автоматический выбор
	ForceMode ProcessingMode
}

func (r *RouteRequest) Validate() error {
	if strings.TrimSpace(r.DocumentID) == "" {
		return ErrEmptyDocumentID
	}
	if r.ForceMode != "" && !r.ForceMode.IsValid() {
		return ErrInvalidMode
	}
	if r.Meta.Pages < 0 || r.Meta.Tables < 0 {
		return ErrInvalidMeta
	}
	if r.OCR != nil && (r.OCR.Confidence < 0 || r.OCR.Confidence > 1) {
		return ErrInvalidOCRHint
	}
	return nil
}
