// Package processor описывает контракт processing-функций.
// Сама логика извлечения (OCR, entity extraction, summarization) живет
// во внешних backend'ах; ядро только решает, когда и как их звать.
package processor

import (
	"context"

	"github.com/kitbuilder587/docrouter/internal/domain"
)

// Func - processing-функция одного режима, регистрируется вызывающей стороной.
// Может возвращать transient-ошибки (см. domain.Transient) или постоянные;
// ядро внутрь payload'а не заглядывает.
type Func func(ctx context.Context, documentID string, meta domain.DocumentMeta) (any, error)

// Set - по одной функции на режим обработки
type Set map[domain.ProcessingMode]Func
