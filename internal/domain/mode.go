package domain

type ProcessingMode string

const (
	// ModeTraditional - быстрый и дешевый backend
	ModeTraditional ProcessingMode = "traditional"
	// ModeMultiAgent - медленный, но точный backend
	ModeMultiAgent ProcessingMode = "multi_agent"
	// ModeMCP запускается только явно через ForceMode, роутер его сам не выбирает
	ModeMCP ProcessingMode = "mcp"
)

func (m ProcessingMode) IsValid() bool {
	switch m {
	case ModeTraditional, ModeMultiAgent, ModeMCP:
		return true
	}
	return false
}

func (m ProcessingMode) String() string { return string(m) }
