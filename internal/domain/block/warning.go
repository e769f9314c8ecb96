package block

import "fmt"

// WarningCode classifies a non-fatal conversion event.
type WarningCode string

const (
	// WarnUnsupported marks a native block kind with no canonical counterpart;
	// the block was replaced by a paragraph holding its textual rendering.
	WarnUnsupported WarningCode = "UNSUPPORTED_BLOCK_KIND"
	// WarnDegraded marks a block converted with a known fidelity loss.
	WarnDegraded WarningCode = "DEGRADED"
)

// Warning records fidelity loss during a conversion. Warnings are accumulated
// next to the converted blocks and never abort a sync.
type Warning struct {
	Code      WarningCode `json:"code"`
	BlockType string      `json:"block_type"`
	Message   string      `json:"message"`
}

// String renders the warning for reports.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Code, w.Message, w.BlockType)
}

// Unsupported builds a WarnUnsupported warning.
func Unsupported(blockType, message string) Warning {
	return Warning{Code: WarnUnsupported, BlockType: blockType, Message: message}
}

// Degraded builds a WarnDegraded warning.
func Degraded(blockType, message string) Warning {
	return Warning{Code: WarnDegraded, BlockType: blockType, Message: message}
}

// Warnings is an accumulator for conversion warnings.
type Warnings []Warning

// Add appends a warning.
func (w *Warnings) Add(warning Warning) {
	*w = append(*w, warning)
}

// Strings renders all warnings.
func (w Warnings) Strings() []string {
	out := make([]string, len(w))
	for i, warning := range w {
		out[i] = warning.String()
	}
	return out
}
