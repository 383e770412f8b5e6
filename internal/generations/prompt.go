package generations

import "strings"

// DefaultPromptSuffix steers the image model toward catalogue-style output.
const DefaultPromptSuffix = "Professional commercial product photoshoot, high detail, realistic lighting, " +
	"product is the clear focal point, keep its shape, colors and branding unchanged, no text or watermarks."

// BuildPrompt combines the product description and the requested style into
// the synthesis prompt.
func BuildPrompt(description, style, suffix string) string {
	description = strings.TrimSpace(description)
	style = strings.TrimSpace(style)
	var b strings.Builder
	b.WriteString("Product: ")
	b.WriteString(description)
	b.WriteString("\nStyle: ")
	b.WriteString(style)
	if suffix = strings.TrimSpace(suffix); suffix != "" {
		b.WriteString("\n")
		b.WriteString(suffix)
	}
	return b.String()
}
