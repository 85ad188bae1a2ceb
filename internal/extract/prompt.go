package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/catalog-updater/internal/model"
)

// SystemPrompt frames the model as a JSON-only extractor.
const SystemPrompt = "You are a precise JSON-only dataset metadata extractor."

var instructions = buildInstructions()

func buildInstructions() string {
	var b strings.Builder
	b.WriteString("You are a highly accurate assistant specialized in medical imaging datasets.\n\n")
	b.WriteString("Your task:\n")
	fmt.Fprintf(&b, "Extract the following %d metadata fields from the given text about a neuroradiology dataset.\n\n", model.NumFields)
	b.WriteString("For each field:\n")
	b.WriteString("- Provide a concise string value.\n")
	fmt.Fprintf(&b, "- If the information is missing or unclear, set the value to %q.\n", model.NotSpecified)
	b.WriteString("- Do NOT include extra commentary or Markdown.\n\n")
	b.WriteString("FIELDS TO EXTRACT:\n")
	b.WriteString(fieldDescriptions())
	b.WriteString("\n\nRESPONSE FORMAT:\n")
	fmt.Fprintf(&b, "Return ONLY a valid JSON object with these %d keys and string values.\n", model.NumFields)
	return b.String()
}

// fieldDescriptions renders the schema as an indented JSON object in column
// order.
func fieldDescriptions() string {
	var b strings.Builder
	b.WriteString("{\n")
	for i, f := range model.Schema() {
		k, _ := json.Marshal(f.Key)
		v, _ := json.Marshal(f.Description)
		fmt.Fprintf(&b, "  %s: %s", k, v)
		if i < model.NumFields-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// Prompt returns the user prompt for one chunk of text.
func Prompt(text string) string {
	return instructions + "\n\nTEXT TO ANALYZE:\n" + text
}
