package gemini

type ImageInput struct {
	DataBase64 string
	MimeType   string
}

type JSONRequest struct {
	System string
	Prompt string
	Schema *Schema
}

type ImageRequest struct {
	System      string
	Prompt      string
	Base        *ImageInput
	AspectRatio string // e.g. "16:9"; dropped when the API rejects imageConfig
}

// Response holds the concatenated text parts and every inline image as a
// data URL, in response order.
type Response struct {
	Text   string
	Images []string
}

// Schema is the OpenAPI subset accepted as responseSchema.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}
