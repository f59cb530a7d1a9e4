package domain

import "time"

// Image is a decoded, sniffed image ready to be handed to a recognition backend
type Image struct {
	Data      []byte
	MIMEType  string
	SHA256    string // hex digest of Data, also used as cache key
	SourceURL string
}

// Extension returns the file extension matching the image MIME type
func (i *Image) Extension() string {
	switch i.MIMEType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}

// WeightReading is a scale reading parsed from a backend reply
type WeightReading struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`      // kg, g, lb or oz
	WeightKg    float64 `json:"weight_kg"` // Value normalized to kilograms
	Confidence  float64 `json:"confidence"`
	DisplayText string  `json:"display_text,omitempty"`
	Backend     string  `json:"backend"`
}

// WeightCapture is a persisted weight capture attributed to a farmer
type WeightCapture struct {
	ID          string    `json:"id"`
	FarmerID    string    `json:"farmer_id"`
	ProduceName string    `json:"produce_name,omitempty"`
	ProduceType string    `json:"produce_type,omitempty"`
	Weight      float64   `json:"weight"`
	Unit        string    `json:"unit"`
	WeightKg    float64   `json:"weight_kg"`
	Confidence  float64   `json:"confidence"`
	RawText     string    `json:"raw_text,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Backend     string    `json:"backend"`
	CapturedAt  time.Time `json:"captured_at"`
}

// CaptureRequest represents a weight capture request
type CaptureRequest struct {
	FarmerID    string `json:"farmer_id"`
	ProduceName string `json:"produce_name,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// DetectedObject is a single item the classifier saw in the frame
type DetectedObject struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count,omitempty"`
}

// ProduceClassification is the produce type recognized in an image
type ProduceClassification struct {
	ProduceType string           `json:"produce_type"`
	Variety     string           `json:"variety,omitempty"`
	Confidence  float64          `json:"confidence"`
	Objects     []DetectedObject `json:"objects"`
}
