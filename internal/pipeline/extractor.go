package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// receiptPrompt instructs the model to return one strict JSON object. Fence
// stripping below still tolerates models that ignore the formatting rules.
const receiptPrompt = "You are a receipt data extractor for photographed expense receipts.\n\n" +
	"Task:\n" +
	"- Read the attached receipt image.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a single JSON object.\n\n" +
	"The object must have these fields:\n" +
	"- \"vendorName\": string (merchant or store name)\n" +
	"- \"amount\": integer (grand total, whole currency units, no decimals)\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"category\": string (short spend category, e.g. \"Office Supplies\")\n" +
	"- \"items\": array of objects {\"itemName\": string, \"qty\": integer, \"price\": integer, \"total\": integer}\n\n" +
	"Rules:\n" +
	"- If a line item is unreadable, skip it rather than guessing.\n" +
	"- If the date is missing, use the most plausible date printed on the receipt.\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// GeminiExtractor sends receipt images to Gemini and parses the response
// against the strict ReceiptFields contract. Any failure is returned as an
// error; the degrade-to-defaults policy lives in the pipeline, not here.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor wraps an explicitly constructed genai client. The model
// name falls back to DefaultModelName when empty.
func NewGeminiExtractor(client *genai.Client, model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{client: client, model: model}
}

// Extract sends the image to the model and parses the JSON object it returns.
func (e *GeminiExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*ReceiptFields, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Extract: empty response from model")
	}

	return ParseReceiptJSON(rawText)
}

// ParseReceiptJSON strips any markdown fencing from the model response and
// validates it against the ReceiptFields contract.
func ParseReceiptJSON(raw string) (*ReceiptFields, error) {
	clean := cleanModelJSON(raw)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return nil, fmt.Errorf("ParseReceiptJSON: unmarshal: %w", err)
	}

	fields, err := parseReceiptFields(obj)
	if err != nil {
		return nil, fmt.Errorf("ParseReceiptJSON: %w", err)
	}
	fields.Raw = json.RawMessage(clean)
	return fields, nil
}

// cleanModelJSON removes ```json fences and any prose around the JSON object
// when the model ignored the formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost object if junk remains around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

func parseReceiptFields(obj map[string]interface{}) (*ReceiptFields, error) {
	vendor, err := getStringField(obj, "vendorName", true)
	if err != nil {
		return nil, err
	}

	amount, err := getInt64Field(obj, "amount", true)
	if err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fmt.Errorf("field \"amount\" is negative: %d", amount)
	}

	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	category, err := getStringField(obj, "category", true)
	if err != nil {
		return nil, err
	}

	items, err := parseItems(obj)
	if err != nil {
		return nil, err
	}

	return &ReceiptFields{
		VendorName: vendor,
		Amount:     amount,
		Date:       date,
		Category:   category,
		Items:      items,
	}, nil
}

func parseItems(obj map[string]interface{}) ([]ExtractedItem, error) {
	v, ok := obj["items"]
	if !ok || v == nil {
		return nil, nil
	}
	slice, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field \"items\" has type %T, want array", v)
	}

	items := make([]ExtractedItem, 0, len(slice))
	for i, el := range slice {
		m, ok := el.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d is %T, want object", i, el)
		}

		name, err := getStringField(m, "itemName", true)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		qty, err := getInt64Field(m, "qty", false)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if qty < 1 {
			qty = 1
		}
		price, err := getInt64Field(m, "price", false)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if price < 0 {
			return nil, fmt.Errorf("item %d: field \"price\" is negative: %d", i, price)
		}
		total, err := getInt64Field(m, "total", false)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		items = append(items, ExtractedItem{
			ItemName: name,
			Qty:      qty,
			Price:    price,
			Total:    total,
		})
	}

	return items, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getInt64Field(m map[string]interface{}, key string, required bool) (int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return int64(val), nil
	case int: // unlikely from encoding/json, but harmless to support
		return int64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}
