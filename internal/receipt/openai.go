package receipt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is the vision model used when none is configured.
const DefaultModel = "gpt-4o-mini"

const prompt = `You read shopping receipts for a home inventory.
List every purchased product with its quantity and unit price.
Copy names as printed. Leave a field empty if it is not on the receipt.`

// OpenAI extracts receipt fields with an OpenAI vision model using a strict
// JSON schema response format.
type OpenAI struct {
	client *openai.Client
	model  string
	schema map[string]any
}

// NewOpenAI returns an extractor authenticating with apiKey.
func NewOpenAI(apiKey, model string, opts ...option.RequestOption) (*OpenAI, error) {
	if model == "" {
		model = DefaultModel
	}
	schema, err := fieldsSchema()
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAI{client: &client, model: model, schema: schema}, nil
}

func fieldsSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	b, err := json.Marshal(reflector.Reflect(&Fields{}))
	if err != nil {
		return nil, fmt.Errorf("marshalling receipt schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("decoding receipt schema: %w", err)
	}
	return schema, nil
}

// Extract sends image to the model and decodes its structured answer.
func (o *OpenAI) Extract(ctx context.Context, image []byte, mime string) (*Fields, error) {
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "receipt",
					Schema: o.schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("requesting receipt extraction: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty receipt extraction response")
	}

	var fields Fields
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &fields); err != nil {
		return nil, fmt.Errorf("decoding receipt extraction: %w", err)
	}
	return &fields, nil
}
