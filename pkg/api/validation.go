package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessages    int
	MaxContentSize int
	MaxParts       int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessages:    1000,
		MaxContentSize: 10 * 1024 * 1024, // 10MB
		MaxParts:       64,
	}
}

// ValidateRequest checks a ChatCompletionRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request is valid.
// The model is optional; the engine substitutes its default.
func ValidateRequest(req *ChatCompletionRequest, cfg ValidationConfig) *APIError {
	if len(req.Messages) == 0 {
		return NewInvalidRequestError("messages", "messages must contain at least one message")
	}

	if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
		return NewInvalidRequestError("messages",
			fmt.Sprintf("messages exceeds maximum of %d", cfg.MaxMessages))
	}

	for i := range req.Messages {
		if apiErr := ValidateMessage(&req.Messages[i], i, cfg); apiErr != nil {
			return apiErr
		}
	}

	return nil
}

// ValidateMessage checks a single message. Unknown part types are accepted
// and ignored downstream.
func ValidateMessage(msg *ChatMessage, index int, cfg ValidationConfig) *APIError {
	param := fmt.Sprintf("messages[%d]", index)

	if msg.Role == "" {
		return NewInvalidRequestError(param+".role", "role is required")
	}

	if !msg.Content.IsParts() {
		if cfg.MaxContentSize > 0 && len(msg.Content.Text) > cfg.MaxContentSize {
			return NewInvalidRequestError(param+".content",
				fmt.Sprintf("content exceeds maximum size of %d bytes", cfg.MaxContentSize))
		}
		return nil
	}

	if cfg.MaxParts > 0 && len(msg.Content.Parts) > cfg.MaxParts {
		return NewInvalidRequestError(param+".content",
			fmt.Sprintf("content exceeds maximum of %d parts", cfg.MaxParts))
	}

	size := 0
	for j, part := range msg.Content.Parts {
		switch part.Type {
		case ContentPartText:
			size += len(part.Text)
		case ContentPartImageURL:
			if part.ImageURL == nil {
				return NewInvalidRequestError(fmt.Sprintf("%s.content[%d].image_url", param, j),
					"image_url is required for image_url parts")
			}
			size += len(part.ImageURL.URL)
		}
	}
	if cfg.MaxContentSize > 0 && size > cfg.MaxContentSize {
		return NewInvalidRequestError(param+".content",
			fmt.Sprintf("content exceeds maximum size of %d bytes", cfg.MaxContentSize))
	}

	return nil
}
