// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package googleai provides an ai.Backend implementation for the Google
// Gemini API via the langchaingo client.
package googleai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/poiesic/skillscan/ai"
)

const (
	completionTemperature = 0.2
	completionMaxTokens   = 2000
)

// Backend implements ai.Backend against the Google Gemini API.
type Backend struct {
	model  llms.Model
	logger *slog.Logger
}

// NewBackend creates a Gemini completion backend. The client is initialized
// eagerly, so ctx bounds only the setup call.
//
// Returns ai.Backend interface to enforce abstraction.
func NewBackend(ctx context.Context, config *ai.Config) (ai.Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	return &Backend{
		model:  client,
		logger: slog.Default().With("component", "googleai-backend"),
	}, nil
}

// Complete sends one prompt and returns the normalized response.
func (b *Backend) Complete(ctx context.Context, prompt string) (*ai.Completion, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	response, err := b.model.GenerateContent(ctx, content,
		llms.WithTemperature(completionTemperature),
		llms.WithMaxTokens(completionMaxTokens),
	)
	if err != nil {
		b.logger.Error("completion failed", "err", err)
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, ai.ErrEmptyCompletion
	}

	choice := response.Choices[0]
	return &ai.Completion{
		Content: choice.Content,
		Usage:   ai.UsageFromInfo(choice.GenerationInfo),
	}, nil
}
