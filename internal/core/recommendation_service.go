package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/gateway/gemini"
	"github.com/example/subsmarket/internal/models"
)

// Generator produces structured JSON from a prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *gemini.Schema, out interface{}) error
}

var recommendationSchema = &gemini.Schema{
	Type: "OBJECT",
	Properties: map[string]*gemini.Schema{
		"recommendations": {
			Type: "ARRAY",
			Items: &gemini.Schema{
				Type: "OBJECT",
				Properties: map[string]*gemini.Schema{
					"subscriptionName": {Type: "STRING"},
					"planDetails":      {Type: "STRING"},
					"reason":           {Type: "STRING"},
				},
				Required: []string{"subscriptionName", "planDetails", "reason"},
			},
		},
	},
	Required: []string{"recommendations"},
}

type recommendationService struct {
	generator Generator
	services  db.ServiceRepository
	logger    *zap.Logger
}

// NewRecommendationService creates a RecommendationService backed by generator.
func NewRecommendationService(generator Generator, services db.ServiceRepository, logger *zap.Logger) RecommendationService {
	return &recommendationService{generator: generator, services: services, logger: logger}
}

func buildRecommendationPrompt(catalog []string, req models.RecommendationRequest) string {
	var b strings.Builder
	b.WriteString("Você é um assistente de um marketplace de assinaturas digitais. ")
	b.WriteString("Recomende até 3 assinaturas do catálogo abaixo para o usuário, em português, explicando o motivo de cada uma.\n\n")
	b.WriteString("Catálogo disponível: ")
	if len(catalog) == 0 {
		b.WriteString("(vazio)")
	} else {
		b.WriteString(strings.Join(catalog, ", "))
	}
	b.WriteString("\nHistórico de visualização: ")
	if len(req.ViewingHistory) == 0 {
		b.WriteString("(nenhum)")
	} else {
		b.WriteString(strings.Join(req.ViewingHistory, ", "))
	}
	b.WriteString("\nPreferências: ")
	if p := strings.TrimSpace(req.Preferences); p != "" {
		b.WriteString(p)
	} else {
		b.WriteString("(não informadas)")
	}
	return b.String()
}

// Recommend asks the model for suggestions drawn from the current catalog.
func (s *recommendationService) Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResponse, error) {
	services, err := s.services.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services for recommendations: %w", err)
	}
	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.Name)
	}

	var out models.RecommendationResponse
	if err := s.generator.GenerateJSON(ctx, buildRecommendationPrompt(names, req), recommendationSchema, &out); err != nil {
		if errors.Is(err, gemini.ErrNotConfigured) {
			return nil, ErrRecommendationNotConfigured
		}
		s.logger.Error("Recommendation request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRecommendation, err)
	}
	if out.Recommendations == nil {
		out.Recommendations = []models.Recommendation{}
	}
	return &out, nil
}
