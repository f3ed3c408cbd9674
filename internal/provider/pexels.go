package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/clinivis/mediscope/internal/models"
)

const defaultPexelsBaseURL = "https://api.pexels.com/v1"

// PexelsClient searches the Pexels photo API.
type PexelsClient struct {
	APIKey   string
	Category string
	BaseURL  string
	Client   *http.Client
}

// NewPexelsClient creates a Pexels provider. Results are tagged with category.
func NewPexelsClient(apiKey, category string) *PexelsClient {
	return &PexelsClient{
		APIKey:   apiKey,
		Category: category,
		BaseURL:  defaultPexelsBaseURL,
		Client:   http.DefaultClient,
	}
}

// Name returns the provider name.
func (p *PexelsClient) Name() string { return "pexels" }

type pexelsResponse struct {
	Photos []struct {
		ID  int    `json:"id"`
		Alt string `json:"alt"`
		Src struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Search queries Pexels and maps photos to search results.
func (p *PexelsClient) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	u := fmt.Sprintf("%s/search?query=%s&per_page=%d", p.BaseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels returned %d", resp.StatusCode)
	}

	var payload pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("pexels decode failed: %w", err)
	}

	results := make([]models.SearchResult, 0, len(payload.Photos))
	for _, photo := range payload.Photos {
		title := photo.Alt
		if title == "" {
			title = query
		}
		results = append(results, models.SearchResult{
			ID:          strconv.Itoa(photo.ID),
			URL:         photo.Src.Large,
			Description: title,
			Category:    p.Category,
			Similarity:  PlaceholderSimilarity,
			Source:      p.Name(),
		})
	}
	return results, nil
}
