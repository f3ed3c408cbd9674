package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/clinivis/mediscope/internal/models"
)

const defaultPixabayBaseURL = "https://pixabay.com/api/"

// PixabayClient searches the Pixabay image API.
type PixabayClient struct {
	APIKey   string
	Category string
	BaseURL  string
	Client   *http.Client
}

// NewPixabayClient creates a Pixabay provider. Results are tagged with category.
func NewPixabayClient(apiKey, category string) *PixabayClient {
	return &PixabayClient{
		APIKey:   apiKey,
		Category: category,
		BaseURL:  defaultPixabayBaseURL,
		Client:   http.DefaultClient,
	}
}

// Name returns the provider name.
func (p *PixabayClient) Name() string { return "pixabay" }

type pixabayResponse struct {
	Hits []struct {
		ID            int    `json:"id"`
		Tags          string `json:"tags"`
		LargeImageURL string `json:"largeImageURL"`
	} `json:"hits"`
}

// Search queries Pixabay and maps hits to search results. The first tag
// serves as the title.
func (p *PixabayClient) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	u := fmt.Sprintf("%s?key=%s&q=%s&per_page=%d&image_type=photo&category=science",
		p.BaseURL, url.QueryEscape(p.APIKey), url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pixabay request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pixabay returned %d", resp.StatusCode)
	}

	var payload pixabayResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("pixabay decode failed: %w", err)
	}

	results := make([]models.SearchResult, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		title := hit.Tags
		if idx := strings.IndexByte(title, ','); idx >= 0 {
			title = title[:idx]
		}
		results = append(results, models.SearchResult{
			ID:          strconv.Itoa(hit.ID),
			URL:         hit.LargeImageURL,
			Description: strings.TrimSpace(title),
			Category:    p.Category,
			Similarity:  PlaceholderSimilarity,
			Source:      p.Name(),
		})
	}
	return results, nil
}
