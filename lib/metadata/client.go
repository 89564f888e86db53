package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"log/slog"

	"github.com/shelfmark/shelfmark/models"
)

// Client queries TMDb for title suggestions when adding a movie or show.
// Books have no lookup; users enter those by hand.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Suggestion is one metadata candidate for an add-media form.
type Suggestion struct {
	Title       string `json:"title"`
	ReleaseYear int    `json:"releaseYear,omitempty"`
	PosterURL   string `json:"posterUrl,omitempty"`
}

type movieSearchResult struct {
	Results []struct {
		Title       string `json:"title"`
		ReleaseDate string `json:"release_date"`
		PosterPath  string `json:"poster_path"`
	} `json:"results"`
}

type tvSearchResult struct {
	Results []struct {
		Name         string `json:"name"`
		FirstAirDate string `json:"first_air_date"`
		PosterPath   string `json:"poster_path"`
	} `json:"results"`
}

// NewClient creates a TMDb client. An empty apiKey yields a nil client;
// callers treat that as the feature being disabled.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.themoviedb.org/3",
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Search returns up to five suggestions for a title of the given type.
func (c *Client) Search(ctx context.Context, title string, mediaType models.MediaType) ([]Suggestion, error) {
	switch mediaType {
	case models.MediaTypeMovie:
		return c.searchMovies(ctx, title)
	case models.MediaTypeTV:
		return c.searchTVShows(ctx, title)
	default:
		return nil, fmt.Errorf("no metadata source for type %q", mediaType)
	}
}

func (c *Client) searchMovies(ctx context.Context, title string) ([]Suggestion, error) {
	var result movieSearchResult
	if err := c.get(ctx, "/search/movie", title, &result); err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, 5)
	for _, r := range result.Results {
		if len(suggestions) == 5 {
			break
		}
		suggestions = append(suggestions, Suggestion{
			Title:       r.Title,
			ReleaseYear: yearOf(r.ReleaseDate),
			PosterURL:   posterURL(r.PosterPath),
		})
	}
	return suggestions, nil
}

func (c *Client) searchTVShows(ctx context.Context, title string) ([]Suggestion, error) {
	var result tvSearchResult
	if err := c.get(ctx, "/search/tv", title, &result); err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, 5)
	for _, r := range result.Results {
		if len(suggestions) == 5 {
			break
		}
		suggestions = append(suggestions, Suggestion{
			Title:       r.Name,
			ReleaseYear: yearOf(r.FirstAirDate),
			PosterURL:   posterURL(r.PosterPath),
		})
	}
	return suggestions, nil
}

func (c *Client) get(ctx context.Context, path, query string, out interface{}) error {
	u := fmt.Sprintf("%s%s?api_key=%s&query=%s",
		c.baseURL, path, c.apiKey, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata search returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func posterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return fmt.Sprintf("https://image.tmdb.org/t/p/w500%s", posterPath)
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	var year int
	if _, err := fmt.Sscanf(date[:4], "%d", &year); err != nil {
		return 0
	}
	return year
}
