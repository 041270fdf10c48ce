package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmfrees/photovault/internal/model"
)

// GooglePhotos implements Client against the Google Photos Picker API
// (session-based selection) and the Library API (uploads).
type GooglePhotos struct {
	pickerBaseURL  string
	libraryBaseURL string
	httpClient     *http.Client
}

func NewGooglePhotos(pickerBaseURL, libraryBaseURL string) *GooglePhotos {
	return &GooglePhotos{
		pickerBaseURL:  pickerBaseURL,
		libraryBaseURL: libraryBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (g *GooglePhotos) Name() string {
	return model.ProviderGooglePhotos
}

type pickerSession struct {
	ID            string `json:"id"`
	PickerURI     string `json:"pickerUri"`
	MediaItemsSet bool   `json:"mediaItemsSet"`
}

type pickerMediaFile struct {
	BaseURL  string `json:"baseUrl"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

type pickerMediaItem struct {
	ID         string          `json:"id"`
	CreateTime string          `json:"createTime"`
	MediaFile  pickerMediaFile `json:"mediaFile"`
}

type pickerMediaItemList struct {
	MediaItems    []pickerMediaItem `json:"mediaItems"`
	NextPageToken string            `json:"nextPageToken"`
}

func (g *GooglePhotos) CreateSession(ctx context.Context, token string) (*Session, error) {
	var session pickerSession
	err := g.doJSON(ctx, token, http.MethodPost, g.pickerBaseURL+"/sessions", nil, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to create picker session: %w", err)
	}

	return &Session{
		ID:        session.ID,
		PickerURI: session.PickerURI,
		CreatedAt: time.Now(),
	}, nil
}

func (g *GooglePhotos) GetSession(ctx context.Context, token, sessionID string) (*SessionStatus, error) {
	var session pickerSession
	err := g.doJSON(ctx, token, http.MethodGet, g.pickerBaseURL+"/sessions/"+sessionID, nil, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to poll picker session: %w", err)
	}

	return &SessionStatus{MediaItemsSet: session.MediaItemsSet}, nil
}

func (g *GooglePhotos) FetchMedia(ctx context.Context, token, sessionID string) ([]MediaItem, error) {
	var items []MediaItem
	pageToken := ""

	for {
		url := g.pickerBaseURL + "/mediaItems?sessionId=" + sessionID + "&pageSize=100"
		if pageToken != "" {
			url += "&pageToken=" + pageToken
		}

		var page pickerMediaItemList
		err := g.doJSON(ctx, token, http.MethodGet, url, nil, &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list selected media: %w", err)
		}

		for _, it := range page.MediaItems {
			item := MediaItem{
				ID:       it.ID,
				Filename: it.MediaFile.Filename,
				MimeType: it.MediaFile.MimeType,
				BaseURL:  it.MediaFile.BaseURL,
			}
			if t, err := time.Parse(time.RFC3339, it.CreateTime); err == nil {
				item.CreateTime = &t
			}
			items = append(items, item)
		}

		if page.NextPageToken == "" {
			return items, nil
		}
		pageToken = page.NextPageToken
	}
}

// DownloadMedia fetches original bytes via the item's baseUrl. The "=d"
// suffix requests the original file rather than a preview rendition.
func (g *GooglePhotos) DownloadMedia(ctx context.Context, token string, item MediaItem) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.BaseURL+"=d", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading media body: %v", ErrTransport, err)
	}

	return data, nil
}

func (g *GooglePhotos) DeleteSession(ctx context.Context, token, sessionID string) error {
	err := g.doJSON(ctx, token, http.MethodDelete, g.pickerBaseURL+"/sessions/"+sessionID, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to delete picker session: %w", err)
	}
	return nil
}

// Upload pushes bytes through the Library API's two-step flow: raw upload
// for a token, then batchCreate to register the media item.
func (g *GooglePhotos) Upload(ctx context.Context, token, filename, mediaType string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.libraryBaseURL+"/uploads", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-Content-Type", mediaType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	uploadToken, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading upload token: %v", ErrTransport, err)
	}

	body := map[string]any{
		"newMediaItems": []map[string]any{
			{
				"simpleMediaItem": map[string]any{
					"uploadToken": string(uploadToken),
					"fileName":    filename,
				},
			},
		},
	}

	var result struct {
		NewMediaItemResults []struct {
			MediaItem struct {
				ID string `json:"id"`
			} `json:"mediaItem"`
		} `json:"newMediaItemResults"`
	}
	err = g.doJSON(ctx, token, http.MethodPost, g.libraryBaseURL+"/mediaItems:batchCreate", body, &result)
	if err != nil {
		return "", fmt.Errorf("failed to register uploaded media: %w", err)
	}

	if len(result.NewMediaItemResults) == 0 {
		return "", fmt.Errorf("%w: batchCreate returned no results", ErrTransport)
	}

	return result.NewMediaItemResults[0].MediaItem.ID, nil
}

// doJSON performs an authorized JSON round trip. A nil out discards the
// response body.
func (g *GooglePhotos) doJSON(ctx context.Context, token, method, url string, in any, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrTransport, err)
	}

	return nil
}

// checkStatus maps provider HTTP statuses to the package error taxonomy.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrTokenExpired
	case resp.StatusCode == http.StatusNotFound:
		return ErrSessionNotFound
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}
}
