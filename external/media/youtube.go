package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/seajon16/sassbot/internal/media"
)

var (
	videoIDPattern    = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	searchHitPattern  = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)
	errNoSearchResult = errors.New("no video found for the given query")
)

// YouTubeResolver turns a YouTube link or free-text search into a
// playable stream URL. Links outside YouTube are refused outright.
type YouTubeResolver struct {
	baseURL string
	http    *http.Client
	yt      *youtube.Client
}

func NewYouTubeResolver() *YouTubeResolver {
	return &YouTubeResolver{
		baseURL: "https://www.youtube.com",
		http:    &http.Client{Timeout: 10 * time.Second},
		yt:      &youtube.Client{},
	}
}

func (r *YouTubeResolver) Resolve(ctx context.Context, query string) (*media.Track, error) {
	videoID, err := r.videoIDFor(ctx, query)
	if err != nil {
		return nil, err
	}

	video, err := r.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, media.Transient(fmt.Errorf("failed to fetch video metadata: %w", err))
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, media.Transient(fmt.Errorf("no audio formats for video %s", videoID))
	}
	streamURL, err := r.yt.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return nil, media.Transient(fmt.Errorf("failed to get stream URL: %w", err))
	}

	return &media.Track{
		Title:     video.Title,
		Uploader:  video.Author,
		Duration:  video.Duration,
		StreamURL: streamURL,
	}, nil
}

func (r *YouTubeResolver) videoIDFor(ctx context.Context, query string) (string, error) {
	if isURL(query) {
		m := videoIDPattern.FindStringSubmatch(query)
		if m == nil {
			return "", media.ErrUnsupportedSource
		}
		return m[1], nil
	}
	return r.searchFirstVideoID(ctx, query)
}

// searchFirstVideoID scrapes the first watch link out of the search
// results page.
func (r *YouTubeResolver) searchFirstVideoID(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", r.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", media.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", media.Transient(fmt.Errorf("search failed with status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", media.Transient(err)
	}

	m := searchHitPattern.FindStringSubmatch(string(body))
	if m == nil {
		return "", errNoSearchResult
	}
	return m[1], nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
