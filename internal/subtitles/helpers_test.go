package subtitles

import (
	"context"
	"fmt"
	"sync"

	"muteguard/internal/subtitles/opensubtitles"
)

type fakeIndex struct {
	mu      sync.Mutex
	calls   []opensubtitles.SearchRequest
	respond func(req opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error)
}

func (f *fakeIndex) Search(_ context.Context, req opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.respond == nil {
		return opensubtitles.SearchResponse{}, nil
	}
	return f.respond(req)
}

func (f *fakeIndex) requests() []opensubtitles.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]opensubtitles.SearchRequest(nil), f.calls...)
}

type fakeDownloader struct {
	mu    sync.Mutex
	calls []int64
	data  map[int64]string
}

func (f *fakeDownloader) Download(_ context.Context, fileID int64) (opensubtitles.DownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fileID)
	payload, ok := f.data[fileID]
	if !ok {
		return opensubtitles.DownloadResult{}, fmt.Errorf("file %d not found", fileID)
	}
	return opensubtitles.DownloadResult{Data: []byte(payload), FileName: fmt.Sprintf("%d.srt", fileID)}, nil
}

func (f *fakeDownloader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func subtitleResponse(subs ...opensubtitles.Subtitle) opensubtitles.SearchResponse {
	return opensubtitles.SearchResponse{Subtitles: subs, Total: len(subs)}
}

const sampleSRT = `1
00:00:01,000 --> 00:00:02,500
<i>Hello</i> there.

2
00:00:03,000 --> 00:00:04,000
What the hell
is going on?

3
00:00:05,000 --> 00:00:06,000
{\an8}Nothing at all.
`
