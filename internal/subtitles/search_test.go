package subtitles

import (
	"context"
	"errors"
	"testing"
	"time"

	"muteguard/internal/services"
	"muteguard/internal/subtitles/opensubtitles"
)

func newTestSearcher(index Index, relaxed bool) *Searcher {
	return NewSearcher(index, NewRanker(DefaultRankerOptions()), SearcherOptions{
		QueryDelay:      time.Millisecond,
		RelaxedFallback: relaxed,
	})
}

func TestSearcherAlphaSelectsPopularCandidate(t *testing.T) {
	index := &fakeIndex{respond: func(opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
		return subtitleResponse(opensubtitles.Subtitle{
			FileIDs:   []int64{101},
			Language:  "en",
			Release:   "alpha.2019",
			Downloads: 50,
		}), nil
	}}
	content := Content{ID: "alpha", Kind: KindMovie, Title: "Alpha"}

	ranking, err := newTestSearcher(index, true).Find(context.Background(), content)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	best, ok := ranking.Best()
	if !ok || best.FileID() != 101 {
		t.Fatalf("expected candidate 101, got %+v", ranking)
	}
	if ranking.Relaxed {
		t.Fatal("Alpha should be found without the relaxed pass")
	}
	if calls := index.requests(); len(calls) != 1 || calls[0].Query != "alpha" {
		t.Fatalf("expected a single strict query, got %+v", calls)
	}
}

func TestSearcherBetaTriggersRelaxedCascade(t *testing.T) {
	index := &fakeIndex{respond: func(opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
		return subtitleResponse(
			opensubtitles.Subtitle{FileIDs: []int64{201}, Language: "en", Release: "beta", Downloads: 2},
			opensubtitles.Subtitle{FileIDs: []int64{202}, Language: "en", Release: "beta.720p", Downloads: 2},
		), nil
	}}
	content := Content{ID: "beta", Kind: KindMovie, Title: "Beta"}

	ranking, err := newTestSearcher(index, true).Find(context.Background(), content)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !ranking.Relaxed {
		t.Fatalf("expected relaxed ranking, got %+v", ranking)
	}
	if best, _ := ranking.Best(); best.FileID() != 201 {
		t.Fatalf("expected exact release to win, got %d", best.FileID())
	}
}

func TestSearcherBetaWithoutFallbackReportsNoResults(t *testing.T) {
	index := &fakeIndex{respond: func(opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
		return subtitleResponse(opensubtitles.Subtitle{FileIDs: []int64{201}, Release: "beta", Downloads: 2}), nil
	}}
	content := Content{ID: "beta", Kind: KindMovie, Title: "Beta"}

	_, err := newTestSearcher(index, false).Find(context.Background(), content)
	if !errors.Is(err, services.ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if services.UserMessage(err) != "No suitable subtitle was found for this title." {
		t.Fatalf("unexpected user message %q", services.UserMessage(err))
	}
}

func TestSearcherIdentifierFirstThenFreeText(t *testing.T) {
	index := &fakeIndex{respond: func(req opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
		if req.IMDBID != "" {
			return subtitleResponse(), nil
		}
		return subtitleResponse(opensubtitles.Subtitle{FileIDs: []int64{7}, Release: "Gamma.S01E02", Downloads: 30}), nil
	}}
	content := Content{ID: "gamma-1-2", Kind: KindEpisode, Title: "Pilot", ShowTitle: "Gamma", Season: 1, Episode: 2, IMDBID: "tt123"}

	ranking, err := newTestSearcher(index, true).Find(context.Background(), content)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	calls := index.requests()
	if len(calls) < 2 || calls[0].IMDBID != "tt123" || calls[0].Season != 1 || calls[0].Episode != 2 {
		t.Fatalf("expected identifier lookup first, got %+v", calls)
	}
	if calls[1].Query != "gamma.s01e02" {
		t.Fatalf("expected free-text fallback, got %+v", calls[1])
	}
	if ranking.Identifier {
		t.Fatal("ranking should come from free-text results")
	}
}

func TestSearcherIdentifierHitSkipsFreeText(t *testing.T) {
	index := &fakeIndex{respond: func(req opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
		return subtitleResponse(opensubtitles.Subtitle{FileIDs: []int64{8}, Release: "Gamma.S01E02", Downloads: 4}), nil
	}}
	content := Content{ID: "gamma-1-2", Kind: KindEpisode, ShowTitle: "Gamma", Title: "Pilot", Season: 1, Episode: 2, IMDBID: "tt123"}

	ranking, err := newTestSearcher(index, true).Find(context.Background(), content)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !ranking.Identifier || len(index.requests()) != 1 {
		t.Fatalf("expected identifier-only search, got %d calls", len(index.requests()))
	}
}

func TestSearcherSurfacesNetworkFailure(t *testing.T) {
	netErr := &opensubtitles.NetworkError{Kind: opensubtitles.KindTimeout, Operation: "search", Attempts: 3, Err: context.DeadlineExceeded}
	index := &fakeIndex{respond: func(opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
		return opensubtitles.SearchResponse{}, netErr
	}}
	_, err := newTestSearcher(index, true).Find(context.Background(), Content{ID: "x", Kind: KindMovie, Title: "Delta"})
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestSearcherRejectsInvalidContent(t *testing.T) {
	_, err := newTestSearcher(&fakeIndex{}, true).Find(context.Background(), Content{Kind: KindMovie, Title: "x"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearcherFreeTextCarriesYear(t *testing.T) {
	index := &fakeIndex{respond: func(opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
		return subtitleResponse(opensubtitles.Subtitle{FileIDs: []int64{301}, Release: "epsilon", Downloads: 2}), nil
	}}
	content := Content{ID: "epsilon", Kind: KindMovie, Title: "Epsilon", Year: 2019, IMDBID: "tt777"}

	if _, err := newTestSearcher(index, true).Find(context.Background(), content); err != nil {
		t.Fatalf("Find: %v", err)
	}
	calls := index.requests()
	if len(calls) < 2 {
		t.Fatalf("expected identifier and free-text requests, got %+v", calls)
	}
	for _, req := range calls {
		if req.IMDBID != "" {
			continue
		}
		if req.Year != 2019 {
			t.Fatalf("free-text request %q sent year %d", req.Query, req.Year)
		}
	}
	if calls[len(calls)-1].IMDBID != "" {
		t.Fatalf("expected free-text requests after the identifier lookup, got %+v", calls)
	}
}
