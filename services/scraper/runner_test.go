// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flywise/pkg/config"
	"github.com/AleutianAI/flywise/services/store"
)

type fakePromotionStore struct {
	mu         sync.Mutex
	expired    int64
	expiredErr error
	upsertErr  map[string]error
	saved      []*store.Promocao
	expiredAt  time.Time
}

func (f *fakePromotionStore) DeleteExpiredPromotions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiredAt = now
	return f.expired, f.expiredErr
}

func (f *fakePromotionStore) UpsertPromotion(_ context.Context, p *store.Promocao) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[p.URL]; err != nil {
		return err
	}
	f.saved = append(f.saved, p)
	return nil
}

// blogServer serves one feed and the articles it links to.
func blogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/feed/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<item><title>Feed title A</title><link>%[1]s/posts/a</link><pubDate>Mon, 10 Mar 2025 09:00:00 -0300</pubDate></item>
<item><title></title><link>%[1]s/posts/untitled</link><pubDate>Mon, 10 Mar 2025 10:00:00 -0300</pubDate></item>
<item><title>Broken</title><link>%[1]s/posts/missing</link><pubDate>Mon, 10 Mar 2025 11:00:00 -0300</pubDate></item>
<item><title>Old</title><link>%[1]s/posts/old</link><pubDate>Fri, 07 Mar 2025 11:00:00 -0300</pubDate></item>
</channel></rss>`, srv.URL)
	})
	mux.HandleFunc("/posts/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:title" content="Smiles: 100% de bônus na transferência do Itaú"></head>
<body><article><p>Promoção válida até 15/03 às 23h59.</p><p>`+strings.Repeat("x", 200)+`</p></article></body></html>`)
	})
	mux.HandleFunc("/posts/untitled", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article><p>Sem cabeçalho</p></article></body></html>`)
	})
	mux.HandleFunc("/posts/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/broken-feed/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRunner(t *testing.T, feeds []string, st PromotionStore) *Runner {
	t.Helper()
	loc := saoPaulo(t)
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, loc)
	r, err := NewRunner(config.ScraperConfig{
		FeedURLs:        feeds,
		Source:          "passageirodeprimeira.com",
		PostDelay:       time.Millisecond,
		MaxContentBytes: 100,
		TimeZone:        "America/Sao_Paulo",
	}, st, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return r
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(config.ScraperConfig{}, &fakePromotionStore{})
	assert.Error(t, err)

	_, err = NewRunner(config.ScraperConfig{FeedURLs: []string{"http://x"}, TimeZone: "Mars/Olympus"}, &fakePromotionStore{})
	assert.Error(t, err)
}

func TestRunner_Run(t *testing.T) {
	srv := blogServer(t)
	st := &fakePromotionStore{expired: 3}
	r := newTestRunner(t, []string{srv.URL + "/feed/", srv.URL + "/broken-feed/", srv.URL + "/feed/"}, st)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Expired)
	assert.Equal(t, 3, res.Found, "duplicate feed entries are merged and old posts skipped")
	assert.Equal(t, 2, res.Saved)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, st.expiredAt.IsZero())

	require.Len(t, st.saved, 2)
	first := st.saved[0]
	assert.Equal(t, srv.URL+"/posts/a", first.URL)
	assert.Equal(t, "Smiles: 100% de bônus na transferência do Itaú", first.Titulo)
	assert.Equal(t, "passageirodeprimeira.com", first.Fonte)
	assert.Equal(t, "Smiles", first.Programa)
	assert.Equal(t, TypeTransferBonus, first.Tipo)
	assert.Equal(t, 100, first.BonusPct)
	assert.Equal(t, "Itaú", first.Parceiro)
	assert.LessOrEqual(t, len(first.Conteudo), 100)
	require.NotNil(t, first.ValidUntil)
	assert.Equal(t, 15, first.ValidUntil.Day())

	assert.Equal(t, untitled, st.saved[1].Titulo)
}

func TestRunner_Run_ExpiredFailureContinues(t *testing.T) {
	srv := blogServer(t)
	st := &fakePromotionStore{
		expiredErr: errors.New("db locked"),
		upsertErr:  map[string]error{srv.URL + "/posts/a": errors.New("constraint")},
	}
	r := newTestRunner(t, []string{srv.URL + "/feed/"}, st)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Expired)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 2, res.Failed)
}

func TestRunner_Run_AllFeedsFail(t *testing.T) {
	srv := blogServer(t)
	r := newTestRunner(t, []string{srv.URL + "/broken-feed/"}, &fakePromotionStore{})

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 1 feeds failed")
}

func TestRunner_Run_Cancelled(t *testing.T) {
	srv := blogServer(t)
	st := &fakePromotionStore{}
	r := newTestRunner(t, []string{srv.URL + "/feed/"}, st)
	r.limiter.SetLimit(0.001)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := r.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, res.Saved, "first post goes out on the initial token")
}
