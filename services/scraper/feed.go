// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxFeedBytes bounds how much of a feed response is read.
const maxFeedBytes = 4 << 20

// FeedItem is one entry of an RSS feed.
type FeedItem struct {
	Title     string
	Link      string
	Published time.Time
}

type rssDocument struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			GUID    string `xml:"guid"`
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// ParseFeed decodes an RSS 2.0 document. Items without a link are dropped;
// items whose date cannot be parsed keep a zero Published time.
func ParseFeed(r io.Reader) ([]FeedItem, error) {
	var doc rssDocument
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	items := make([]FeedItem, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" && strings.HasPrefix(strings.TrimSpace(it.GUID), "http") {
			link = strings.TrimSpace(it.GUID)
		}
		if link == "" {
			continue
		}
		items = append(items, FeedItem{
			Title:     strings.TrimSpace(it.Title),
			Link:      link,
			Published: parsePubDate(it.PubDate),
		})
	}
	return items, nil
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// PublishedOn keeps the items published on now's calendar day in loc.
func PublishedOn(items []FeedItem, now time.Time, loc *time.Location) []FeedItem {
	y, m, d := now.In(loc).Date()
	out := make([]FeedItem, 0, len(items))
	for _, it := range items {
		if it.Published.IsZero() {
			continue
		}
		py, pm, pd := it.Published.In(loc).Date()
		if py == y && pm == m && pd == d {
			out = append(out, it)
		}
	}
	return out
}

// FetchFeed downloads and parses one feed.
func FetchFeed(ctx context.Context, client *http.Client, url string) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}
	return ParseFeed(io.LimitReader(resp.Body, maxFeedBytes))
}
