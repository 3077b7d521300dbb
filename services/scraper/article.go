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
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	userAgent       = "Mozilla/5.0 (compatible; FlyWiseBot/1.0)"
	maxArticleBytes = 4 << 20
)

var (
	multiSpacePattern   = regexp.MustCompile(`[ \t\x{00a0}]+`)
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
)

// Article is the readable part of a post.
type Article struct {
	URL     string
	Title   string
	Content string
}

// ParseArticle extracts the title and body text from an HTML page.
//
// # Description
//
// The title prefers og:title, then the first h1, then <title>. The body is
// the first <article> element, or the element with class "entry-content",
// or <body>. Script, style and page chrome are skipped. Content is capped at
// maxBytes on a rune boundary; zero means no cap.
func ParseArticle(r io.Reader, maxBytes int) (Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Article{}, fmt.Errorf("failed to parse article: %w", err)
	}

	var a Article
	if og := findNode(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, "property") == "og:title"
	}); og != nil {
		a.Title = strings.TrimSpace(attr(og, "content"))
	}
	if a.Title == "" {
		if h1 := findNode(doc, byTag("h1")); h1 != nil {
			a.Title = collapse(textOf(h1))
		}
	}
	if a.Title == "" {
		if t := findNode(doc, byTag("title")); t != nil {
			a.Title = collapse(textOf(t))
		}
	}

	body := findNode(doc, byTag("article"))
	if body == nil {
		body = findNode(doc, func(n *html.Node) bool {
			return hasClass(n, "entry-content")
		})
	}
	if body == nil {
		body = findNode(doc, byTag("body"))
	}
	if body != nil {
		a.Content = capBytes(collapse(textOf(body)), maxBytes)
	}
	return a, nil
}

// FetchArticle downloads url and runs ParseArticle on it.
func FetchArticle(ctx context.Context, client *http.Client, url string, maxBytes int) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Article{}, fmt.Errorf("failed to create article request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Article{}, fmt.Errorf("article returned HTTP %d", resp.StatusCode)
	}

	a, err := ParseArticle(io.LimitReader(resp.Body, maxArticleBytes), maxBytes)
	if err != nil {
		return Article{}, err
	}
	a.URL = url
	return a, nil
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

// findNode returns the first element in document order matching match.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	writeText(n, &sb)
	return sb.String()
}

func writeText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "aside", "form":
			return
		case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section":
			sb.WriteString("\n")
			defer sb.WriteString("\n")
		case "br":
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, sb)
	}
}

// collapse squeezes runs of spaces, trims each line and keeps at most one
// blank line between paragraphs.
func collapse(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func capBytes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
