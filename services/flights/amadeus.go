// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/flywise/pkg/loyalty"
	"github.com/AleutianAI/flywise/services/cache"
	"github.com/AleutianAI/flywise/services/store"
)

const (
	amadeusProvider = "amadeus"
	// tokenEarlyExpiry refreshes the access token this long before it expires.
	tokenEarlyExpiry = 60 * time.Second
	airportLimit     = 6
)

var cabinNames = map[string]string{
	CabinEconomy:        "economy",
	CabinPremiumEconomy: "premium_economy",
	CabinBusiness:       "business",
	CabinFirst:          "first",
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?)?$`)

// AmadeusConfig configures NewAmadeusClient.
type AmadeusConfig struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Currency          string
	MaxResults        int
	RequestsPerSecond float64
	AirportCacheTTL   time.Duration
	OfferCacheTTL     time.Duration

	// HTTPClient is the transport for both token and API calls. Optional.
	HTTPClient *http.Client
	// Cache stores airport and offer responses. Optional.
	Cache *cache.Cache
}

// AmadeusClient implements Provider against the Amadeus Self-Service APIs.
//
// # Description
//
// Access tokens come from the OAuth2 client-credentials flow and are reused
// until 60 seconds before they expire. Every API call waits on a token-bucket
// limiter. Concurrent identical airport lookups share one upstream request,
// and results are cached when a Cache is configured.
//
// # Thread Safety
//
// Safe for concurrent use.
type AmadeusClient struct {
	cfg     AmadeusConfig
	http    *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
	cache   *cache.Cache
}

// NewAmadeusClient builds a client. Returns ErrNotConfigured when the client
// id or secret is empty.
func NewAmadeusClient(cfg AmadeusConfig) (*AmadeusClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://test.api.amadeus.com"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/v1/security/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	fetch := tokenSourceFunc(func() (*oauth2.Token, error) {
		slog.Info("Requesting Amadeus access token")
		tok, err := cc.Token(tokenCtx)
		if err != nil {
			slog.Error("Amadeus authentication failed", "error", err)
			return nil, fmt.Errorf("amadeus authentication failed: %w", err)
		}
		slog.Info("Amadeus token acquired", "expires_at", tok.Expiry)
		return tok, nil
	})
	ts := oauth2.ReuseTokenSourceWithExpiry(nil, fetch, tokenEarlyExpiry)

	httpClient := &http.Client{
		Timeout:   base.Timeout,
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
	}

	burst := int(math.Ceil(cfg.RequestsPerSecond))
	return &AmadeusClient{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		cache:   cfg.Cache,
	}, nil
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

// Name implements Provider.
func (a *AmadeusClient) Name() string { return amadeusProvider }

type amadeusLocation struct {
	IATACode string `json:"iataCode"`
	Name     string `json:"name"`
	Address  struct {
		CityName    string `json:"cityName"`
		CountryCode string `json:"countryCode"`
	} `json:"address"`
}

// SearchAirports returns up to six airports matching keyword, most travelled
// first. Keywords shorter than two characters and upstream HTTP errors yield
// an empty list.
func (a *AmadeusClient) SearchAirports(ctx context.Context, keyword string) ([]Airport, error) {
	keyword = strings.TrimSpace(keyword)
	if len([]rune(keyword)) < 2 {
		return []Airport{}, nil
	}
	key := "amadeus:airports:" + strings.ToLower(keyword)

	if a.cache != nil {
		var cached []Airport
		if ok, err := a.cache.GetJSON(key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	v, err, shared := a.group.Do(key, func() (interface{}, error) {
		return a.fetchAirports(ctx, keyword)
	})
	recordSearch(amadeusProvider, "airports", err)
	if err != nil {
		return nil, err
	}
	airports := v.([]Airport)
	if shared {
		slog.Debug("Airport lookup shared with concurrent caller", "keyword", keyword)
	}
	if a.cache != nil && len(airports) > 0 {
		if err := a.cache.SetJSON(key, airports, a.cfg.AirportCacheTTL); err != nil {
			slog.Warn("Failed to cache airports", "keyword", keyword, "error", err)
		}
	}
	out := make([]Airport, len(airports))
	copy(out, airports)
	return out, nil
}

func (a *AmadeusClient) fetchAirports(ctx context.Context, keyword string) ([]Airport, error) {
	ctx, span := tracer.Start(ctx, "AmadeusClient.SearchAirports")
	defer span.End()
	span.SetAttributes(attribute.String("flights.keyword", keyword))

	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("subType", "AIRPORT")
	q.Set("page[limit]", strconv.Itoa(airportLimit))
	q.Set("sort", "analytics.travelers.score")
	q.Set("view", "LIGHT")

	status, body, err := a.get(ctx, "/v1/reference-data/locations", q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if status != http.StatusOK {
		slog.Warn("Amadeus airport search failed", "status_code", status, "keyword", keyword)
		return []Airport{}, nil
	}

	var resp struct {
		Data []amadeusLocation `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Amadeus locations: %w", err)
	}

	out := make([]Airport, 0, len(resp.Data))
	for _, loc := range resp.Data {
		city := loc.Address.CityName
		if city == "" {
			city = loc.Name
		}
		out = append(out, Airport{
			IATACode:    loc.IATACode,
			Name:        loc.Name,
			CityName:    loc.Address.CityName,
			CountryCode: loc.Address.CountryCode,
			Label:       fmt.Sprintf("%s (%s) — %s", city, loc.IATACode, loc.Address.CountryCode),
		})
	}
	return out, nil
}

type amadeusSegment struct {
	Departure struct {
		IATACode string `json:"iataCode"`
		At       string `json:"at"`
	} `json:"departure"`
	Arrival struct {
		IATACode string `json:"iataCode"`
		At       string `json:"at"`
	} `json:"arrival"`
	CarrierCode string `json:"carrierCode"`
	Number      string `json:"number"`
	Duration    string `json:"duration"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusOffer struct {
	ID          string             `json:"id"`
	Itineraries []amadeusItinerary `json:"itineraries"`
	Price       struct {
		Total      string `json:"total"`
		Base       string `json:"base"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
	TravelerPricings []struct {
		FareDetailsBySegment []struct {
			Cabin string `json:"cabin"`
		} `json:"fareDetailsBySegment"`
	} `json:"travelerPricings"`
}

type amadeusErrorResponse struct {
	Errors []struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	} `json:"errors"`
}

// SearchFlights returns normalized flight offers priced in the configured
// currency. Non-2xx answers fail with the first error detail Amadeus reports.
func (a *AmadeusClient) SearchFlights(ctx context.Context, p SearchParams) ([]FlightOffer, error) {
	ctx, span := tracer.Start(ctx, "AmadeusClient.SearchFlights")
	defer span.End()

	q := a.flightQuery(p)
	span.SetAttributes(
		attribute.String("flights.origin", q.Get("originLocationCode")),
		attribute.String("flights.destination", q.Get("destinationLocationCode")),
	)
	key := "amadeus:offers:" + q.Encode()

	if a.cache != nil {
		var cached []FlightOffer
		if ok, err := a.cache.GetJSON(key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	offers, err := a.fetchFlights(ctx, q, p.DepartureDate)
	recordSearch(amadeusProvider, "flights", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("flights.offers", len(offers)))

	if a.cache != nil {
		if err := a.cache.SetJSON(key, offers, a.cfg.OfferCacheTTL); err != nil {
			slog.Warn("Failed to cache flight offers", "error", err)
		}
	}
	return offers, nil
}

func (a *AmadeusClient) flightQuery(p SearchParams) url.Values {
	adults := p.Adults
	if adults <= 0 {
		adults = 1
	}
	limit := p.Max
	if limit <= 0 {
		limit = a.cfg.MaxResults
	}
	q := url.Values{}
	q.Set("originLocationCode", strings.ToUpper(strings.TrimSpace(p.Origin)))
	q.Set("destinationLocationCode", strings.ToUpper(strings.TrimSpace(p.Destination)))
	q.Set("departureDate", p.DepartureDate)
	q.Set("adults", strconv.Itoa(adults))
	q.Set("currencyCode", a.cfg.Currency)
	q.Set("max", strconv.Itoa(limit))
	if p.ReturnDate != "" {
		q.Set("returnDate", p.ReturnDate)
	}
	if p.Cabin != "" {
		q.Set("travelClass", p.Cabin)
	}
	if p.NonStop {
		q.Set("nonStop", "true")
	}
	return q
}

func (a *AmadeusClient) fetchFlights(ctx context.Context, q url.Values, departureDate string) ([]FlightOffer, error) {
	slog.Info("Amadeus flight search", "query", q.Encode())
	status, body, err := a.get(ctx, "/v2/shopping/flight-offers", q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var er amadeusErrorResponse
		_ = json.Unmarshal(body, &er)
		detail := "Erro ao buscar voos"
		if len(er.Errors) > 0 {
			if er.Errors[0].Detail != "" {
				detail = er.Errors[0].Detail
			} else if er.Errors[0].Title != "" {
				detail = er.Errors[0].Title
			}
		}
		slog.Error("Amadeus flight search error", "status_code", status, "detail", detail)
		return nil, fmt.Errorf("amadeus flight search failed (%d): %s", status, detail)
	}

	var resp struct {
		Data []amadeusOffer `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Amadeus flight offers: %w", err)
	}
	slog.Info("Amadeus flight search result", "offers", len(resp.Data))

	out := make([]FlightOffer, 0, len(resp.Data))
	for _, raw := range resp.Data {
		offer, ok := normalizeOffer(raw, departureDate)
		if !ok {
			slog.Warn("Skipping Amadeus offer without segments", "offer_id", raw.ID)
			continue
		}
		out = append(out, offer)
	}
	return out, nil
}

func normalizeOffer(raw amadeusOffer, departureDate string) (FlightOffer, bool) {
	if len(raw.Itineraries) == 0 || len(raw.Itineraries[0].Segments) == 0 {
		return FlightOffer{}, false
	}
	out0 := raw.Itineraries[0]
	first, last := out0.Segments[0], out0.Segments[len(out0.Segments)-1]
	carrier := first.CarrierCode

	totalStr := raw.Price.GrandTotal
	if totalStr == "" {
		totalStr = raw.Price.Total
	}
	total, _ := strconv.ParseFloat(totalStr, 64)
	base, _ := strconv.ParseFloat(raw.Price.Base, 64)

	cabin := CabinEconomy
	if len(raw.TravelerPricings) > 0 && len(raw.TravelerPricings[0].FareDetailsBySegment) > 0 {
		if c := raw.TravelerPricings[0].FareDetailsBySegment[0].Cabin; c != "" {
			cabin = c
		}
	}
	cabinName, ok := cabinNames[cabin]
	if !ok {
		cabinName = "economy"
	}

	offer := FlightOffer{
		ID:                   raw.ID,
		Companhia:            loyalty.AirlineName(carrier),
		CarrierCode:          carrier,
		PrecoBRL:             total,
		TaxasBRL:             math.Max(0, total-base),
		Partida:              first.Departure.At,
		Chegada:              last.Arrival.At,
		Origem:               first.Departure.IATACode,
		Destino:              last.Arrival.IATACode,
		DuracaoMin:           ParseISODuration(out0.Duration),
		Paradas:              len(out0.Segments) - 1,
		CabinClass:           cabinName,
		VooNumero:            carrier + first.Number,
		Segmentos:            toSegments(out0.Segments),
		FlightKey:            fmt.Sprintf("%s-%s-%s-%s-%s", carrier, first.Number, departureDate, first.Departure.IATACode, last.Arrival.IATACode),
		Provider:             amadeusProvider,
		Moeda:                "BRL",
		EstrategiaDisponivel: true,
	}

	if len(raw.Itineraries) > 1 && len(raw.Itineraries[1].Segments) > 0 {
		ret := raw.Itineraries[1]
		rf, rl := ret.Segments[0], ret.Segments[len(ret.Segments)-1]
		stops := len(ret.Segments) - 1
		offer.ReturnPartida = rf.Departure.At
		offer.ReturnChegada = rl.Arrival.At
		offer.ReturnOrigem = rf.Departure.IATACode
		offer.ReturnDestino = rl.Arrival.IATACode
		offer.ReturnDuracaoMin = ParseISODuration(ret.Duration)
		offer.ReturnParadas = &stops
		offer.ReturnSegmentos = toSegments(ret.Segments)
	}
	return offer, true
}

func toSegments(segs []amadeusSegment) []store.Segment {
	out := make([]store.Segment, 0, len(segs))
	for _, s := range segs {
		out = append(out, store.Segment{
			Origem:     s.Departure.IATACode,
			Partida:    s.Departure.At,
			Destino:    s.Arrival.IATACode,
			Chegada:    s.Arrival.At,
			Companhia:  loyalty.AirlineName(s.CarrierCode),
			Numero:     s.CarrierCode + s.Number,
			DuracaoMin: ParseISODuration(s.Duration),
		})
	}
	return out
}

// ParseISODuration converts an ISO-8601 duration such as "PT12H30M" or "P1DT2H" to
// minutes. Unparseable input yields 0.
func ParseISODuration(iso string) int {
	m := isoDurationPattern.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	d, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	mins, _ := strconv.Atoi(m[3])
	return d*24*60 + h*60 + mins
}

// get performs a rate-limited, authenticated GET and returns status and body.
func (a *AmadeusClient) get(ctx context.Context, path string, q url.Values) (int, []byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create Amadeus request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return 0, nil, fmt.Errorf("amadeus authentication failed: %s", re.ErrorDescription)
		}
		return 0, nil, fmt.Errorf("amadeus request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read Amadeus response: %w", err)
	}
	return resp.StatusCode, body, nil
}
