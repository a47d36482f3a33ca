package checker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aluiziolira/peterlang-checker/config"
	"github.com/aluiziolira/peterlang-checker/models"
	"github.com/aluiziolira/peterlang-checker/parser"
)

// DocumentPathSegment marks a product page URL on the publisher's site.
const DocumentPathSegment = "/document/"

// Resolver classifies book requests against the publisher's catalog.
// It holds no state between calls.
type Resolver struct {
	baseURL        *url.URL
	searchEndpoint string
	search         Fetcher
	document       Fetcher
	metrics        *Metrics
}

// NewResolver builds a resolver using search for the catalog query and
// document for product-page verification.
func NewResolver(cfg *config.Config, search, document Fetcher, metrics *Metrics) (*Resolver, error) {
	if search == nil || document == nil {
		return nil, fmt.Errorf("resolver requires search and document fetchers")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	return &Resolver{
		baseURL:        base,
		searchEndpoint: cfg.SearchEndpoint(),
		search:         search,
		document:       document,
		metrics:        metrics,
	}, nil
}

// Resolve returns exactly one classification for req. Failures are reported
// as StatusError results, never as errors.
func (r *Resolver) Resolve(ctx context.Context, req models.BookRequest) models.Result {
	result, _ := r.resolve(ctx, req)
	return result
}

// resolve also returns the underlying error so callers can account for it.
func (r *Resolver) resolve(ctx context.Context, req models.BookRequest) (models.Result, error) {
	plan, err := PlanQuery(req, r.searchEndpoint)
	if err != nil {
		slog.Warn("row has no searchable fields",
			slog.String("author", req.Author),
			slog.String("title", req.Title),
		)
		return models.Result{
			Status:     models.StatusNotAvailable,
			SearchURL:  models.NoValidInput,
			Diagnostic: err.Error(),
		}, err
	}

	result := models.Result{SearchURL: plan.SearchURL}
	slog.Info("searching catalog",
		slog.String("query", plan.Query),
		slog.String("search_url", plan.SearchURL),
	)

	page, err := r.search.Fetch(ctx, plan.SearchURL)
	if err != nil {
		if page != nil && page.FinalURL != "" && page.FinalURL != plan.SearchURL {
			result.FinalURL = page.FinalURL
		}
		return r.fail(result, plan.Query, err)
	}

	if strings.Contains(page.FinalURL, DocumentPathSegment) {
		result.FinalURL = page.FinalURL
		return r.verifyDocument(ctx, req, result)
	}
	return r.scanResults(req, plan, page, result)
}

// verifyDocument confirms a direct redirect by finding the ISBN on the product page.
func (r *Resolver) verifyDocument(ctx context.Context, req models.BookRequest, result models.Result) (models.Result, error) {
	page, err := r.document.Fetch(ctx, result.FinalURL)
	if err != nil {
		return r.fail(result, result.FinalURL, fmt.Errorf("validate redirect page: %w", err))
	}

	text, err := parser.DocumentText(page.Body)
	if err != nil {
		return r.fail(result, result.FinalURL, ErrParse{URL: result.FinalURL, Err: err})
	}

	isbn := usableISBN(req.ISBN)
	if parser.ContainsISBN(text, isbn) {
		slog.Info("book matched via redirect and validated", slog.String("final_url", result.FinalURL))
		result.Status = models.StatusAvailable
		return result, nil
	}

	slog.Warn("redirected but ISBN mismatch",
		slog.String("isbn", isbn),
		slog.String("final_url", result.FinalURL),
	)
	result.Status = models.StatusNotAvailable
	result.Diagnostic = "product page does not list the requested ISBN"
	return result, nil
}

// scanResults looks for the request in a search listing.
func (r *Resolver) scanResults(req models.BookRequest, plan models.QueryPlan, page *Page, result models.Result) (models.Result, error) {
	entries, err := parser.SearchEntries(page.Body)
	if err != nil {
		return r.fail(result, plan.Query, ErrParse{URL: plan.SearchURL, Err: err})
	}

	entry, ok := parser.MatchEntry(entries, usableISBN(req.ISBN), parser.CleanCell(req.Title))
	if !ok {
		slog.Warn("book not found",
			slog.String("query", plan.Query),
			slog.Int("entries", len(entries)),
		)
		result.Status = models.StatusNotAvailable
		result.FinalURL = ""
		return result, nil
	}

	result.Status = models.StatusAvailable
	result.FinalURL = r.absoluteURL(entry.Href)
	slog.Info("book found in search results", slog.String("final_url", result.FinalURL))
	return result, nil
}

func (r *Resolver) fail(result models.Result, subject string, err error) (models.Result, error) {
	category := errorTypeLabel(err)
	slog.Error("availability check failed",
		slog.String("subject", subject),
		slog.String("category", category),
		slog.Any("error", err),
	)
	r.metrics.IncError(category)

	result.Status = models.StatusError
	result.Diagnostic = err.Error()
	return result, err
}

func (r *Resolver) absoluteURL(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return strings.TrimSuffix(r.baseURL.String(), "/") + href
	}
	return r.baseURL.ResolveReference(ref).String()
}
