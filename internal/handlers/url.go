package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serroba/link-converter/internal/analytics"
	"github.com/serroba/link-converter/internal/ratelimit"
	"github.com/serroba/link-converter/internal/shortener"
	"go.uber.org/zap"
)

// LinkService is the engine behind the URL endpoints.
type LinkService interface {
	CreateOrGet(ctx context.Context, principal, originalURL string) (shortener.Creation, error)
	ResolveCode(ctx context.Context, code shortener.Code) (string, error)
}

// URLHandler handles URL shortening operations.
type URLHandler struct {
	service    LinkService
	baseURL    string
	publishers analytics.Publishers
	now        func() time.Time
	logger     *zap.Logger
}

// NewURLHandler creates a new URL handler. Short links are rendered as baseURL/code.
func NewURLHandler(
	service LinkService,
	baseURL string,
	publishers analytics.Publishers,
	logger *zap.Logger,
) *URLHandler {
	return &URLHandler{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		publishers: publishers,
		now:        time.Now,
		logger:     logger,
	}
}

type requestMetaKey struct{}

// RequestMeta holds HTTP request metadata for analytics.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

func (h *URLHandler) Shorten(ctx context.Context, req *ShortenRequest) (*ShortenResponse, error) {
	meta := RequestMetaFromContext(ctx)

	h.logger.Info("shorten requested", zap.String("url", req.Body.OriginalURL), zap.String("client_ip", meta.ClientIP))

	creation, err := h.service.CreateOrGet(ctx, meta.ClientIP, req.Body.OriginalURL)
	if err != nil {
		h.logFailure("shorten failed", err, zap.String("url", req.Body.OriginalURL))

		return nil, mapError(err)
	}

	link := creation.Link

	if creation.Created {
		event := &analytics.LinkCreatedEvent{
			Code:        string(link.Code),
			OriginalURL: link.OriginalURL,
			CreatedAt:   link.CreatedAt,
			ClientIP:    meta.ClientIP,
			UserAgent:   meta.UserAgent,
		}

		if err := h.publishers.LinkCreated(ctx, event); err != nil {
			h.logger.Error("failed to publish analytics event",
				zap.String("code", event.Code),
				zap.Error(err),
			)
		}
	}

	resp := &ShortenResponse{}
	resp.Body.ShortLink = fmt.Sprintf("%s/%s", h.baseURL, link.Code)

	return resp, nil
}

func (h *URLHandler) Retrieve(ctx context.Context, req *RetrieveRequest) (*RetrieveResponse, error) {
	code, err := CodeFromShortURL(req.ShortURL)
	if err != nil {
		return nil, NewError(http.StatusBadRequest, "Invalid short URL format", err)
	}

	originalURL, err := h.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	resp := &RetrieveResponse{}
	resp.Body.OriginalURL = originalURL

	return resp, nil
}

func (h *URLHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	originalURL, err := h.resolve(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, err
	}

	h.logger.Debug("redirecting", zap.String("code", req.Code), zap.String("url", originalURL))

	resp := &RedirectResponse{
		Status: http.StatusFound,
	}
	resp.Headers.Location = originalURL

	return resp, nil
}

// resolve looks code up and reports the outcome to analytics.
func (h *URLHandler) resolve(ctx context.Context, code shortener.Code) (string, error) {
	originalURL, err := h.service.ResolveCode(ctx, code)

	outcome := analytics.OutcomeOK

	switch {
	case errors.Is(err, shortener.ErrNotFound):
		outcome = analytics.OutcomeNotFound
	case errors.Is(err, shortener.ErrExpired):
		outcome = analytics.OutcomeExpired
	case err != nil:
		h.logFailure("resolve failed", err, zap.String("code", string(code)))

		return "", mapError(err)
	}

	meta := RequestMetaFromContext(ctx)
	event := &analytics.LinkResolvedEvent{
		Code:       string(code),
		Outcome:    outcome,
		ResolvedAt: h.now(),
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
	}

	if pubErr := h.publishers.LinkResolved(ctx, event); pubErr != nil {
		h.logger.Error("failed to publish resolve event",
			zap.String("code", event.Code),
			zap.Error(pubErr),
		)
	}

	if err != nil {
		return "", mapError(err)
	}

	return originalURL, nil
}

func (h *URLHandler) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))

	if errors.Is(err, ratelimit.ErrLimitExceeded) || errors.Is(err, shortener.ErrCodeCollision) {
		h.logger.Warn(msg, fields...)

		return
	}

	h.logger.Error(msg, fields...)
}

// CodeFromShortURL returns the last path segment of shortURL.
func CodeFromShortURL(shortURL string) (shortener.Code, error) {
	u, err := url.Parse(shortURL)
	if err != nil {
		return "", fmt.Errorf("parse short url: %w", err)
	}

	segment := u.Path[strings.LastIndex(u.Path, "/")+1:]
	if segment == "" {
		return "", errors.New("short url has no code segment")
	}

	return shortener.Code(segment), nil
}
