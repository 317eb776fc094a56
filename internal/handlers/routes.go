package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers all link routes.
func RegisterRoutes(api huma.API, urlHandler *URLHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "shorten",
		Method:      http.MethodPost,
		Path:        "/api/shorten",
		Summary:     "Create short link",
		Description: "Returns the short link for a URL, creating it on first use. Repeated calls with the same URL return the same link.",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusConflict, http.StatusTooManyRequests},
	}, urlHandler.Shorten)

	huma.Register(api, huma.Operation{
		OperationID: "retrieve",
		Method:      http.MethodGet,
		Path:        "/api/retrieve",
		Summary:     "Retrieve original URL",
		Description: "Returns the original URL behind a short link.",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusGone},
	}, urlHandler.Retrieve)

	huma.Register(api, huma.Operation{
		OperationID:   "redirect",
		Method:        http.MethodGet,
		Path:          "/{code}",
		Summary:       "Redirect to original URL",
		Description:   "Redirects to the original URL associated with the short code.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusFound,
		Errors:        []int{http.StatusNotFound, http.StatusGone},
	}, urlHandler.Redirect)
}
