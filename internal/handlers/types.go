package handlers

// OriginalURLPattern restricts shortening to https URLs on a www host.
const OriginalURLPattern = `^https://www\.[a-zA-Z0-9-]+\.[a-zA-Z]{2,5}(?:/[a-zA-Z0-9-._~!$&'()*+,;=:@/?%]*)?$`

// ShortenRequest is the request body for creating a short link.
type ShortenRequest struct {
	Body struct {
		OriginalURL string `doc:"The URL to shorten" example:"https://www.example.com/very/long/path" json:"originalUrl" pattern:"^https://www\\.[a-zA-Z0-9-]+\\.[a-zA-Z]{2,5}(?:/[a-zA-Z0-9-._~!$&'()*+,;=:@/?%]*)?$" patternDescription:"https://www.<domain>.<tld>[/path]"`
	}
}

// ShortenResponse is the response for a successfully shortened URL.
type ShortenResponse struct {
	Body struct {
		ShortLink string `doc:"The full short link" example:"http://localhost:8888/12Dxta0mx" json:"shortLink"`
	}
}

// RetrieveRequest looks up the original URL behind a short link.
type RetrieveRequest struct {
	ShortURL string `doc:"A short link; its last path segment is the code" example:"http://localhost:8888/12Dxta0mx" query:"shortUrl" required:"true"`
}

// RetrieveResponse carries the original URL of a short link.
type RetrieveResponse struct {
	Body struct {
		OriginalURL string `doc:"The original URL" example:"https://www.example.com/very/long/path" json:"originalUrl"`
	}
}

// RedirectRequest is the request for redirecting a short URL.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"12Dxta0mx" path:"code"`
}

// RedirectResponse sends the client to the original URL.
type RedirectResponse struct {
	Status  int
	Headers struct {
		Location string `header:"Location"`
	}
}
