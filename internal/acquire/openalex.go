// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/propextract/internal/httputil"
	"github.com/pdiddy/propextract/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

type openAlexResponse struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// resolveOpenAlex asks OpenAlex for an open-access PDF of doi. It returns
// an empty string when the work is unknown or has no open-access PDF.
func (f *httpFallback) resolveOpenAlex(ctx context.Context, doi types.PaperIdentifier) (string, error) {
	apiURL := openAlexAPIBase + "https://doi.org/" + string(doi)
	if f.mailto != "" {
		apiURL += "?mailto=" + url.QueryEscape(f.mailto)
	}

	req, err := http.NewRequest(http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating OpenAlex request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.policy)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	var oa openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oa); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if oa.BestOALocation == nil {
		return "", nil
	}
	return oa.BestOALocation.PDFURL, nil
}
