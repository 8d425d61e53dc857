package httpx

import (
	"net/http"
	"strings"
)

// MediaType returns the media type of the request, without any parameters.
func MediaType(req *http.Request) string {
	return strings.TrimSpace(strings.Split(req.Header.Get("Content-Type"), ";")[0])
}
