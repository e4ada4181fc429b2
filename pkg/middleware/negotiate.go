package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// PrefersHTML reports whether the Accept header ranks text/html strictly above
// application/json. Clients sending no Accept header get JSON.
func PrefersHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	if accept == "" {
		return false
	}

	var html, json float64
	for _, part := range strings.Split(accept, ",") {
		media, q := parseMediaRange(part)
		switch media {
		case "text/html":
			html = max(html, q)
		case "application/json":
			json = max(json, q)
		case "text/*":
			html = max(html, q*0.99)
		case "application/*":
			json = max(json, q*0.99)
		case "*/*":
			html = max(html, q*0.98)
			json = max(json, q*0.98)
		}
	}

	return html > json
}

func parseMediaRange(part string) (string, float64) {
	fields := strings.Split(part, ";")
	media := strings.ToLower(strings.TrimSpace(fields[0]))
	q := 1.0
	for _, param := range fields[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(k) != "q" {
			continue
		}
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			q = parsed
		}
	}
	return media, q
}
