package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"creator-subscription-api/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// SanitizeInputMiddleware strips markup from the top-level string fields of
// JSON request bodies
func SanitizeInputMiddleware() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.ErrorJSON(c, http.StatusBadRequest, "Invalid body")
			c.Abort()
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		var body map[string]interface{}
		decoder := json.NewDecoder(bytes.NewReader(buf))
		decoder.UseNumber()
		if err := decoder.Decode(&body); err != nil {
			response.ErrorJSON(c, http.StatusBadRequest, "Malformed JSON")
			c.Abort()
			return
		}

		for k, v := range body {
			if str, ok := v.(string); ok {
				body[k] = policy.Sanitize(str)
			}
		}

		newBody, err := json.Marshal(body)
		if err != nil {
			response.ErrorJSON(c, http.StatusBadRequest, "Malformed JSON")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(newBody))
		c.Request.ContentLength = int64(len(newBody))

		c.Next()
	}
}
