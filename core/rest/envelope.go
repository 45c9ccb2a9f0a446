package rest

import (
	"fmt"
	"net/http"

	"github.com/camkit/arlo/pkg/logger"
)

// errUntrustedSession is the envelope error code the auth service uses for a
// stale device trust. It just means a full login is needed, so it is not worth
// a warning.
const errUntrustedSession = 9204

// normalize maps the two historical response envelope shapes onto a single
// (status, body) pair.
//
// Shape one carries a numeric meta.code: 200 unwraps "data", anything else is
// returned as (code, message). Shape two carries a boolean "success": true
// unwraps "data" (or an empty object), false is a generic failure.
func (c *Client) normalize(path string, body any) (int, any) {
	envelope, ok := body.(map[string]any)
	if !ok {
		return StatusFailed, nil
	}

	if rawMeta, ok := envelope["meta"]; ok {
		meta, ok := rawMeta.(map[string]any)
		if !ok {
			return StatusFailed, nil
		}
		code := intField(meta, "code")
		if code == http.StatusOK {
			return http.StatusOK, envelope["data"]
		}
		if intField(meta, "error") != errUntrustedSession {
			c.log.Warn("error in response",
				logger.Component("rest"), logger.Resource(path), logger.Status(code),
				"message", fmt.Sprint(meta["message"]))
		}
		return code, meta["message"]
	}

	if rawSuccess, ok := envelope["success"]; ok {
		if success, _ := rawSuccess.(bool); success {
			if data, ok := envelope["data"]; ok {
				return http.StatusOK, data
			}
			// Success with no data; fake an empty object.
			return http.StatusOK, map[string]any{}
		}
		c.log.Warn("error in response",
			logger.Component("rest"), logger.Resource(path))
	}

	return StatusFailed, nil
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
