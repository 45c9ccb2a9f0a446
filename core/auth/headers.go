package auth

import "encoding/base64"

// Endpoint paths on the auth host.
const (
	authPath         = "/api/auth"
	authStartPath    = "/api/startAuth"
	authFinishPath   = "/api/finishAuth"
	authValidatePath = "/api/validateAccessToken"
	authFactorsPath  = "/api/getFactors"
	authFactorIDPath = "/api/getFactorId"
	authPairingPath  = "/api/startPairingFactor"
)

// sessionPath is the post-login bootstrap resource on the API host.
const sessionPath = "/hmsweb/users/session/v2"

// mqttURLKey is the bootstrap field that, when present, advertises the push
// transport endpoint and overrides transport selection.
const mqttURLKey = "mqttUrl"

const (
	originHost  = "https://my.arlo.com"
	refererHost = "https://my.arlo.com/"
)

func toB64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// authHeaders is the browser-shaped header set the auth host expects.
func (a *Authenticator) authHeaders() map[string]string {
	headers := map[string]string{
		"Accept":                        "application/json, text/plain, */*",
		"Accept-Language":               "en-GB,en;q=0.9,en-US;q=0.8",
		"Cache-Control":                 "no-cache",
		"Content-Type":                  "application/json",
		"Origin":                        originHost,
		"Pragma":                        "no-cache",
		"Referer":                       refererHost,
		"User-Agent":                    a.userAgent,
		"X-Service-Version":             "3",
		"X-User-Device-Automation-Name": "QlJPV1NFUg==",
		"X-User-Device-Id":              a.cfg.DeviceID,
		"X-User-Device-Type":            "BROWSER",
	}
	if a.cfg.SendSource {
		headers["Source"] = "arloCamWeb"
	}
	return headers
}

// SessionHeaders is the header set for API-host calls once a token is held.
// Applied as the rest client's defaults after a successful login.
func SessionHeaders(token, userAgent string) map[string]string {
	return map[string]string{
		"Accept":          "application/json",
		"Accept-Language": "en-GB,en;q=0.9,en-US;q=0.8",
		"Auth-Version":    "2",
		"Authorization":   token,
		"Cache-Control":   "no-cache",
		"Origin":          originHost,
		"Pragma":          "no-cache",
		"Referer":         refererHost,
		"SchemaVersion":   "1",
		"User-Agent":      userAgent,
	}
}
