package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/camkit/arlo/core/rest"
	"github.com/camkit/arlo/core/session"
	"github.com/camkit/arlo/pkg/logger"
)

// Outcome classifies a single authentication attempt.
type Outcome int

const (
	// OutcomeSuccess: the attempt produced a valid token.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable: a transient or negotiation-related failure; the
	// caller may retry with different transport parameters.
	OutcomeRetryable
	// OutcomeFatal: bad credentials or exhausted factor choices; retrying
	// cannot help.
	OutcomeFatal
)

// loginAttempts bounds the credential submissions per curve candidate.
const loginAttempts = 3

// loginBackoff is the fixed wait between credential submissions.
var loginBackoff = 3 * time.Second

// Config carries the authenticator settings.
type Config struct {
	Username string
	Password string
	// DeviceID is the persistent device fingerprint sent with every auth
	// call.
	DeviceID string
	// FactorType filters the advertised second factors ("email", "sms",
	// "push").
	FactorType string
	// FactorNickname picks between several factors of the same type; empty
	// falls back to the first of the type.
	FactorNickname string
	// PushRetries and PushDelay bound the finish-polling loop for push
	// factors.
	PushRetries int
	PushDelay   time.Duration
	// Curves are the ECDH curve candidates for the negotiation retry loop.
	Curves []tls.CurveID
	// UserAgent is the friendly agent name resolved via ResolveUserAgent.
	UserAgent  string
	SendSource bool
}

// CookieSaver persists the cookie jar after pairing exchanges.
type CookieSaver interface {
	Save() error
}

// Result is a successful login: the populated session plus the account
// capabilities discovered by the bootstrap call.
type Result struct {
	Session       session.Session
	MultiLocation bool
	// MQTTURL, when non-empty, advertises the push transport endpoint and
	// overrides transport selection.
	MQTTURL string
}

// Authenticator drives the login flow.
type Authenticator struct {
	rest     *rest.Client
	store    session.Store
	cookies  CookieSaver
	provider Provider
	cfg      Config
	log      *slog.Logger

	userAgent string

	// attempt state, rebuilt by every run through the flow
	token           string
	token64         string
	userID          string
	webID           string
	subID           string
	expiresIn       int64
	browserAuthCode string
	needsPairing    bool
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Authenticator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithProvider sets the second-factor code provider.
func WithProvider(p Provider) Option {
	return func(a *Authenticator) {
		a.provider = p
	}
}

// WithCookieSaver sets the jar persisted after pairing.
func WithCookieSaver(s CookieSaver) Option {
	return func(a *Authenticator) {
		a.cookies = s
	}
}

// New creates an Authenticator using the given executor and session store.
func New(restClient *rest.Client, store session.Store, cfg Config, opts ...Option) *Authenticator {
	if len(cfg.Curves) == 0 {
		cfg.Curves = []tls.CurveID{tls.X25519, tls.CurveP256, tls.CurveP384}
	}
	if cfg.PushRetries <= 0 {
		cfg.PushRetries = 5
	}
	if cfg.PushDelay <= 0 {
		cfg.PushDelay = 5 * time.Second
	}
	a := &Authenticator{
		rest:  restClient,
		store: store,
		cfg:   cfg,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login runs the whole flow, trying each configured ECDH curve until one
// succeeds. On success the session is persisted, the executor's default
// headers carry the fresh token, and the bootstrap capabilities are returned.
func (a *Authenticator) Login(ctx context.Context) (*Result, error) {
	a.userAgent = ResolveUserAgent(a.cfg.UserAgent)

	for _, curve := range a.cfg.Curves {
		a.log.Debug("negotiation curve selected",
			logger.Component("auth"), "curve", curve.String())
		a.rest.ResetTLS(curve)

		outcome, err := a.authenticate(ctx)
		switch outcome {
		case OutcomeFatal:
			return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
		case OutcomeRetryable:
			a.log.Debug("login attempt failed, trying next curve",
				logger.Component("auth"), logger.Error(err))
			continue
		}

		if err := a.validate(ctx); err != nil {
			a.log.Warn("token validation failed", logger.Component("auth"), logger.Error(err))
			continue
		}
		if err := a.pair(ctx); err != nil {
			a.log.Warn("pairing failed", logger.Component("auth"), logger.Error(err))
			continue
		}
		return a.finishLogin(ctx)
	}
	return nil, ErrLoginFailed
}

// finishLogin persists the session, installs the token headers and runs the
// bootstrap call.
func (a *Authenticator) finishLogin(ctx context.Context) (*Result, error) {
	sess := session.Session{
		UserID:          a.userID,
		WebID:           a.webID,
		SubID:           a.subID,
		Token:           a.token,
		ExpiresIn:       a.expiresIn,
		BrowserAuthCode: a.browserAuthCode,
		DeviceID:        a.cfg.DeviceID,
	}
	if err := a.store.Save(a.cfg.Username, sess); err != nil {
		// A session that cannot be persisted still works for this run.
		a.log.Warn("session not persisted", logger.Component("auth"), logger.Error(err))
	}

	a.rest.SetDefaultHeaders(SessionHeaders(a.token, a.userAgent))

	code, body := a.rest.Call(ctx, rest.Request{Path: sessionPath})
	if code != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBootstrapFailed, code)
	}
	result := &Result{Session: sess}
	if m, ok := body.(map[string]any); ok {
		result.MultiLocation, _ = m["supportsMultiLocation"].(bool)
		result.MQTTURL, _ = m[mqttURLKey].(string)
	}
	return result, nil
}

// authenticate submits credentials and walks the 2FA sub-flow.
func (a *Authenticator) authenticate(ctx context.Context) (Outcome, error) {
	headers := a.authHeaders()

	var code int
	var body any
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(loginBackoff), loginAttempts-1), ctx)
	_ = backoff.Retry(func() error {
		attempt++
		a.log.Debug("login attempt", logger.Component("auth"), "attempt", attempt)
		a.preflight(ctx, authPath, headers)
		code, body = a.authPost(ctx, authPath, map[string]any{
			"email":     a.cfg.Username,
			"password":  toB64(a.cfg.Password),
			"language":  "en",
			"EnvSource": "prod",
		}, headers)
		if code == http.StatusOK || code == http.StatusUnauthorized {
			return nil
		}
		return fmt.Errorf("login answered %d", code)
	}, policy)

	if code == http.StatusUnauthorized {
		return OutcomeFatal, fmt.Errorf("%w: status %d", ErrCredentialsRejected, code)
	}
	if code != http.StatusOK || body == nil {
		// Transport failure or edge rejection; a different curve may pass.
		return OutcomeRetryable, fmt.Errorf("login failed: status %d", code)
	}

	authBody, ok := body.(map[string]any)
	if !ok {
		return OutcomeRetryable, fmt.Errorf("login failed: malformed body")
	}
	a.captureIdentity(authBody)

	if completed, _ := authBody["authCompleted"].(bool); completed {
		return OutcomeSuccess, nil
	}
	return a.secondFactor(ctx, headers)
}

// secondFactor selects and completes a second factor.
func (a *Authenticator) secondFactor(ctx context.Context, headers map[string]string) (Outcome, error) {
	a.log.Debug("second factor required", logger.Component("auth"))
	headers["Authorization"] = a.token64

	// A browser factor id means this device can pair directly, no code.
	a.preflight(ctx, authFactorIDPath, headers)
	code, body := a.authPost(ctx, authFactorIDPath, map[string]any{
		"factorType": "BROWSER",
		"factorData": "",
		"userId":     a.userID,
	}, headers)

	var factorID string
	if code == http.StatusOK {
		a.needsPairing = false
		if m, ok := body.(map[string]any); ok {
			factorID, _ = m["factorId"].(string)
		}
	} else {
		a.needsPairing = true
		var err error
		factorID, err = a.chooseFactor(ctx, headers)
		if err != nil {
			return OutcomeFatal, err
		}
	}
	if factorID == "" {
		return OutcomeFatal, ErrNoSecondFactor
	}

	var finishBody map[string]any
	var outcome Outcome
	var err error
	switch {
	case !a.needsPairing:
		finishBody, outcome, err = a.startTrustedFactor(ctx, factorID, headers)
	case strings.EqualFold(a.cfg.FactorType, FactorTypePush):
		finishBody, outcome, err = a.finishPushFactor(ctx, factorID, headers)
	default:
		finishBody, outcome, err = a.finishCodeFactor(ctx, factorID, headers)
	}
	if err != nil {
		return outcome, err
	}

	a.captureIdentity(finishBody)
	return OutcomeSuccess, nil
}

// chooseFactor fetches the advertised factors and picks by configured type
// and nickname, falling back to the first factor of the type.
func (a *Authenticator) chooseFactor(ctx context.Context, headers map[string]string) (string, error) {
	path := fmt.Sprintf("%s?data=%d", authFactorsPath, time.Now().Unix())
	code, body := a.authGet(ctx, path, headers)
	if code != http.StatusOK || body == nil {
		return "", fmt.Errorf("%w: factor list unavailable", ErrNoSecondFactor)
	}
	m, ok := body.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: malformed factor list", ErrNoSecondFactor)
	}
	items, _ := m["items"].([]any)

	var ofType []map[string]any
	for _, item := range items {
		factor, ok := item.(map[string]any)
		if !ok {
			continue
		}
		factorType, _ := factor["factorType"].(string)
		if strings.EqualFold(factorType, a.cfg.FactorType) {
			ofType = append(ofType, factor)
		}
	}
	if len(ofType) == 0 {
		return "", ErrNoSecondFactor
	}

	for _, factor := range ofType {
		if nickname, _ := factor["factorNickname"].(string); nickname == a.cfg.FactorNickname {
			if id, _ := factor["factorId"].(string); id != "" {
				return id, nil
			}
		}
	}
	id, _ := ofType[0]["factorId"].(string)
	if id == "" {
		return "", ErrNoSecondFactor
	}
	return id, nil
}

// startTrustedFactor completes authentication for an already-trusted browser
// factor; no one-time code is involved.
func (a *Authenticator) startTrustedFactor(ctx context.Context, factorID string, headers map[string]string) (map[string]any, Outcome, error) {
	a.preflight(ctx, authStartPath, headers)
	code, body := a.authPost(ctx, authStartPath, map[string]any{
		"factorId":   factorID,
		"factorType": "BROWSER",
		"userId":     a.userID,
	}, headers)
	if code != http.StatusOK {
		return nil, OutcomeFatal, fmt.Errorf("trusted factor start answered %d", code)
	}
	m, _ := body.(map[string]any)
	return m, OutcomeSuccess, nil
}

// finishPushFactor polls the finish endpoint until the user confirms on
// their device or the attempts run out.
func (a *Authenticator) finishPushFactor(ctx context.Context, factorID string, headers map[string]string) (map[string]any, Outcome, error) {
	code, body := a.authPost(ctx, authStartPath, map[string]any{
		"factorId":   factorID,
		"factorType": "",
		"userId":     a.userID,
	}, headers)
	if code != http.StatusOK {
		return nil, OutcomeFatal, fmt.Errorf("push factor start answered %d", code)
	}
	factorAuthCode := stringField(body, "factorAuthCode")

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(a.cfg.PushDelay), uint64(a.cfg.PushRetries-1)), ctx)
	finish, err := backoff.RetryWithData(func() (map[string]any, error) {
		code, body := a.authPost(ctx, authFinishPath, map[string]any{
			"factorAuthCode":   factorAuthCode,
			"isBrowserTrusted": true,
		}, headers)
		if code != http.StatusOK {
			a.log.Debug("push confirmation not yet accepted",
				logger.Component("auth"), logger.Status(code))
			return nil, fmt.Errorf("finish answered %d", code)
		}
		m, _ := body.(map[string]any)
		return m, nil
	}, policy)
	if err != nil {
		return nil, OutcomeFatal, fmt.Errorf("push confirmation never accepted: %w", err)
	}
	return finish, OutcomeSuccess, nil
}

// finishCodeFactor obtains a one-time code from the provider and submits it.
func (a *Authenticator) finishCodeFactor(ctx context.Context, factorID string, headers map[string]string) (map[string]any, Outcome, error) {
	if a.provider == nil {
		return nil, OutcomeFatal, fmt.Errorf("%w: no code provider configured", ErrNoSecondFactor)
	}
	// Snapshot the provider before the service sends the code, so the code
	// cannot slip past between start and fetch.
	if err := a.provider.Start(ctx); err != nil {
		return nil, OutcomeFatal, fmt.Errorf("code provider start: %w", err)
	}

	a.preflight(ctx, authStartPath, headers)
	code, body := a.authPost(ctx, authStartPath, map[string]any{
		"factorId":   factorID,
		"factorType": "BROWSER",
		"userId":     a.userID,
	}, headers)
	if code != http.StatusOK {
		return nil, OutcomeRetryable, fmt.Errorf("factor start answered %d", code)
	}
	factorAuthCode := stringField(body, "factorAuthCode")

	otp, err := a.provider.Code(ctx)
	if err != nil || otp == "" {
		return nil, OutcomeRetryable, fmt.Errorf("code retrieval failed: %w", err)
	}
	a.provider.Stop()

	code, body = a.authPost(ctx, authFinishPath, map[string]any{
		"factorAuthCode":   factorAuthCode,
		"otp":              otp,
		"isBrowserTrusted": true,
	}, headers)
	if code != http.StatusOK {
		return nil, OutcomeFatal, fmt.Errorf("factor finish answered %d", code)
	}
	m, _ := body.(map[string]any)
	return m, OutcomeSuccess, nil
}

// validate checks the issued token against the validation endpoint.
func (a *Authenticator) validate(ctx context.Context) error {
	headers := a.authHeaders()
	headers["Authorization"] = a.token64

	path := fmt.Sprintf("%s?data=%d", authValidatePath, time.Now().Unix())
	code, body := a.authGet(ctx, path, headers)
	if code != http.StatusOK || body == nil {
		return fmt.Errorf("%w: status %d", ErrValidationFailed, code)
	}
	return nil
}

// pair submits the browser pairing code. Cookies are saved regardless of
// outcome; an absent code means pairing is deferred, not denied.
func (a *Authenticator) pair(ctx context.Context) error {
	if !a.needsPairing {
		a.log.Debug("no pairing required", logger.Component("auth"))
		a.saveCookies()
		return nil
	}
	if a.browserAuthCode == "" {
		a.log.Debug("pairing postponed", logger.Component("auth"))
		return nil
	}

	headers := a.authHeaders()
	headers["Authorization"] = a.token64
	code, _ := a.authPost(ctx, authPairingPath, map[string]any{
		"factorAuthCode": a.browserAuthCode,
		"factorData":     "",
		"factorType":     "BROWSER",
	}, headers)
	a.saveCookies()

	if code != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrPairingFailed, code)
	}
	a.log.Debug("pairing succeeded", logger.Component("auth"))
	return nil
}

// captureIdentity records the token and derived ids from an auth response.
// Some responses nest the payload under accessToken.
func (a *Authenticator) captureIdentity(body map[string]any) {
	if body == nil {
		return
	}
	if nested, ok := body["accessToken"].(map[string]any); ok {
		body = nested
	}
	if token, _ := body["token"].(string); token != "" {
		a.token = token
		a.token64 = toB64(token)
	}
	if userID, _ := body["userId"].(string); userID != "" {
		a.userID = userID
		a.webID = userID + "_web"
		a.subID = "subscriptions/" + a.webID
	}
	if expires, ok := body["expiresIn"].(float64); ok {
		a.expiresIn = int64(expires)
	}
	if code, _ := body["browserAuthCode"].(string); code != "" {
		a.browserAuthCode = code
	}
}

func (a *Authenticator) authPost(ctx context.Context, path string, params map[string]any, headers map[string]string) (int, any) {
	return a.rest.Call(ctx, rest.Request{
		Path: path, Method: http.MethodPost, Params: params, Headers: headers, Auth: true,
	})
}

func (a *Authenticator) authGet(ctx context.Context, path string, headers map[string]string) (int, any) {
	return a.rest.Call(ctx, rest.Request{
		Path: path, Headers: headers, Auth: true,
	})
}

// preflight mirrors the browser's OPTIONS call; failures are irrelevant.
func (a *Authenticator) preflight(ctx context.Context, path string, headers map[string]string) {
	_, _ = a.rest.Call(ctx, rest.Request{
		Path: path, Method: http.MethodOptions, Headers: headers, Auth: true,
	})
}

func (a *Authenticator) saveCookies() {
	if a.cookies == nil {
		return
	}
	if err := a.cookies.Save(); err != nil {
		a.log.Warn("cookies not saved", logger.Component("auth"), logger.Error(err))
	}
}

func stringField(body any, key string) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
