package arlo

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/camkit/arlo/core/rest"
	"github.com/camkit/arlo/pkg/async"
)

// WaitMode controls what a Notify or Post call blocks on.
type WaitMode string

const (
	// WaitDefault resolves per call: Notify follows the synchronous-mode
	// configuration switch, Post waits for the HTTP acknowledgment.
	WaitDefault WaitMode = ""
	// WaitNothing fires the request on a background goroutine.
	WaitNothing WaitMode = "nothing"
	// WaitResponse waits for the HTTP acknowledgment only.
	WaitResponse WaitMode = "response"
	// WaitEvent waits for the push event correlated by transaction id.
	WaitEvent WaitMode = "event"
	// WaitResource waits for a push event whose routing key equals the
	// first submitted parameter key. Post only.
	WaitResource WaitMode = "resource"
)

// defaultEventWait bounds event-correlated waits when the caller passes no
// timeout.
const defaultEventWait = 120 * time.Second

// Notify sends a command to a device through the notification endpoint. The
// body is decorated with the addressing triple (to, from, transId) and the
// request carries the device's xcloudId. Depending on mode the call returns
// immediately, after the HTTP acknowledgment, or with the correlated push
// event. ok is false on request failure or event timeout.
func (c *Client) Notify(ctx context.Context, device Device, body map[string]any, timeout time.Duration, mode WaitMode) (map[string]any, bool) {
	if mode == WaitDefault {
		if c.cfg.Synchronous {
			mode = WaitEvent
		} else {
			mode = WaitNothing
		}
	}
	if timeout <= 0 {
		timeout = defaultEventWait
	}

	payload := make(map[string]any, len(body)+3)
	for k, v := range body {
		payload[k] = v
	}
	payload["to"] = device.DeviceID
	if _, ok := payload["from"]; !ok {
		payload["from"] = c.Session().WebID
	}
	tid := rest.NewTransactionID()
	payload["transId"] = tid

	req := rest.Request{
		Path:    notifyPath + device.DeviceID,
		Method:  http.MethodPost,
		Params:  payload,
		Headers: map[string]string{"xcloudId": device.XCloudID},
	}

	switch mode {
	case WaitEvent:
		c.disp.Register(tid)
		if code, _ := c.rest.Call(ctx, req); code != http.StatusOK {
			c.disp.Await(tid, 0) // unregister
			return nil, false
		}
		return c.disp.Await(tid, timeout)
	case WaitResponse:
		code, _ := c.rest.Call(ctx, req)
		return nil, code == http.StatusOK
	default:
		c.background(req)
		return nil, true
	}
}

// Post submits params to an API path. WaitResource blocks until a push event
// routed under the first parameter key arrives, returning that event; other
// modes mirror Notify. The response body is returned in WaitResponse mode.
func (c *Client) Post(ctx context.Context, path string, params map[string]any, timeout time.Duration, mode WaitMode) (any, bool) {
	if mode == WaitDefault {
		mode = WaitResponse
	}
	if timeout <= 0 {
		timeout = defaultEventWait
	}

	req := rest.Request{Path: path, Method: http.MethodPost, Params: params}

	switch mode {
	case WaitResource:
		key := firstKey(params)
		if key == "" {
			return nil, false
		}
		c.disp.Register(key)
		if code, _ := c.rest.Call(ctx, req); code != http.StatusOK {
			c.disp.Await(key, 0)
			return nil, false
		}
		return c.disp.Await(key, timeout)
	case WaitNothing:
		c.background(req)
		return nil, true
	default:
		code, body := c.rest.Call(ctx, req)
		return body, code == http.StatusOK
	}
}

// Get fetches an API path and returns the normalized body.
func (c *Client) Get(ctx context.Context, path string) (any, bool) {
	code, body := c.rest.Call(ctx, rest.Request{Path: path})
	return body, code == http.StatusOK
}

// GetBackground fetches an API path on a background goroutine. The returned
// future resolves once the request completes; callers that only care about
// the side effect may discard it.
func (c *Client) GetBackground(path string) *async.ExecFuture {
	return c.background(rest.Request{Path: path})
}

// Put submits params to an API path with PUT semantics.
func (c *Client) Put(ctx context.Context, path string, params map[string]any) (any, bool) {
	code, body := c.rest.Call(ctx, rest.Request{Path: path, Method: http.MethodPut, Params: params})
	return body, code == http.StatusOK
}

// PutBackground is Put on a background goroutine, returning an awaitable
// future.
func (c *Client) PutBackground(path string, params map[string]any) *async.ExecFuture {
	return c.background(rest.Request{Path: path, Method: http.MethodPut, Params: params})
}

// background fires req on its own goroutine, bounded by the configured
// request timeout. The future resolves with an error on any non-OK outcome.
func (c *Client) background(req rest.Request) *async.ExecFuture {
	return async.Exec(context.Background(), req, func(ctx context.Context, req rest.Request) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
		if code, _ := c.rest.Call(ctx, req); code != http.StatusOK {
			return fmt.Errorf("arlo: %s answered %d", req.Path, code)
		}
		return nil
	})
}

// firstKey picks the correlation key for WaitResource. Map order is not
// stable, so the smallest key is used for determinism; callers submit a
// single top-level key in practice.
func firstKey(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}
