package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	defaultConsoleIn  io.Reader = os.Stdin
	defaultConsoleOut io.Writer = os.Stdout
)

// FactorSource selects which second-factor code provider to use.
type FactorSource string

const (
	// SourceConsole prompts for the code on an interactive terminal.
	SourceConsole FactorSource = "console"
	// SourceMailbox fetches the code from a mailbox via a user callback.
	SourceMailbox FactorSource = "mailbox"
	// SourceRest polls an external relay service for the code.
	SourceRest FactorSource = "rest"
	// SourcePush is not a code provider: push factors are confirmed by
	// polling the finish endpoint.
	SourcePush FactorSource = "push"
)

// FactorTypePush marks factors confirmed out-of-band on the user's phone.
const FactorTypePush = "push"

// Provider supplies a one-time second-factor code. Implementations are a
// closed set selected by configuration.
type Provider interface {
	// Start prepares the provider before the auth service sends the code.
	Start(ctx context.Context) error
	// Code blocks until the one-time code is available.
	Code(ctx context.Context) (string, error)
	// Stop releases provider resources. Always called after Code.
	Stop()
}

// ConsoleProvider reads the code from an interactive terminal.
type ConsoleProvider struct {
	In  io.Reader
	Out io.Writer
}

func (p *ConsoleProvider) Start(ctx context.Context) error { return nil }

func (p *ConsoleProvider) Code(ctx context.Context) (string, error) {
	fmt.Fprint(p.Out, "enter second-factor code: ")
	scanner := bufio.NewScanner(p.In)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func (p *ConsoleProvider) Stop() {}

// MailboxProvider fetches the code through a user-supplied callback, keeping
// mailbox protocol details (IMAP, a notes app, whatever) out of the core.
type MailboxProvider struct {
	// Fetch returns the code once it has arrived, or an error. It is polled
	// with Delay between attempts, at most Retries times.
	Fetch   func(ctx context.Context) (string, error)
	Retries uint64
	Delay   time.Duration
}

func (p *MailboxProvider) Start(ctx context.Context) error { return nil }

func (p *MailboxProvider) Code(ctx context.Context) (string, error) {
	delay := p.Delay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	retries := p.Retries
	if retries == 0 {
		retries = 10
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), retries), ctx)
	return backoff.RetryWithData(func() (string, error) {
		return p.Fetch(ctx)
	}, policy)
}

func (p *MailboxProvider) Stop() {}

// RestProvider polls an external relay for the code. The relay is told to
// start capturing before the auth service sends the code, polled until the
// code shows up, and told to stop afterwards.
type RestProvider struct {
	// BaseURL of the relay; the provider calls <BaseURL>/start, /get, /stop.
	BaseURL string
	Token   string
	Client  *http.Client
	Retries uint64
	Delay   time.Duration
}

func (p *RestProvider) Start(ctx context.Context) error {
	_, err := p.call(ctx, http.MethodPost, "/start")
	return err
}

func (p *RestProvider) Code(ctx context.Context) (string, error) {
	delay := p.Delay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	retries := p.Retries
	if retries == 0 {
		retries = 10
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), retries), ctx)
	return backoff.RetryWithData(func() (string, error) {
		body, err := p.call(ctx, http.MethodGet, "/get")
		if err != nil {
			return "", err
		}
		code := strings.TrimSpace(body)
		if code == "" {
			return "", fmt.Errorf("code not available yet")
		}
		return code, nil
	}, policy)
}

func (p *RestProvider) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = p.call(ctx, http.MethodPost, "/stop")
}

func (p *RestProvider) call(ctx context.Context, method, path string) (string, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, nil)
	if err != nil {
		return "", err
	}
	if p.Token != "" {
		req.Header.Set("Authorization", p.Token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay answered %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// NewProvider builds the provider for source. SourcePush returns nil: push
// confirmation never needs a code.
func NewProvider(source FactorSource, opts ProviderOptions) Provider {
	switch source {
	case SourceConsole:
		in := opts.ConsoleIn
		if in == nil {
			in = defaultConsoleIn
		}
		out := opts.ConsoleOut
		if out == nil {
			out = defaultConsoleOut
		}
		return &ConsoleProvider{In: in, Out: out}
	case SourceMailbox:
		return &MailboxProvider{Fetch: opts.MailboxFetch, Retries: opts.Retries, Delay: opts.Delay}
	case SourceRest:
		return &RestProvider{
			BaseURL: opts.RestURL, Token: opts.RestToken,
			Retries: opts.Retries, Delay: opts.Delay,
		}
	default:
		return nil
	}
}

// ProviderOptions carries the per-source settings for NewProvider.
type ProviderOptions struct {
	ConsoleIn    io.Reader
	ConsoleOut   io.Writer
	MailboxFetch func(ctx context.Context) (string, error)
	RestURL      string
	RestToken    string
	Retries      uint64
	Delay        time.Duration
}
