// Package hosting talks to the repository hosting service. It validates
// tokens and resolves the account behind them for the credential bridge.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	github "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

const defaultUserAgent = "githerd"

// tokenUsername is the fixed username paired with a token over HTTPS when
// the account login is unknown.
const tokenUsername = "x-access-token"

// validateTimeout bounds the one-off account lookup behind the prompter.
const validateTimeout = 10 * time.Second

// Account identifies the authenticated user behind a token.
type Account struct {
	Login string
}

// Client wraps the hosting service API surface githerd needs.
type Client struct {
	gh *github.Client
}

// NewClient builds a hosting client for the given token. An empty baseURL
// targets github.com; otherwise baseURL names a GitHub Enterprise instance
// and the API endpoints are derived from it.
func NewClient(ctx context.Context, token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, errors.New("hosting token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	var gh *github.Client
	if strings.TrimSpace(baseURL) != "" {
		normalized, err := normalizeBaseURL(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse hosting base url: %w", err)
		}
		gh, err = github.NewClient(tc).WithEnterpriseURLs(normalized, normalized)
		if err != nil {
			return nil, fmt.Errorf("construct enterprise client: %w", err)
		}
	} else {
		gh = github.NewClient(tc)
	}
	gh.UserAgent = defaultUserAgent

	return &Client{gh: gh}, nil
}

// Validate checks the token against the service and returns the account it
// belongs to.
func (c *Client) Validate(ctx context.Context) (Account, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return Account{}, fmt.Errorf("validate token: %w", err)
	}
	return Account{Login: user.GetLogin()}, nil
}

// IsAuthError reports whether err is the service rejecting the credential
// rather than a transport problem.
func IsAuthError(err error) bool {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("url must include scheme (e.g. https://)")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url must include host")
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return parsed.String(), nil
}

// TokenPrompter answers git credential prompts with a hosting token: the
// account login as the username and the token as the password. The login is
// looked up once; when the service is unreachable the fixed token username
// is used instead, so remote commands keep working offline.
type TokenPrompter struct {
	token  string
	client *Client
	log    *slog.Logger

	mu       sync.Mutex
	login    string
	resolved bool
}

// NewTokenPrompter returns a prompter for token. client may be nil, in which
// case no account lookup is attempted.
func NewTokenPrompter(client *Client, token string, log *slog.Logger) *TokenPrompter {
	if log == nil {
		log = slog.Default()
	}
	return &TokenPrompter{
		token:  token,
		client: client,
		log:    log.With("component", "hosting"),
	}
}

func (p *TokenPrompter) Username(string) (string, error) {
	if p.token == "" {
		return "", errors.New("no hosting token configured")
	}
	return p.resolveLogin(), nil
}

func (p *TokenPrompter) Password(string) (string, error) {
	if p.token == "" {
		return "", errors.New("no hosting token configured")
	}
	return p.token, nil
}

// resolveLogin asks the service once for the account login and remembers
// the answer for the rest of the session.
func (p *TokenPrompter) resolveLogin() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return p.login
	}
	p.resolved = true
	p.login = tokenUsername
	if p.client == nil {
		return p.login
	}

	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()
	account, err := p.client.Validate(ctx)
	if err != nil {
		p.log.Warn("token validation failed, using the token unvalidated", "error", err)
		return p.login
	}
	p.login = account.Login
	return p.login
}
