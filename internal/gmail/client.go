package gmail

import (
	"context"
	"fmt"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/gmailauth/internal/google"
	"github.com/teemow/gmailauth/internal/instrumentation"
)

// userID is the Gmail API alias for the authenticated user.
const userID = "me"

// Client wraps the Gmail Users service for the authenticated user.
type Client struct {
	svc     *gmail.UsersService
	metrics *instrumentation.Metrics
}

// Factory builds Clients from credentials. It implements google.ClientFactory.
type Factory struct {
	endpoint string
	metrics  *instrumentation.Metrics
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithEndpoint overrides the Gmail API base URL.
func WithEndpoint(endpoint string) FactoryOption {
	return func(f *Factory) { f.endpoint = endpoint }
}

// WithMetrics records API call metrics on m.
func WithMetrics(m *instrumentation.Metrics) FactoryOption {
	return func(f *Factory) { f.metrics = m }
}

// NewFactory creates a Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ google.ClientFactory[*Client] = (*Factory)(nil)

// NewClient creates a Gmail client authenticated with cred. The credential is used
// as given; the client does not refresh it.
func (f *Factory) NewClient(ctx context.Context, cred *google.Credential) (*Client, error) {
	if cred == nil || cred.Token == nil {
		return nil, fmt.Errorf("no credential to build a Gmail client from")
	}

	opts := []option.ClientOption{option.WithHTTPClient(google.HTTPClient(ctx, cred))}
	if f.endpoint != "" {
		opts = append(opts, option.WithEndpoint(f.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		metrics: f.metrics,
	}, nil
}

// Profile fetches the authenticated user's mailbox profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, "get_profile")
	defer span.End()

	start := time.Now()
	p, err := c.svc.GetProfile(userID).Context(ctx).Do()
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, "get_profile",
		instrumentation.StatusFromError(err), time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to get Gmail profile: %w", err)
	}
	instrumentation.SetSpanSuccess(span)

	return &Profile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
		HistoryID:     p.HistoryId,
	}, nil
}
