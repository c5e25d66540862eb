package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// FlowsClient drives the flow-automation service's REST API through the
// dispatcher. Calls are best effort: failures are logged, never propagated,
// so a slow flows side cannot stall event handling.
type FlowsClient struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	baseURL    string
	orgToken   string
}

func NewFlowsClient(log *slog.Logger, dispatcher *Dispatcher, baseURL, orgToken string) *FlowsClient {
	return &FlowsClient{
		dispatcher: dispatcher,
		logger:     log.With(slog.String("service", "flows")),
		baseURL:    baseURL,
		orgToken:   orgToken,
	}
}

// Configured reports whether an organization token is present. Without one
// every flows call is a no-op.
func (c *FlowsClient) Configured() bool {
	return c.orgToken != ""
}

// StartFlow launches flowID for the visitor's contact, attaching extra as the
// flow run's context payload.
func (c *FlowsClient) StartFlow(ctx context.Context, flowID, visitorToken string, extra map[string]any) {
	if !c.Configured() {
		return
	}
	payload := FlowStartPayload{
		Flow:  flowID,
		URNs:  []string{ContactURN(visitorToken)},
		Extra: extra,
	}
	dest := FlowsAPI{
		URL:      c.baseURL + "/api/v2/flow_starts.json",
		OrgToken: c.orgToken,
	}
	if err := c.dispatcher.Deliver(ctx, dest, payload, "flow start", NoRetry); err != nil {
		c.logger.Warn("flow start not accepted",
			slog.String("flow", flowID),
			slog.Any("error", err))
	}
}

// UpdateContactField writes one profile field on the visitor's contact,
// creating the contact if the flows side does not know the URN yet.
func (c *FlowsClient) UpdateContactField(ctx context.Context, visitorToken, field, value string) {
	if !c.Configured() || field == "" {
		return
	}
	payload := ContactFieldsPayload{
		Fields: map[string]string{field: value},
	}
	dest := FlowsAPI{
		URL: fmt.Sprintf("%s/api/v2/contacts.json?urn=%s",
			c.baseURL, url.QueryEscape(ContactURN(visitorToken))),
		OrgToken: c.orgToken,
	}
	if err := c.dispatcher.Deliver(ctx, dest, payload, "contact update", NoRetry); err != nil {
		c.logger.Warn("contact update not accepted",
			slog.String("field", field),
			slog.Any("error", err))
	}
}
