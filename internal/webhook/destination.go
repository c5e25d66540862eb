package webhook

// Destination identifies an outbound endpoint together with the credential
// realm that authenticates calls to it. Each call site picks its destination
// type explicitly; there is no ambient credential to mix up.
type Destination interface {
	Endpoint() string
	Credential() string
}

// Callback is a bot-registered forwarding endpoint, authenticated with the
// bridge's shared webhook secret.
type Callback struct {
	URL    string
	Secret string
}

func (d Callback) Endpoint() string   { return d.URL }
func (d Callback) Credential() string { return d.Secret }

// FlowsAPI is an endpoint on the flow-automation service's own REST API,
// authenticated with the organization token.
type FlowsAPI struct {
	URL      string
	OrgToken string
}

func (d FlowsAPI) Endpoint() string   { return d.URL }
func (d FlowsAPI) Credential() string { return d.OrgToken }
