package oauth

// AccountType selects the provider region. TickTick runs two separate
// deployments with distinct hosts: the international service and the
// Chinese service (Dida365).
type AccountType string

const (
	// AccountGlobal is the international TickTick service.
	AccountGlobal AccountType = "global"

	// AccountChina is the Chinese Dida365 service.
	AccountChina AccountType = "china"
)

// Valid reports whether the account type names a known region.
func (a AccountType) Valid() bool {
	return a == AccountGlobal || a == AccountChina
}

// Endpoints holds the provider URLs for one region.
type Endpoints struct {
	// Name is a human-readable label for status output.
	Name string

	// AuthURL is the browser-facing authorization endpoint.
	AuthURL string

	// TokenURL is the token exchange endpoint.
	TokenURL string

	// APIBaseURL is the base URL of the Open API (task/project REST).
	APIBaseURL string
}

// Scopes requested on every authorization. The Open API only supports
// these two.
var Scopes = []string{"tasks:read", "tasks:write"}

var endpointsByAccount = map[AccountType]Endpoints{
	AccountGlobal: {
		Name:       "TickTick International",
		AuthURL:    "https://ticktick.com/oauth/authorize",
		TokenURL:   "https://ticktick.com/oauth/token",
		APIBaseURL: "https://api.ticktick.com/open/v1",
	},
	AccountChina: {
		Name:       "TickTick China (Dida365)",
		AuthURL:    "https://dida365.com/oauth/authorize",
		TokenURL:   "https://dida365.com/oauth/token",
		APIBaseURL: "https://api.dida365.com/open/v1",
	},
}

// EndpointsFor returns the provider endpoints for the given account type.
func EndpointsFor(account AccountType) (Endpoints, error) {
	ep, ok := endpointsByAccount[account]
	if !ok {
		return Endpoints{}, &ConfigError{
			Field:  "account_type",
			Reason: "must be \"china\" or \"global\", got " + string(account),
		}
	}
	return ep, nil
}
