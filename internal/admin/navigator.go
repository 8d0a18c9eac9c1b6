package admin

import (
	"fmt"
	"io"
	"net/url"
	"strings"
)

// stateRoutes maps view states to web client routes. {name} segments are
// filled from the navigation params.
var stateRoutes = map[string]string{
	StateUserEdit:           "/#/settings/user/edit/{username}",
	"settings.user":         "/#/settings/user",
	"settings.registration": "/#/settings/user",
}

// URLNavigator resolves view states to web client URLs and prints them,
// for hosts that cannot show the view themselves.
type URLNavigator struct {
	BaseURL string
	Out     io.Writer

	last string
}

// URL returns the web client URL of state.
func (n *URLNavigator) URL(state string, params map[string]string) (string, error) {
	route, ok := stateRoutes[state]
	if !ok {
		return "", fmt.Errorf("unknown view state %q", state)
	}
	for k, v := range params {
		route = strings.ReplaceAll(route, "{"+k+"}", url.PathEscape(v))
	}
	if strings.Contains(route, "{") {
		return "", fmt.Errorf("view state %q: missing parameter in %s", state, route)
	}
	return strings.TrimRight(n.BaseURL, "/") + route, nil
}

// Go implements Navigator.
func (n *URLNavigator) Go(state string, params map[string]string) error {
	u, err := n.URL(state, params)
	if err != nil {
		return err
	}
	n.last = u
	if n.Out != nil {
		fmt.Fprintln(n.Out, u)
	}
	return nil
}

// Last returns the URL of the most recent navigation.
func (n *URLNavigator) Last() string {
	return n.last
}
