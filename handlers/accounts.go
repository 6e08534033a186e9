package handlers

import (
	"errors"
	"net/http"

	"telecast/config"
	"telecast/models"
)

var errNoAccount = errors.New("no enabled account configured")

// AccountResolver maps the optional ?account= query parameter to a configured
// account, defaulting to the first enabled one.
type AccountResolver struct {
	settings config.Settings
}

func NewAccountResolver(settings config.Settings) *AccountResolver {
	return &AccountResolver{settings: settings}
}

func (a *AccountResolver) Resolve(r *http.Request) (models.AccountConfig, error) {
	name := r.URL.Query().Get("account")
	if name != "" {
		acct, ok := a.settings.AccountByName(name)
		if !ok {
			return models.AccountConfig{}, errors.New("unknown account: " + name)
		}
		return acct.Config(), nil
	}
	for _, acct := range a.settings.Accounts {
		if acct.Enabled {
			return acct.Config(), nil
		}
	}
	return models.AccountConfig{}, errNoAccount
}
