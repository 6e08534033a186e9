package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrAccountIncomplete = errors.New("account config requires baseUrl and username")

// AccountConfig identifies an upstream provider account. The password is
// carried only for stream URL construction and is never part of the cache key.
type AccountConfig struct {
	BaseURL  string `json:"baseUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
	ListName string `json:"listName"`
}

// Key returns the partition key used for cached content, checkpoints and
// persisted sync state belonging to this account.
func (a AccountConfig) Key() string {
	return fmt.Sprintf("%s|%s|%s", strings.TrimRight(a.BaseURL, "/"), a.Username, a.ListName)
}

// Validate reports whether the config can address an upstream server.
func (a AccountConfig) Validate() error {
	if strings.TrimSpace(a.BaseURL) == "" || strings.TrimSpace(a.Username) == "" {
		return ErrAccountIncomplete
	}
	return nil
}
