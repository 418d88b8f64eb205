package reconcile

import (
	"kidoku/internal/models"

	"github.com/c-pro/geche"
)

// ProfileCache maps account ids to profiles for the lifetime of a
// session. Entries are only ever added or refreshed, never removed.
type ProfileCache struct {
	cache *geche.MapCache[string, models.Profile]
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{cache: geche.NewMapCache[string, models.Profile]()}
}

func (c *ProfileCache) Get(accountID string) (models.Profile, bool) {
	p, err := c.cache.Get(accountID)
	if err != nil {
		return models.Profile{}, false
	}
	return p, true
}

func (c *ProfileCache) Set(profile models.Profile) {
	c.cache.Set(profile.AccountID, profile)
}
