package database

import (
	"cmp"
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/matchfeed/internal/config"
)

// applicationName tags matchd sessions in pg_stat_activity.
const applicationName = "matchd"

// ConnString renders cfg as a postgres:// URL.
func ConnString(cfg config.DBConfig) string {
	q := url.Values{}
	q.Set("sslmode", cmp.Or(cfg.SSLMode, config.DefaultDBSSLMode))
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
