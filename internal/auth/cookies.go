package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
	cookiePath        = "/"
)

// CookieManager writes and clears the two auth cookies as a pair.
// Max-Age is taken from the Manager's TTLs so cookie lifetime and token
// lifetime cannot drift apart.
type CookieManager struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	secure     bool
}

func NewCookieManager(m *Manager, secure bool) *CookieManager {
	return &CookieManager{
		accessTTL:  m.TTL(TokenTypeAccess),
		refreshTTL: m.TTL(TokenTypeRefresh),
		secure:     secure,
	}
}

func (cm *CookieManager) SetAuthCookies(w http.ResponseWriter, pair TokenPair) {
	cm.put(w, AccessCookieName, pair.AccessToken, int(cm.accessTTL/time.Second))
	cm.put(w, RefreshCookieName, pair.RefreshToken, int(cm.refreshTTL/time.Second))
}

func (cm *CookieManager) ClearAuthCookies(w http.ResponseWriter) {
	cm.put(w, AccessCookieName, "", -1)
	cm.put(w, RefreshCookieName, "", -1)
}

// put replaces any Set-Cookie already queued for name, so a response carries
// exactly one instruction per auth cookie even if an earlier step set it.
func (cm *CookieManager) put(w http.ResponseWriter, name, value string, maxAge int) {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge < 0 {
		ck.Expires = time.Unix(0, 0)
	}

	h := w.Header()
	prefix := name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, ck)
}
