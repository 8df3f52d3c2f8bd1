package handler

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"portfolio-service/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "__oauth_state"
	pkceCookieName  = "__oauth_pkce"
	flowTTL         = 5 * time.Minute
)

// oauthFlow holds the secrets of one authorization code attempt. State
// binds the callback to this browser and Verifier answers the PKCE
// challenge at code exchange.
type oauthFlow struct {
	State    string
	Verifier string
}

// Challenge is the S256 PKCE challenge for the verifier.
func (f oauthFlow) Challenge() string {
	hash := sha256.Sum256([]byte(f.Verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func (h *Handler) beginFlow(c *gin.Context) (oauthFlow, error) {
	state, err := utils.RandomString(32)
	if err != nil {
		return oauthFlow{}, err
	}
	verifier, err := utils.RandomString(32)
	if err != nil {
		return oauthFlow{}, err
	}

	h.setFlowCookie(c, stateCookieName, state, int(flowTTL.Seconds()))
	h.setFlowCookie(c, pkceCookieName, verifier, int(flowTTL.Seconds()))

	return oauthFlow{State: state, Verifier: verifier}, nil
}

// finishFlow checks the callback state against the browser's cookie and
// returns the PKCE verifier. The flow cookies are single use.
func (h *Handler) finishFlow(c *gin.Context) (string, bool) {
	state, _ := c.Cookie(stateCookieName)
	verifier, _ := c.Cookie(pkceCookieName)

	h.setFlowCookie(c, stateCookieName, "", -1)
	h.setFlowCookie(c, pkceCookieName, "", -1)

	query := c.Query("state")
	if query == "" || state == "" || verifier == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(query)) != 1 {
		return "", false
	}
	return verifier, true
}

func (h *Handler) setFlowCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/oauth",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
