package goSession

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ResolveRedirect applies the redirect policy to target. An empty target
// resolves to Pages.AfterSignIn. Rejected targets are audited and replaced
// by the base URL.
func (e *Engine) ResolveRedirect(ctx context.Context, target string) string {
	if e == nil {
		return "/"
	}
	base := e.config.Pages.BaseURL
	if strings.TrimSpace(target) == "" {
		target = e.config.Pages.AfterSignIn
	}

	dest, err := e.redirect.Redirect(target, base)
	if err != nil {
		if errors.Is(err, ErrRedirectRejected) {
			e.metricInc(MetricRedirectRejected)
			e.emitAudit(ctx, auditEventRedirectRejected, false, auditRecord{
				err:      err,
				metadata: map[string]string{"target": target},
			})
		} else {
			e.logger.WarnContext(ctx, "goSession: redirect policy failed", "error", err)
		}
		if dest == "" {
			dest = base
		}
	}
	return dest
}

// SignInURL returns the sign-in page URL. callbackURL and errCode are added
// as the callbackUrl and error query parameters when set.
func (e *Engine) SignInURL(callbackURL, errCode string) string {
	if e == nil {
		return "/"
	}
	u := strings.TrimRight(e.config.Pages.BaseURL, "/") + e.config.Pages.SignIn
	q := url.Values{}
	if callbackURL != "" {
		q.Set("callbackUrl", callbackURL)
	}
	if errCode != "" {
		q.Set("error", errCode)
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
