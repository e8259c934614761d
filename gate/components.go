package gate

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Placeholder renders nothing visible while the session is unresolved.
func Placeholder() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="gate gate-pending" aria-busy="true"></div>`)
		return err
	})
}

// LoginPrompt asks the visitor to sign in through the credential flow.
func LoginPrompt(signInURL string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="gate gate-login"><h2>Please Login to access this page</h2>`)
		b.WriteString(`<a class="btn" role="button" href="`)
		b.WriteString(templ.EscapeString(string(templ.URL(signInURL))))
		b.WriteString(`">Sign In</a></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Greeting welcomes an authenticated user by name.
func Greeting(name string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="gate gate-greeting"><h2>Hello `+templ.EscapeString(name)+`</h2></div>`)
		return err
	})
}

// LoginFormData fills the sign-in page.
type LoginFormData struct {
	// Action is the credential callback the form posts to.
	Action      string
	CallbackURL string
	// Error is shown as a generic failure notice when set.
	Error     string
	Providers []ProviderLink
}

// ProviderLink is one OAuth sign-in option.
type ProviderLink struct {
	Name string
	URL  string
}

// LoginForm renders the email and password form plus one link per OAuth
// provider.
func LoginForm(data LoginFormData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<main class="login"><h1>Sign in</h1>`)
		if data.Error != "" {
			b.WriteString(`<p class="error" role="alert">Sign in failed. Check the details you provided are correct.</p>`)
		}
		b.WriteString(`<form method="post" action="`)
		b.WriteString(templ.EscapeString(string(templ.URL(data.Action))))
		b.WriteString(`">`)
		if data.CallbackURL != "" {
			b.WriteString(`<input type="hidden" name="callbackUrl" value="`)
			b.WriteString(templ.EscapeString(data.CallbackURL))
			b.WriteString(`">`)
		}
		b.WriteString(`<label>Email <input type="email" name="email" autocomplete="email" required></label>`)
		b.WriteString(`<label>Password <input type="password" name="password" autocomplete="current-password" required></label>`)
		b.WriteString(`<button type="submit">Sign In</button></form>`)
		for _, p := range data.Providers {
			b.WriteString(`<a class="btn oauth" href="`)
			b.WriteString(templ.EscapeString(string(templ.URL(p.URL))))
			b.WriteString(`">Sign in with `)
			b.WriteString(templ.EscapeString(providerLabel(p.Name)))
			b.WriteString(`</a>`)
		}
		b.WriteString(`</main>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func providerLabel(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
