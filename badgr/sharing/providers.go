package sharing

import (
	"net/url"
)

const (
	// LinkedInDefaultTitle is used when no title option is supplied.
	LinkedInDefaultTitle = "I earned a badge from Badgr!"

	// PortfoliumSource is the fixed source tag sent to Portfolium.
	PortfoliumSource = "Badgr"
)

// DefaultProviders returns the built-in provider registrations.
func DefaultProviders() []ProviderRegistration {
	return []ProviderRegistration{
		{Code: "facebook", DisplayName: "Facebook", Build: facebookURL},
		{Code: "linkedin", DisplayName: "LinkedIn", Build: linkedinURL},
		{Code: "twitter", DisplayName: "Twitter", Build: twitterURL},
		{Code: "portfolium", DisplayName: "Portfolium", Build: portfoliumURL},
	}
}

// Filter keeps the registrations for which keep returns true, preserving order.
func Filter(regs []ProviderRegistration, keep func(code string) bool) []ProviderRegistration {
	result := make([]ProviderRegistration, 0, len(regs))
	for _, reg := range regs {
		if keep == nil || keep(reg.Code) {
			result = append(result, reg)
		}
	}
	return result
}

func twitterURL(target ShareTarget, _ Options) (string, error) {
	return "https://twitter.com/intent/tweet?text=" + url.QueryEscape(target.ShareURL), nil
}

func facebookURL(target ShareTarget, _ Options) (string, error) {
	return "https://www.facebook.com/sharer/sharer.php?u=" + url.QueryEscape(target.ShareURL), nil
}

// linkedinURL always uses the feed share form. The certification form
// (profile/add keyed by an issuer certification id) is disabled.
func linkedinURL(target ShareTarget, opts Options) (string, error) {
	title := opts.Title
	if title == "" {
		title = LinkedInDefaultTitle
	}
	summary := opts.Summary
	if summary == "" {
		summary = target.BadgeClassName
	}
	return "https://www.linkedin.com/shareArticle?mini=true" +
		"&url=" + url.QueryEscape(target.ShareURL) +
		"&title=" + url.QueryEscape(title) +
		"&summary=" + url.QueryEscape(summary), nil
}

func portfoliumURL(target ShareTarget, _ Options) (string, error) {
	return "https://portfolium.com/share/badge?source=" + url.QueryEscape(PortfoliumSource) +
		"&u=" + url.QueryEscape(target.ShareURL), nil
}
