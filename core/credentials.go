package core

import (
	"fmt"
	"strings"
)

// credentialRequirements declares, per platform variant, which credential
// fields must be present before a record can be stored or used.
var credentialRequirements = map[Platform][]string{
	PlatformTwitter:   {"accessToken", "userId"},
	PlatformLinkedIn:  {"accessToken", "userId"},
	PlatformFacebook:  {"accessToken", "pageId"},
	PlatformInstagram: {"accessToken", "userId"},
	PlatformTikTok:    {"accessToken", "userId"},
	PlatformYouTube:   {"accessToken", "userId"},
	PlatformMetaAds:   {"accessToken"},
}

func RequiredCredentialFields(platform Platform) []string {
	return append([]string(nil), credentialRequirements[platform]...)
}

func (c PlatformCredentials) Validate() error {
	required, ok := credentialRequirements[c.Platform]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, c.Platform)
	}
	for _, field := range required {
		if strings.TrimSpace(c.field(field)) == "" {
			return fmt.Errorf("%w: %s requires %s", ErrMissingRequiredField, c.Platform, field)
		}
	}
	return nil
}

func (c PlatformCredentials) field(name string) string {
	switch name {
	case "accessToken":
		return c.AccessToken
	case "userId":
		return c.UserID
	case "pageId":
		return c.PageID
	case "adAccountId":
		return c.AdAccountID
	default:
		return ""
	}
}

// Normalize trims whitespace and strips the act_ prefix off ad account ids so
// stored values compare equal regardless of the source API.
func (c PlatformCredentials) Normalize() PlatformCredentials {
	c.AccessToken = strings.TrimSpace(c.AccessToken)
	c.RefreshToken = strings.TrimSpace(c.RefreshToken)
	c.UserAccessToken = strings.TrimSpace(c.UserAccessToken)
	c.UserID = strings.TrimSpace(c.UserID)
	c.Username = strings.TrimSpace(c.Username)
	c.AdAccountID = NormalizeAdAccountID(c.AdAccountID)
	c.AdAccountName = strings.TrimSpace(c.AdAccountName)
	c.PageID = strings.TrimSpace(c.PageID)
	c.PageName = strings.TrimSpace(c.PageName)
	c.Currency = strings.TrimSpace(c.Currency)
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.ExpiresAt != nil {
		expires := c.ExpiresAt.UTC()
		c.ExpiresAt = &expires
	}
	return c
}

func NormalizeAdAccountID(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), "act_")
}
