package publish

import (
	"unicode/utf8"

	"github.com/goliatone/go-social/core"
)

var characterLimits = map[core.Platform]int{
	core.PlatformTwitter:   280,
	core.PlatformLinkedIn:  3000,
	core.PlatformFacebook:  63206,
	core.PlatformInstagram: 2200,
	core.PlatformTikTok:    2200,
	core.PlatformYouTube:   5000,
}

// CharacterLimit returns the pre-flight limit for platform, or zero when the
// platform has none.
func CharacterLimit(platform core.Platform) int {
	return characterLimits[platform]
}

// Validate is the fast-fail check run before any network call. The networks
// enforce their own limits as well.
func Validate(target core.PublishTarget) error {
	platform := target.Platform
	length := utf8.RuneCountInString(target.Content)
	if limit := CharacterLimit(platform); limit > 0 && length > limit {
		return core.NewValidationError(platform, "content", "content exceeds %s limit of %d characters (got %d)", platform, limit, length)
	}

	hasMedia := target.HasMedia()
	switch platform {
	case core.PlatformInstagram:
		if !hasMedia {
			return core.NewValidationError(platform, "media", "instagram requires an image, video or carousel")
		}
	case core.PlatformTikTok, core.PlatformYouTube:
		if target.MediaType != core.MediaTypeVideo || target.MediaURL == "" {
			return core.NewValidationError(platform, "media", "%s requires a video", platform)
		}
	}

	if length == 0 && !(hasMedia && allowsEmptyCaption(platform)) {
		return core.NewValidationError(platform, "content", "content is required for %s", platform)
	}
	return nil
}

func allowsEmptyCaption(platform core.Platform) bool {
	return platform == core.PlatformInstagram || platform == core.PlatformFacebook
}
