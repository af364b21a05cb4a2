package publish

import (
	"strings"

	"github.com/goliatone/go-social/core"
)

// ResolveMediaType derives the media type from the post type first and the
// attached media second. A post without media resolves to MediaTypeNone.
func ResolveMediaType(post core.Post) core.MediaType {
	switch post.PostType {
	case core.PostTypeReel, core.PostTypeVideo, core.PostTypeShort:
		return core.MediaTypeVideo
	}
	if strings.TrimSpace(post.GeneratedVideoURL) != "" {
		return core.MediaTypeVideo
	}
	if len(imageURLs(post)) > 0 || post.PostType == core.PostTypeImage {
		return core.MediaTypeImage
	}
	return core.MediaTypeNone
}

// IsCarousel reports whether the post takes the carousel dispatch path.
func IsCarousel(post core.Post) bool {
	switch post.PostType {
	case core.PostTypeCarousel, core.PostTypeSlideshow:
		return true
	}
	return ResolveMediaType(post) == core.MediaTypeImage && len(imageURLs(post)) >= 2
}

// BuildTarget resolves content and media for one platform.
func BuildTarget(post core.Post, platform core.Platform) core.PublishTarget {
	target := core.PublishTarget{
		Platform:    platform,
		Content:     ResolveContent(post, platform),
		PostType:    post.PostType,
		ScheduledAt: post.ScheduledAt,
	}
	images := imageURLs(post)
	if IsCarousel(post) {
		target.MediaType = core.MediaTypeCarousel
		target.CarouselURLs = images
		return target
	}
	target.MediaType = ResolveMediaType(post)
	switch target.MediaType {
	case core.MediaTypeVideo:
		target.MediaURL = strings.TrimSpace(post.GeneratedVideoURL)
	case core.MediaTypeImage:
		if len(images) > 0 {
			target.MediaURL = images[0]
		}
	}
	return target
}

func imageURLs(post core.Post) []string {
	out := make([]string, 0, len(post.ImageURLs))
	for _, raw := range post.ImageURLs {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
