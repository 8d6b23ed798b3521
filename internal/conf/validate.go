package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the settings for values that would make the client
// unusable at runtime. Connection credentials are checked for presence only;
// whether they are accepted is the backend's call.
func (s *Settings) Validate() error {
	var problems []string

	if s.Backend.URL != "" {
		u, err := url.Parse(s.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("backend.url %q is not a valid absolute URL", s.Backend.URL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			problems = append(problems, fmt.Sprintf("backend.url scheme %q is not supported", u.Scheme))
		}
	}

	if s.Backend.Timeout <= 0 {
		problems = append(problems, "backend.timeout must be positive")
	}
	if s.Backend.RequestsPerSecond <= 0 {
		problems = append(problems, "backend.requestspersecond must be positive")
	}
	if s.Backend.PageSize <= 0 {
		problems = append(problems, "backend.pagesize must be positive")
	}

	if s.Gallery.PageSize <= 0 {
		problems = append(problems, "gallery.pagesize must be positive")
	}
	if s.Gallery.PrefetchThreshold <= 0 {
		problems = append(problems, "gallery.prefetchthreshold must be positive")
	}

	if s.ImageCache.TTL <= 0 {
		problems = append(problems, "imagecache.ttl must be positive")
	}
	if s.ImageCache.MaxBytes <= 0 {
		problems = append(problems, "imagecache.maxbytes must be positive")
	}
	if s.ImageCache.ThumbnailSize <= 0 {
		problems = append(problems, "imagecache.thumbnailsize must be positive")
	}

	switch s.Main.Log.Rotation {
	case RotationDaily, RotationWeekly, RotationSize, "":
	default:
		problems = append(problems, fmt.Sprintf("main.log.rotation %q is not one of daily, weekly, size", s.Main.Log.Rotation))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}
