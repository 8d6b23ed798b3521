package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers the default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Main
	v.SetDefault("main.name", "galleria")
	v.SetDefault("main.log.enabled", false)
	v.SetDefault("main.log.path", "logs")
	v.SetDefault("main.log.rotation", RotationSize)
	v.SetDefault("main.log.maxsize", int64(50*1024*1024))

	// Backend
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.apikey", "")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.requestspersecond", 10.0)
	v.SetDefault("backend.pagesize", 20)
	v.SetDefault("backend.owner", "")

	// Gallery
	v.SetDefault("gallery.pagesize", 20)
	v.SetDefault("gallery.prefetchthreshold", 3)

	// Image cache
	v.SetDefault("imagecache.ttl", 30*time.Minute)
	v.SetDefault("imagecache.maxbytes", int64(20*1024*1024))
	v.SetDefault("imagecache.thumbnailsize", 256)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "localhost:8090")
}
