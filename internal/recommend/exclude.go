package recommend

import (
	"regexp"
	"strings"
)

var (
	remixRe        = regexp.MustCompile(`\b(remix|refix|bootleg|mashup|vip)\b`)
	coverRe        = regexp.MustCompile(`\bcover\b`)
	liveRe         = regexp.MustCompile(`\blive\b`)
	karaokeRe      = regexp.MustCompile(`\b(karaoke|backing\s*track)\b`)
	instrumentalRe = regexp.MustCompile(`\binstrumental\b`)
)

// exclusionReasons returns every enabled exclusion category the track name
// matches. Each reason is evaluated independently for diagnostics.
func exclusionReasons(trackName string, cfg Config) []string {
	name := strings.ToLower(trackName)

	var reasons []string
	if cfg.ExcludeRemixes && remixRe.MatchString(name) {
		reasons = append(reasons, "remix")
	}
	if cfg.ExcludeCovers && coverRe.MatchString(name) {
		reasons = append(reasons, "cover")
	}
	if cfg.ExcludeLive && liveRe.MatchString(name) {
		reasons = append(reasons, "live")
	}
	if cfg.ExcludeKaraoke && karaokeRe.MatchString(name) {
		reasons = append(reasons, "karaoke")
	}
	if cfg.ExcludeInstrumentals && instrumentalRe.MatchString(name) {
		reasons = append(reasons, "instrumental")
	}
	return reasons
}
