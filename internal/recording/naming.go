package recording

import (
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/LivePodcast/internal/domain"
)

const (
	fileExt         = ".mp3"
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

var unsafeName = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")

// FileName builds "{timestamp}__{room}__{conn}.mp3" with the ISO-8601 UTC timestamp's
// colons replaced by dots, so names sort by start time and stay valid on every filesystem.
// attempt > 0 adds a "-N" suffix used when the plain name is already taken.
func FileName(ts time.Time, room domain.RoomName, id domain.ConnID, attempt int) string {
	stamp := strings.ReplaceAll(ts.UTC().Format(timestampLayout), ":", ".")
	base := fmt.Sprintf("%s__%s__%s", stamp, unsafeName.Replace(string(room)), unsafeName.Replace(string(id)))
	if attempt > 0 {
		base = fmt.Sprintf("%s-%d", base, attempt)
	}
	return base + fileExt
}
