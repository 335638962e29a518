package overpass

import (
	"fmt"
	"strings"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

// BuildQuery renders the Overpass QL body for one segment.
// Ways and relations are returned with their centre so every element carries a coordinate.
func BuildQuery(seg entities.ImportSegment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[out:json][timeout:%d]", seg.TimeoutSeconds)
	if seg.MaxSizeBytes > 0 {
		fmt.Fprintf(&b, "[maxsize:%d]", seg.MaxSizeBytes)
	}
	b.WriteString(";")

	filter := fmt.Sprintf(`["%s"="%s"]`, seg.Category.TagKey, seg.Category.TagValue)

	switch seg.Region.Kind {
	case entities.RegionKindCircle:
		fmt.Fprintf(&b, "(nwr%s(around:%d,%.6f,%.6f););",
			filter, seg.Region.RadiusMeters, seg.Region.Center.Latitude, seg.Region.Center.Longitude)
	default:
		fmt.Fprintf(&b, `area["ISO3166-2"="%s"]->.a;(nwr%s(area.a););`, seg.Region.ISOCode, filter)
	}

	b.WriteString("out center tags;")
	return b.String()
}
