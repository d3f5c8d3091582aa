package providers

import "github.com/zatekoja/trafficpipeline/internal/domain/entities"

// UserAgentParser parses a raw User-Agent header into device, OS and browser
// parts. It never fails; unknown parts carry the parser's own markers.
type UserAgentParser interface {
	Parse(agent string) entities.ParsedUserAgent
}
