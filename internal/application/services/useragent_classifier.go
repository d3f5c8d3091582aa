package services

import (
	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
)

// UserAgentClassifier flattens parser output into UserAgentInfo.
type UserAgentClassifier struct {
	parser providers.UserAgentParser
}

// NewUserAgentClassifier creates a new user agent classifier
func NewUserAgentClassifier(parser providers.UserAgentParser) *UserAgentClassifier {
	return &UserAgentClassifier{parser: parser}
}

// Classify never fails. Unparseable agents carry whatever markers the parser
// uses for unknown values.
func (c *UserAgentClassifier) Classify(agent string) entities.UserAgentInfo {
	if c.parser == nil {
		return entities.UserAgentInfo{}
	}

	parsed := c.parser.Parse(agent)
	return entities.UserAgentInfo{
		DeviceFamily:   parsed.Device.Family,
		DeviceBrand:    parsed.Device.Brand,
		DeviceModel:    parsed.Device.Model,
		PlatformFamily: parsed.OS.Family,
		PlatformMajor:  parsed.OS.Major,
		PlatformMinor:  parsed.OS.Minor,
		PlatformPatch:  parsed.OS.Patch,
		Family:         parsed.UserAgent.Family,
		Major:          parsed.UserAgent.Major,
		Minor:          parsed.UserAgent.Minor,
		Patch:          parsed.UserAgent.Patch,
	}
}
