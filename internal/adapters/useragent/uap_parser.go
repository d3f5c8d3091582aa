package useragent

import (
	"fmt"

	"github.com/ua-parser/uap-go/uaparser"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
)

// UAPParser implements providers.UserAgentParser with the ua-parser regexes.
type UAPParser struct {
	parser *uaparser.Parser
}

// NewUAPParser uses the regexes compiled into uap-go.
func NewUAPParser() *UAPParser {
	return &UAPParser{parser: uaparser.NewFromSaved()}
}

// NewUAPParserFromFile loads a regexes.yaml, for newer definitions than the
// embedded ones.
func NewUAPParserFromFile(path string) (*UAPParser, error) {
	parser, err := uaparser.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ua-parser regexes from %s: %w", path, err)
	}
	return &UAPParser{parser: parser}, nil
}

// Parse never fails; unmatched agents come back with family "Other".
func (p *UAPParser) Parse(agent string) entities.ParsedUserAgent {
	var out entities.ParsedUserAgent

	client := p.parser.Parse(agent)
	if client == nil {
		return out
	}
	if client.Device != nil {
		out.Device.Family = client.Device.Family
		out.Device.Brand = client.Device.Brand
		out.Device.Model = client.Device.Model
	}
	if client.Os != nil {
		out.OS.Family = client.Os.Family
		out.OS.Major = client.Os.Major
		out.OS.Minor = client.Os.Minor
		out.OS.Patch = client.Os.Patch
	}
	if client.UserAgent != nil {
		out.UserAgent.Family = client.UserAgent.Family
		out.UserAgent.Major = client.UserAgent.Major
		out.UserAgent.Minor = client.UserAgent.Minor
		out.UserAgent.Patch = client.UserAgent.Patch
	}
	return out
}
