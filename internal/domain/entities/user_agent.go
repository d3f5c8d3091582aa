package entities

// ParsedUserAgent is the nested result of a user-agent parser.
type ParsedUserAgent struct {
	Device struct {
		Family string
		Brand  string
		Model  string
	}
	OS struct {
		Family string
		Major  string
		Minor  string
		Patch  string
	}
	UserAgent struct {
		Family string
		Major  string
		Minor  string
		Patch  string
	}
}

// UserAgentInfo is the flattened user-agent classification. Values are
// copied verbatim from the parser, including its "unknown" markers.
type UserAgentInfo struct {
	DeviceFamily   string
	DeviceBrand    string
	DeviceModel    string
	PlatformFamily string
	PlatformMajor  string
	PlatformMinor  string
	PlatformPatch  string
	Family         string
	Major          string
	Minor          string
	Patch          string
}

// Fields returns the document keys and values for u.
func (u UserAgentInfo) Fields() map[string]string {
	return map[string]string{
		"user_agent_device_family":   u.DeviceFamily,
		"user_agent_device_brand":    u.DeviceBrand,
		"user_agent_device_model":    u.DeviceModel,
		"user_agent_platform_family": u.PlatformFamily,
		"user_agent_platform_major":  u.PlatformMajor,
		"user_agent_platform_minor":  u.PlatformMinor,
		"user_agent_platform_patch":  u.PlatformPatch,
		"user_agent_family":          u.Family,
		"user_agent_major":           u.Major,
		"user_agent_minor":           u.Minor,
		"user_agent_patch":           u.Patch,
	}
}
