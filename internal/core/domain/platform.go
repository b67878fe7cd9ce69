package domain

// Platform identifies a social media platform a user can connect.
type Platform string

const (
	PlatformX         Platform = "x"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// Valid reports whether the platform is a known value.
// Only X is implemented; Facebook and Instagram are reserved.
func (p Platform) Valid() bool {
	switch p {
	case PlatformX, PlatformFacebook, PlatformInstagram:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the platform.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformX:
		return "X"
	case PlatformFacebook:
		return "Facebook"
	case PlatformInstagram:
		return "Instagram"
	default:
		return string(p)
	}
}
