package domain

// Platform описывает целевую социальную сеть.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
)

// UniversalPostLimit — бюджет универсального поста, общего для всех платформ.
const UniversalPostLimit = 280

// MaxHashtags — максимум хэштегов в итоговом тексте.
const MaxHashtags = 5

// PlatformLimits содержит ограничения и подсказки конкретной платформы.
type PlatformLimits struct {
	MaxChars    int
	HashtagsMin int
	HashtagsMax int
	ImageSize   string
	Tone        string
}

var platformLimits = map[Platform]PlatformLimits{
	PlatformTwitter:   {MaxChars: 280, HashtagsMin: 1, HashtagsMax: 3, ImageSize: "1600x900", Tone: "punchy and conversational"},
	PlatformLinkedIn:  {MaxChars: 3000, HashtagsMin: 3, HashtagsMax: 5, ImageSize: "1200x627", Tone: "professional and insightful"},
	PlatformInstagram: {MaxChars: 2200, HashtagsMin: 5, HashtagsMax: 15, ImageSize: "1080x1080", Tone: "visual and emotive"},
	PlatformFacebook:  {MaxChars: 63206, HashtagsMin: 0, HashtagsMax: 3, ImageSize: "1200x630", Tone: "friendly and story-driven"},
}

// LimitsFor возвращает ограничения платформы. Для неизвестной платформы
// действует самый строгий бюджет, чтобы текст гарантированно поместился.
func LimitsFor(p Platform) PlatformLimits {
	if limits, ok := platformLimits[p]; ok {
		return limits
	}
	return PlatformLimits{MaxChars: UniversalPostLimit, HashtagsMin: 0, HashtagsMax: MaxHashtags, ImageSize: "1200x675", Tone: "neutral"}
}

// KnownPlatform проверяет, поддерживается ли платформа.
func KnownPlatform(p Platform) bool {
	_, ok := platformLimits[p]
	return ok
}
