package enrich

// CategoryOther is the fallback category when the model picks something
// outside the fixed set.
const CategoryOther = "other"

// Categories is the closed set of skill categories.
var Categories = []string{
	"coding", "devops", "testing", "security",
	"data", "ai",
	"design", "writing", "media",
	"business", "marketing", "sales", "finance",
	"productivity", "communication", "research",
	"education", CategoryOther,
}

var categorySet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		s[c] = struct{}{}
	}
	return s
}()

// ValidCategory reports whether c belongs to the fixed category set.
func ValidCategory(c string) bool {
	_, ok := categorySet[c]
	return ok
}
