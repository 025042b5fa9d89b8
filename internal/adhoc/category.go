package adhoc

import (
	"regexp"
	"strings"

	"github.com/julianstephens/carelog/internal/models"
)

type Category string

const (
	CategorySnack    Category = "snack"
	CategoryBehavior Category = "behavior"
	CategorySymptom  Category = "symptom"
	CategoryOther    Category = "other"
)

// placeholderPrefix marks the category of placeholder definitions.
const placeholderPrefix = "quick_log:"

// Display is how a quick-log category is presented.
type Display struct {
	Category Category
	Name     string
	Icon     string
	Kind     models.TaskKind
}

var displays = map[Category]Display{
	CategorySnack:    {CategorySnack, "Snack", "🍪", models.TaskKindFood},
	CategoryBehavior: {CategoryBehavior, "Behavior", "🐾", models.TaskKindObservation},
	CategorySymptom:  {CategorySymptom, "Symptom", "🩺", models.TaskKindObservation},
	CategoryOther:    {CategoryOther, "Other", "📝", models.TaskKindObservation},
}

// Categories lists the quick-log categories in menu order.
var Categories = []Category{CategorySnack, CategoryBehavior, CategorySymptom, CategoryOther}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := displays[c]
	return c, ok
}

// DisplayFor maps a category to its presentation. Unknown categories fall
// back to Other but keep their own name.
func DisplayFor(c Category) Display {
	if d, ok := displays[c]; ok {
		return d
	}
	d := displays[CategoryOther]
	d.Category = c
	if c != "" {
		d.Name = strings.ToUpper(string(c[:1])) + string(c[1:])
	}
	return d
}

var tagPattern = regexp.MustCompile(`^\[([a-z_]+)\]\s?(.*)$`)

// Encode writes the legacy "[category] text" notes form.
func Encode(c Category, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "[" + string(c) + "]"
	}
	return "[" + string(c) + "] " + text
}

// Decode splits legacy tagged notes. ok is false when notes carry no tag.
func Decode(notes string) (c Category, text string, ok bool) {
	m := tagPattern.FindStringSubmatch(strings.TrimSpace(notes))
	if m == nil {
		return "", notes, false
	}
	return Category(m[1]), m[2], true
}

// Describe resolves the display for an ad-hoc occurrence, preferring the
// explicit category column and falling back to the notes tag for rows
// written before it existed.
func Describe(occ models.Occurrence) (Display, string, bool) {
	if !occ.IsAdHoc {
		return Display{}, occ.Notes, false
	}
	if occ.Category != "" {
		_, text, _ := Decode(occ.Notes)
		return DisplayFor(Category(occ.Category)), text, true
	}
	c, text, ok := Decode(occ.Notes)
	if !ok {
		return Display{}, occ.Notes, false
	}
	return DisplayFor(c), text, true
}
