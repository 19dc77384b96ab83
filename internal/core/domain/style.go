package domain

// ColorClass groups the eight actions into the four colors a map layer draws.
type ColorClass string

const (
	ClassCreated   ColorClass = "created"
	ClassDeleted   ColorClass = "deleted"
	ClassModifyOld ColorClass = "modify-old"
	ClassModifyNew ColorClass = "modify-new"
)

// Style tells a renderer how to draw a primitive.
type Style struct {
	Class  ColorClass `json:"class"`
	Color  string     `json:"color"`
	Dashed bool       `json:"dashed"`
}

var classColors = map[ColorClass]string{
	ClassCreated:   "#32D6B8",
	ClassDeleted:   "#C5263F",
	ClassModifyOld: "#D68A0D",
	ClassModifyNew: "#E5E43D",
}

// StyleFor maps an action to its color class; relation variants are dashed.
// ok is false for actions outside the domain.
func StyleFor(a Action) (Style, bool) {
	var class ColorClass
	switch a.Base() {
	case ActionCreate:
		class = ClassCreated
	case ActionDelete:
		class = ClassDeleted
	case ActionModifyOld:
		class = ClassModifyOld
	case ActionModifyNew:
		class = ClassModifyNew
	default:
		return Style{}, false
	}
	return Style{Class: class, Color: classColors[class], Dashed: a.IsRelation()}, true
}
