package checklist

// Criterion is one WCAG 2.0 success criterion.
type Criterion struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

// wcag20 lists the Level A and AA success criteria of WCAG 2.0.
var wcag20 = []Criterion{
	{"1.1.1", "Non-text Content", "A"},
	{"1.2.1", "Audio-only and Video-only (Prerecorded)", "A"},
	{"1.2.2", "Captions (Prerecorded)", "A"},
	{"1.2.3", "Audio Description or Media Alternative (Prerecorded)", "A"},
	{"1.2.4", "Captions (Live)", "AA"},
	{"1.2.5", "Audio Description (Prerecorded)", "AA"},
	{"1.3.1", "Info and Relationships", "A"},
	{"1.3.2", "Meaningful Sequence", "A"},
	{"1.3.3", "Sensory Characteristics", "A"},
	{"1.4.1", "Use of Color", "A"},
	{"1.4.2", "Audio Control", "A"},
	{"1.4.3", "Contrast (Minimum)", "AA"},
	{"1.4.4", "Resize Text", "AA"},
	{"1.4.5", "Images of Text", "AA"},
	{"2.1.1", "Keyboard", "A"},
	{"2.1.2", "No Keyboard Trap", "A"},
	{"2.2.1", "Timing Adjustable", "A"},
	{"2.2.2", "Pause, Stop, Hide", "A"},
	{"2.3.1", "Three Flashes or Below Threshold", "A"},
	{"2.4.1", "Bypass Blocks", "A"},
	{"2.4.2", "Page Titled", "A"},
	{"2.4.3", "Focus Order", "A"},
	{"2.4.4", "Link Purpose (In Context)", "A"},
	{"2.4.5", "Multiple Ways", "AA"},
	{"2.4.6", "Headings and Labels", "AA"},
	{"2.4.7", "Focus Visible", "AA"},
	{"3.1.1", "Language of Page", "A"},
	{"3.1.2", "Language of Parts", "AA"},
	{"3.2.1", "On Focus", "A"},
	{"3.2.2", "On Input", "A"},
	{"3.2.3", "Consistent Navigation", "AA"},
	{"3.2.4", "Consistent Identification", "AA"},
	{"3.3.1", "Error Identification", "A"},
	{"3.3.2", "Labels or Instructions", "A"},
	{"3.3.3", "Error Suggestion", "AA"},
	{"3.3.4", "Error Prevention (Legal, Financial, Data)", "AA"},
	{"4.1.1", "Parsing", "A"},
	{"4.1.2", "Name, Role, Value", "A"},
}

// Criteria returns a copy of the WCAG 2.0 A/AA criteria list.
func Criteria() []Criterion {
	return append([]Criterion(nil), wcag20...)
}
