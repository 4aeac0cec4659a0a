package domain

// CourseType mirrors the course categories of the curriculum map.
type CourseType string

const (
	CourseUniCore     CourseType = "uni_core"
	CourseFacultyCore CourseType = "faculty_core"
	CourseCSCore      CourseType = "cs_core"
	CourseStream      CourseType = "stream"
	CourseElective    CourseType = "elective"
)

// CourseUpdate is the shape clients usually put under "course".
// The relay never decodes it; it is here for client code and tests.
type CourseUpdate struct {
	ID         int64      `json:"id"`
	X          *float64   `json:"x,omitempty"`
	Y          *float64   `json:"y,omitempty"`
	Semester   *int       `json:"semester,omitempty"`
	Name       string     `json:"name,omitempty"`
	Credits    int        `json:"credits,omitempty"`
	Type       CourseType `json:"type,omitempty"`
	Topics     []string   `json:"topics,omitempty"`
	References []string   `json:"references,omitempty"`
}
