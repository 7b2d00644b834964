package attendance

// SystemActor is the MarkedBy value for records written by reconciliation.
const SystemActor = "system"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Actor is the authenticated caller. It is either a Student or a Teacher.
type Actor interface {
	ActorID() string
	Role() Role
	actor()
}

type Student struct {
	ID      string
	Courses []string
}

func (s Student) ActorID() string { return s.ID }
func (Student) Role() Role        { return RoleStudent }
func (Student) actor()            {}

type Teacher struct {
	ID      string
	Courses []string
}

func (t Teacher) ActorID() string { return t.ID }
func (Teacher) Role() Role        { return RoleTeacher }
func (Teacher) actor()            {}

// Teaches reports whether courseID is among the teacher's courses.
func (t Teacher) Teaches(courseID string) bool {
	return contains(t.Courses, courseID)
}

func IsStudent(a Actor) bool {
	_, ok := a.(Student)
	return ok
}

func IsTeacher(a Actor) bool {
	_, ok := a.(Teacher)
	return ok
}

// NewActor builds the variant for role. Unknown roles yield nil.
func NewActor(role Role, id string, courses []string) Actor {
	switch role {
	case RoleStudent:
		return Student{ID: id, Courses: courses}
	case RoleTeacher:
		return Teacher{ID: id, Courses: courses}
	}
	return nil
}

func teacherOf(a Actor, courseID string) (Teacher, bool) {
	t, ok := a.(Teacher)
	if !ok || !t.Teaches(courseID) {
		return Teacher{}, false
	}
	return t, true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
