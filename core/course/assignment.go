package course

import (
	"math"

	"github.com/trezcool/mahudhurio/core/user"
)

type Strategy string

const (
	StrategyLeastLoaded Strategy = "least-loaded"
	StrategyRoundRobin  Strategy = "round-robin"
)

// AssignmentConfig controls how students are distributed across courses.
// A zero MaxStudentsPerTeacher means no cap.
type AssignmentConfig struct {
	MaxStudentsPerTeacher int      `json:"max_students_per_teacher"`
	Strategy              Strategy `json:"strategy"`
}

func (cfg AssignmentConfig) strategy() Strategy {
	if cfg.Strategy == StrategyRoundRobin {
		return StrategyRoundRobin
	}
	return StrategyLeastLoaded
}

func (cfg AssignmentConfig) cap() int {
	if cfg.MaxStudentsPerTeacher <= 0 {
		return math.MaxInt32
	}
	return cfg.MaxStudentsPerTeacher
}

type AssignmentDetail struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	TeacherID   string `json:"teacher_id"`
	CourseID    string `json:"course_id"`
	Success     bool   `json:"success"`
	Reason      string `json:"reason,omitempty"`
}

type AssignmentSummary struct {
	TotalStudents         int            `json:"total_students"`
	TotalTeachers         int            `json:"total_teachers"`
	AvgStudentsPerTeacher float64        `json:"avg_students_per_teacher"`
	Distribution          map[string]int `json:"distribution"` // teacherID -> student count
}

type AssignmentResult struct {
	Success bool               `json:"success"`
	Created int                `json:"created"`
	Failed  int                `json:"failed"`
	Details []AssignmentDetail `json:"details"`
	Summary AssignmentSummary  `json:"summary"`
}

// TeacherLoadDistribution counts enrolled students per teacher across courses.
func TeacherLoadDistribution(courses []Course) map[string]int {
	distribution := make(map[string]int)
	for _, crs := range courses {
		if crs.TeacherID != "" {
			distribution[crs.TeacherID] += len(crs.StudentIDs)
		}
	}
	return distribution
}

// DistributeStudents enrolls each student into a course via the enroll
// callback, picking courses by the configured strategy. Enrollment failures
// are recorded per student and do not abort the run.
func DistributeStudents(students []user.User, courses []Course, cfg AssignmentConfig, enroll func(studentID, courseID string) error) AssignmentResult {
	teacherCount := uniqueTeachers(courses)
	res := AssignmentResult{
		Success: true,
		Summary: AssignmentSummary{
			TotalTeachers: teacherCount,
			Distribution:  TeacherLoadDistribution(courses),
		},
	}
	if len(students) == 0 || len(courses) == 0 {
		if len(students) > 0 {
			res.Success = false
			res.Failed = len(students)
			for _, student := range students {
				res.Details = append(res.Details, AssignmentDetail{
					StudentID:   student.ID,
					StudentName: studentName(student),
					Reason:      "no courses available",
				})
			}
			res.Summary.TotalStudents = len(students)
		}
		return res
	}

	courseLoad := make(map[string]int, len(courses))
	for _, crs := range courses {
		courseLoad[crs.ID] = len(crs.StudentIDs)
	}

	maxPerTeacher := cfg.cap()
	rrIndex := 0

	for _, student := range students {
		var selected *Course

		switch cfg.strategy() {
		case StrategyRoundRobin:
			var available []Course
			for _, crs := range courses {
				if courseLoad[crs.ID] < maxPerTeacher {
					available = append(available, crs)
				}
			}
			if len(available) > 0 {
				selected = &available[rrIndex%len(available)]
			} else {
				selected = &courses[rrIndex%len(courses)]
			}
			rrIndex++
		default:
			minLoad := math.MaxInt32
			for i, crs := range courses {
				load := courseLoad[crs.ID]
				if load < minLoad && load < maxPerTeacher {
					minLoad = load
					selected = &courses[i]
				}
			}
			if selected == nil {
				selected = &courses[0]
			}
		}

		detail := AssignmentDetail{
			StudentID:   student.ID,
			StudentName: studentName(student),
			TeacherID:   selected.TeacherID,
			CourseID:    selected.ID,
		}
		if err := enroll(student.ID, selected.ID); err != nil {
			res.Failed++
			detail.Reason = err.Error()
		} else {
			res.Created++
			detail.Success = true
			courseLoad[selected.ID]++
			if selected.TeacherID != "" {
				res.Summary.Distribution[selected.TeacherID]++
			}
		}
		res.Details = append(res.Details, detail)
	}

	res.Success = res.Failed == 0
	total := 0
	for _, count := range res.Summary.Distribution {
		total += count
	}
	res.Summary.TotalStudents = total
	if teacherCount > 0 {
		res.Summary.AvgStudentsPerTeacher = math.Round(float64(total)/float64(teacherCount)*100) / 100
	}
	return res
}

func uniqueTeachers(courses []Course) int {
	seen := make(map[string]struct{})
	for _, crs := range courses {
		if crs.TeacherID != "" {
			seen[crs.TeacherID] = struct{}{}
		}
	}
	return len(seen)
}

func studentName(usr user.User) string {
	if usr.Name != "" {
		return usr.Name
	}
	return usr.Email
}
